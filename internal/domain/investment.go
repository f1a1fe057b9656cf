package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Investment is one investor's committed stake in a pool. Immutable once
// committed except for Reversed, which flips when the stake is refunded
// before pool finalization.
type Investment struct {
	InvestmentID uuid.UUID `gorm:"column:investment_id;type:uuid;primaryKey" json:"investment_id"`
	PoolID       uuid.UUID `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	InvestorID   string    `gorm:"column:investor_id;not null;index" json:"investor_id"`
	Amount       int64     `gorm:"column:amount;not null" json:"amount"`
	CommittedAt  time.Time `gorm:"column:committed_at;not null" json:"committed_at"`
	Reversed     bool      `gorm:"column:reversed;not null;default:false" json:"reversed"`
	CreatedAt    time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Investment) TableName() string {
	return "Investments"
}

func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.InvestmentID == uuid.Nil {
		i.InvestmentID = uuid.New()
	}
	return nil
}
