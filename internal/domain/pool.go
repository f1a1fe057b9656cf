package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pool status values. Completed, Cancelled and Defaulted are terminal.
const (
	PoolStatusOpen      = "open"
	PoolStatusFunded    = "funded"
	PoolStatusRepaying  = "repaying"
	PoolStatusCompleted = "completed"
	PoolStatusCancelled = "cancelled"
	PoolStatusDefaulted = "defaulted"
)

// FundingPool is one business's funding campaign. All amounts are smallest
// currency units, the rate is integer basis points. CurrentAmount and Status
// are written only by the pool ledger; escrow reads them.
type FundingPool struct {
	PoolID          uuid.UUID  `gorm:"column:pool_id;type:uuid;primaryKey" json:"pool_id"`
	BusinessID      string     `gorm:"column:business_id;not null;index" json:"business_id"`
	Purpose         string     `gorm:"column:purpose;not null" json:"purpose"`
	TargetAmount    int64      `gorm:"column:target_amount;not null" json:"target_amount"`
	CurrentAmount   int64      `gorm:"column:current_amount;not null;default:0" json:"current_amount"`
	InterestRateBps int64      `gorm:"column:interest_rate_bps;not null" json:"interest_rate_bps"`
	DurationSeconds int64      `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	OpenedAt        time.Time  `gorm:"column:opened_at;not null" json:"opened_at"`
	FundedAt        *time.Time `gorm:"column:funded_at" json:"funded_at"`
	Status          string     `gorm:"column:status;type:varchar(20);default:'open'" json:"status"`
	CreatedAt       time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (FundingPool) TableName() string {
	return "FundingPools"
}

func (p *FundingPool) BeforeCreate(tx *gorm.DB) error {
	if p.PoolID == uuid.Nil {
		p.PoolID = uuid.New()
	}
	return nil
}

// Terminal reports whether the pool can never change state again.
func (p *FundingPool) Terminal() bool {
	switch p.Status {
	case PoolStatusCompleted, PoolStatusCancelled, PoolStatusDefaulted:
		return true
	}
	return false
}

// ExpiresAt is the instant the open-for-investment window closes.
func (p *FundingPool) ExpiresAt() time.Time {
	return p.OpenedAt.Add(time.Duration(p.DurationSeconds) * time.Second)
}
