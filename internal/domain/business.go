package domain

import (
	"time"
)

// Business is a registered fundraising business. The ID is chosen by the
// caller (stable external identifier); the row is immutable after creation
// except for the Active flag.
type Business struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	CustodyWallet string    `gorm:"column:custody_wallet;not null" json:"custody_wallet"`
	Active        bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt     time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Business) TableName() string {
	return "Businesses"
}
