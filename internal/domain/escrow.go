package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Disbursement kinds.
const (
	DisbursementRefund    = "refund"
	DisbursementPrincipal = "principal"
	DisbursementInterest  = "interest"
	DisbursementFee       = "fee"
)

// EscrowAccount holds the custodied funds for one pool (1:1 with FundingPool).
// Invariant: HeldAmount + ReleasedAmount == pool.CurrentAmount at every
// observable point. Halted is set when a custody invariant check fails; a
// halted account rejects all mutating operations until manually cleared.
type EscrowAccount struct {
	PoolID         uuid.UUID `gorm:"column:pool_id;type:uuid;primaryKey" json:"pool_id"`
	HeldAmount     int64     `gorm:"column:held_amount;not null;default:0" json:"held_amount"`
	ReleasedAmount int64     `gorm:"column:released_amount;not null;default:0" json:"released_amount"`
	Halted         bool      `gorm:"column:halted;not null;default:false" json:"halted"`
	CreatedAt      time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (EscrowAccount) TableName() string {
	return "EscrowAccounts"
}

// Disbursement is one payout leg out of escrow. InvestorID is empty for the
// business-principal and platform-fee legs. BatchID groups the legs of one
// logical disbursement; (pool_id, batch_id, investor_id, kind) dedupes
// idempotent retries.
type Disbursement struct {
	DisbursementID uuid.UUID `gorm:"column:disbursement_id;type:uuid;primaryKey" json:"disbursement_id"`
	PoolID         uuid.UUID `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	BatchID        string    `gorm:"column:batch_id;not null;index:idx_disb_pool_batch" json:"batch_id"`
	InvestorID     string    `gorm:"column:investor_id" json:"investor_id"`
	Amount         int64     `gorm:"column:amount;not null" json:"amount"`
	Kind           string    `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	CreatedAt      time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Disbursement) TableName() string {
	return "Disbursements"
}

func (d *Disbursement) BeforeCreate(tx *gorm.DB) error {
	if d.DisbursementID == uuid.Nil {
		d.DisbursementID = uuid.New()
	}
	return nil
}
