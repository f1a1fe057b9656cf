package escrow

import (
	"context"
	"time"

	"github.com/technicaldee/locallift/internal/domain"
	"github.com/technicaldee/locallift/internal/pkg/apperr"
	"github.com/technicaldee/locallift/internal/pkg/finmath"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Custodian holds committed funds per pool and executes custody movement
// through the transfer backend. It trusts the pool ledger's capacity checks
// and status transitions: every method runs inside a ledger-held per-pool
// critical section and a gorm transaction, reads pool state, and only
// asserts the custody sum invariant defensively. It never writes pool core
// fields (CurrentAmount, Status).
type Custodian struct {
	Transferer     Transferer
	FeeBps         int64
	PlatformWallet string
}

// EnsureAccount creates the 1:1 escrow account row for a new pool.
func (cu *Custodian) EnsureAccount(tx *gorm.DB, poolID uuid.UUID) error {
	return tx.Create(&domain.EscrowAccount{PoolID: poolID}).Error
}

func (cu *Custodian) account(tx *gorm.DB, poolID uuid.UUID) (*domain.EscrowAccount, error) {
	var acct domain.EscrowAccount
	if err := tx.Where("pool_id = ?", poolID).First(&acct).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.CodeNotFound, "escrow account for pool %s not found", poolID)
		}
		return nil, err
	}
	if acct.Halted {
		return nil, apperr.New(apperr.CodeInvariantViolation, "escrow for pool %s is halted pending investigation", poolID)
	}
	return &acct, nil
}

// Deposit custodies a freshly accepted investment. The ledger has already
// validated the amount against remaining capacity and incremented
// CurrentAmount; the custodian moves the funds in and asserts the sum
// invariant against the updated pool row.
func (cu *Custodian) Deposit(ctx context.Context, tx *gorm.DB, pool *domain.FundingPool, inv *domain.Investment) error {
	acct, err := cu.account(tx, pool.PoolID)
	if err != nil {
		return err
	}
	if acct.HeldAmount+inv.Amount+acct.ReleasedAmount != pool.CurrentAmount {
		return apperr.New(apperr.CodeInvariantViolation,
			"deposit of %d would break custody sum for pool %s (held %d, released %d, current %d)",
			inv.Amount, pool.PoolID, acct.HeldAmount, acct.ReleasedAmount, pool.CurrentAmount)
	}
	if err := cu.Transferer.Transfer(ctx, inv.InvestorID, EscrowWallet(pool.PoolID), inv.Amount); err != nil {
		return transferErr(err)
	}
	acct.HeldAmount += inv.Amount
	return tx.Save(acct).Error
}

// ReleasePrincipal moves the full held principal, minus the platform fee, to
// the business custody wallet. The irreversible point: afterwards investors
// hold a claim on the repayment obligation only.
func (cu *Custodian) ReleasePrincipal(ctx context.Context, tx *gorm.DB, pool *domain.FundingPool, custodyWallet string) (released, fee int64, err error) {
	acct, err := cu.account(tx, pool.PoolID)
	if err != nil {
		return 0, 0, err
	}
	if acct.HeldAmount+acct.ReleasedAmount != pool.CurrentAmount {
		return 0, 0, apperr.New(apperr.CodeInvariantViolation,
			"custody sum broken for pool %s before release (held %d, released %d, current %d)",
			pool.PoolID, acct.HeldAmount, acct.ReleasedAmount, pool.CurrentAmount)
	}

	held := acct.HeldAmount
	fee = finmath.PlatformFee(held, cu.FeeBps)
	toBusiness := held - fee

	source := EscrowWallet(pool.PoolID)
	if err := cu.Transferer.Transfer(ctx, source, custodyWallet, toBusiness); err != nil {
		return 0, 0, transferErr(err)
	}
	if fee > 0 {
		if err := cu.Transferer.Transfer(ctx, source, cu.PlatformWallet, fee); err != nil {
			return 0, 0, transferErr(err)
		}
	}

	batchID := uuid.New().String()
	legs := []domain.Disbursement{
		{PoolID: pool.PoolID, BatchID: batchID, Amount: toBusiness, Kind: domain.DisbursementPrincipal},
	}
	if fee > 0 {
		legs = append(legs, domain.Disbursement{PoolID: pool.PoolID, BatchID: batchID, Amount: fee, Kind: domain.DisbursementFee})
	}
	if err := tx.Create(&legs).Error; err != nil {
		return 0, 0, err
	}

	acct.ReleasedAmount += held
	acct.HeldAmount = 0
	if err := tx.Save(acct).Error; err != nil {
		return 0, 0, err
	}
	return toBusiness, fee, nil
}

// RefundAll returns every non-reversed investment to its investor 1:1 and
// marks it reversed. Valid only once the ledger has set the pool cancelled;
// no funds have left escrow in that case, so held covers the refunds exactly.
func (cu *Custodian) RefundAll(ctx context.Context, tx *gorm.DB, pool *domain.FundingPool, investments []domain.Investment) error {
	acct, err := cu.account(tx, pool.PoolID)
	if err != nil {
		return err
	}

	var total int64
	for _, inv := range investments {
		if !inv.Reversed {
			total += inv.Amount
		}
	}
	if total != acct.HeldAmount {
		return apperr.New(apperr.CodeInvariantViolation,
			"refund total %d does not match held %d for pool %s", total, acct.HeldAmount, pool.PoolID)
	}

	source := EscrowWallet(pool.PoolID)
	batchID := uuid.New().String()
	for i := range investments {
		inv := &investments[i]
		if inv.Reversed {
			continue
		}
		if err := cu.Transferer.Transfer(ctx, source, inv.InvestorID, inv.Amount); err != nil {
			return transferErr(err)
		}
		if err := tx.Create(&domain.Disbursement{
			PoolID:     pool.PoolID,
			BatchID:    batchID,
			InvestorID: inv.InvestorID,
			Amount:     inv.Amount,
			Kind:       domain.DisbursementRefund,
		}).Error; err != nil {
			return err
		}
		inv.Reversed = true
		if err := tx.Model(&domain.Investment{}).
			Where("investment_id = ?", inv.InvestmentID).
			Update("reversed", true).Error; err != nil {
			return err
		}
	}

	acct.HeldAmount = 0
	return tx.Save(acct).Error
}

// SettleRepayment takes the business's repayment into escrow and pays each
// contribution out pro-rata, splitting each payout into its principal and
// interest legs. The repayment passes through escrow within this single
// operation, so held/released are unchanged at every observable point.
// Idempotency is the ledger's concern (batch lookup happens before this runs).
func (cu *Custodian) SettleRepayment(ctx context.Context, tx *gorm.DB, pool *domain.FundingPool, custodyWallet string, contributions []finmath.Contribution, totalRepayment int64, batchID string) error {
	acct, err := cu.account(tx, pool.PoolID)
	if err != nil {
		return err
	}
	if acct.HeldAmount != 0 {
		return apperr.New(apperr.CodeInvariantViolation,
			"pool %s still holds %d in escrow at settlement", pool.PoolID, acct.HeldAmount)
	}

	shares, err := finmath.ProRataShares(totalRepayment, contributions)
	if err != nil {
		return apperr.New(apperr.CodeInvalidParameters, "cannot split repayment: %v", err)
	}

	source := EscrowWallet(pool.PoolID)
	if err := cu.Transferer.Transfer(ctx, custodyWallet, source, totalRepayment); err != nil {
		return transferErr(err)
	}

	now := time.Now()
	for i, share := range shares {
		if err := cu.Transferer.Transfer(ctx, source, share.InvestorID, share.Payout); err != nil {
			return transferErr(err)
		}
		principal := contributions[i].Amount
		if principal > share.Payout {
			principal = share.Payout
		}
		legs := []domain.Disbursement{
			{PoolID: pool.PoolID, BatchID: batchID, InvestorID: share.InvestorID, Amount: principal, Kind: domain.DisbursementPrincipal, CreatedAt: now},
		}
		if interest := share.Payout - principal; interest > 0 {
			legs = append(legs, domain.Disbursement{PoolID: pool.PoolID, BatchID: batchID, InvestorID: share.InvestorID, Amount: interest, Kind: domain.DisbursementInterest, CreatedAt: now})
		}
		if err := tx.Create(&legs).Error; err != nil {
			return err
		}
	}
	return nil
}

// Halt flags the escrow account after an invariant violation so further
// mutating operations are rejected until an operator clears it. Runs outside
// the failed transaction (the violating write itself must never persist).
func (cu *Custodian) Halt(db *gorm.DB, poolID uuid.UUID) error {
	return db.Model(&domain.EscrowAccount{}).
		Where("pool_id = ?", poolID).
		Update("halted", true).Error
}

// ClearHalt re-enables a halted escrow account after manual investigation.
func (cu *Custodian) ClearHalt(db *gorm.DB, poolID uuid.UUID) error {
	return db.Model(&domain.EscrowAccount{}).
		Where("pool_id = ?", poolID).
		Update("halted", false).Error
}

func transferErr(err error) error {
	if apperr.CodeOf(err) != "" {
		return err
	}
	return apperr.New(apperr.CodeTransferFailed, "transfer backend: %v", err)
}
