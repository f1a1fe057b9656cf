package health

import (
	"context"
	"fmt"

	"github.com/technicaldee/locallift/internal/domain"

	"gorm.io/gorm"
)

// AuditViolation describes one pool whose persisted state breaks a ledger
// invariant.
type AuditViolation struct {
	PoolID string `json:"pool_id"`
	Detail string `json:"detail"`
}

// AuditReport is the result of a read-only custody audit pass.
type AuditReport struct {
	PoolsChecked int              `json:"pools_checked"`
	Clean        bool             `json:"clean"`
	Violations   []AuditViolation `json:"violations"`
}

// Audit re-verifies the custody invariants over the persisted tables without
// mutating anything: for every pool, held + released must equal the current
// amount, and the current amount must equal the sum of non-reversed
// investments. Terminal cancelled pools must hold nothing.
func Audit(ctx context.Context, db *gorm.DB) (*AuditReport, error) {
	report := &AuditReport{Violations: []AuditViolation{}}

	var pools []domain.FundingPool
	if err := db.WithContext(ctx).Find(&pools).Error; err != nil {
		return nil, err
	}

	for _, pool := range pools {
		report.PoolsChecked++

		var acct domain.EscrowAccount
		if err := db.WithContext(ctx).Where("pool_id = ?", pool.PoolID).First(&acct).Error; err != nil {
			report.Violations = append(report.Violations, AuditViolation{
				PoolID: pool.PoolID.String(),
				Detail: "escrow account missing",
			})
			continue
		}

		if acct.HeldAmount+acct.ReleasedAmount != pool.CurrentAmount {
			report.Violations = append(report.Violations, AuditViolation{
				PoolID: pool.PoolID.String(),
				Detail: fmt.Sprintf("custody sum mismatch: held %d + released %d != current %d",
					acct.HeldAmount, acct.ReleasedAmount, pool.CurrentAmount),
			})
		}

		var invested int64
		if err := db.WithContext(ctx).Model(&domain.Investment{}).
			Where("pool_id = ? AND reversed = ?", pool.PoolID, false).
			Select("COALESCE(SUM(amount), 0)").Scan(&invested).Error; err != nil {
			return nil, err
		}
		if invested != pool.CurrentAmount {
			report.Violations = append(report.Violations, AuditViolation{
				PoolID: pool.PoolID.String(),
				Detail: fmt.Sprintf("investment sum mismatch: sum %d != current %d", invested, pool.CurrentAmount),
			})
		}

		if pool.Status == domain.PoolStatusCancelled && acct.HeldAmount != 0 {
			report.Violations = append(report.Violations, AuditViolation{
				PoolID: pool.PoolID.String(),
				Detail: fmt.Sprintf("cancelled pool still holds %d in escrow", acct.HeldAmount),
			})
		}
	}

	report.Clean = len(report.Violations) == 0
	return report, nil
}
