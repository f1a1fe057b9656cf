package pool

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/technicaldee/locallift/internal/domain"
	"github.com/technicaldee/locallift/internal/escrow"
	"github.com/technicaldee/locallift/internal/pkg/apperr"
	"github.com/technicaldee/locallift/internal/pkg/finmath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service is the funding pool ledger. It exclusively owns CurrentAmount and
// Status mutation and serializes all mutating operations per pool: the
// check-then-commit sequence of Invest runs under a per-pool mutex, and the
// custody operations share that same lock so a pool can never be cancelled
// and funded-released concurrently. Pools never block each other.
type Service struct {
	DB           *gorm.DB
	Escrow       *escrow.Custodian
	MinRate      int64 // allowed interest band, basis points
	MaxRate      int64
	GraceSeconds int64 // grace past duration (from funding) before default

	locks sync.Map // pool uuid -> *sync.Mutex
}

func (s *Service) poolLock(poolID uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(poolID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreatePool opens a funding campaign against an active business.
func (s *Service) CreatePool(ctx context.Context, businessID string, targetAmount, durationSeconds, interestRateBps int64, purpose string) (*domain.FundingPool, error) {
	if targetAmount <= 0 {
		return nil, apperr.New(apperr.CodeInvalidParameters, "target amount must be positive")
	}
	if durationSeconds <= 0 {
		return nil, apperr.New(apperr.CodeInvalidParameters, "duration must be positive")
	}
	if interestRateBps < s.MinRate || interestRateBps > s.MaxRate {
		return nil, apperr.New(apperr.CodeInvalidParameters,
			"interest rate %d bps outside allowed band [%d, %d]", interestRateBps, s.MinRate, s.MaxRate)
	}

	var pool *domain.FundingPool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var business domain.Business
		if err := tx.Where("id = ?", businessID).First(&business).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.New(apperr.CodeNotFound, "business %s not found", businessID)
			}
			return err
		}
		if !business.Active {
			return apperr.New(apperr.CodeBusinessInactive, "business %s is deactivated", businessID)
		}

		pool = &domain.FundingPool{
			BusinessID:      businessID,
			Purpose:         purpose,
			TargetAmount:    targetAmount,
			InterestRateBps: interestRateBps,
			DurationSeconds: durationSeconds,
			OpenedAt:        time.Now(),
			Status:          domain.PoolStatusOpen,
		}
		if err := tx.Create(pool).Error; err != nil {
			return err
		}
		if err := s.Escrow.EnsureAccount(tx, pool.PoolID); err != nil {
			return err
		}
		return s.recordEvent(tx, pool.PoolID, domain.PoolEventCreated, map[string]interface{}{
			"business_id":       businessID,
			"target_amount":     targetAmount,
			"duration_seconds":  durationSeconds,
			"interest_rate_bps": interestRateBps,
		})
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Invest commits amount for investorID into the pool. Serialized per pool:
// for remaining capacity R, concurrently accepted investments never sum past
// R and an investment that would overshoot is rejected whole, never clipped.
func (s *Service) Invest(ctx context.Context, poolID uuid.UUID, investorID string, amount int64) (*domain.Investment, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.CodeInvalidParameters, "investment amount must be positive")
	}

	mu := s.poolLock(poolID)
	mu.Lock()
	defer mu.Unlock()

	// Expiry is observed lazily: an open pool past its duration auto-cancels
	// (committed in its own transaction) and the investment is rejected.
	expired, err := s.expireIfDue(ctx, poolID)
	if err != nil {
		s.haltOnViolation(poolID, err)
		return nil, err
	}
	if expired {
		return nil, apperr.New(apperr.CodePoolExpired, "pool %s expired", poolID)
	}

	var inv *domain.Investment
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Status != domain.PoolStatusOpen {
			return apperr.New(apperr.CodePoolNotOpen, "pool %s is %s", poolID, pool.Status)
		}
		remaining := pool.TargetAmount - pool.CurrentAmount
		if amount > remaining {
			return apperr.New(apperr.CodeExceedsCapacity, "amount %d exceeds remaining capacity %d", amount, remaining)
		}

		inv = &domain.Investment{
			PoolID:      poolID,
			InvestorID:  investorID,
			Amount:      amount,
			CommittedAt: time.Now(),
		}
		if err := tx.Create(inv).Error; err != nil {
			return err
		}

		pool.CurrentAmount += amount
		if pool.CurrentAmount == pool.TargetAmount {
			now := time.Now()
			pool.Status = domain.PoolStatusFunded
			pool.FundedAt = &now
		}
		if err := tx.Save(pool).Error; err != nil {
			return err
		}

		if err := s.Escrow.Deposit(ctx, tx, pool, inv); err != nil {
			return err
		}

		if err := s.recordEvent(tx, poolID, domain.PoolEventInvested, map[string]interface{}{
			"investor_id":    investorID,
			"amount":         amount,
			"current_amount": pool.CurrentAmount,
		}); err != nil {
			return err
		}
		if pool.Status == domain.PoolStatusFunded {
			if err := s.recordEvent(tx, poolID, domain.PoolEventFunded, map[string]interface{}{
				"target_amount": pool.TargetAmount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.haltOnViolation(poolID, err)
		return nil, err
	}
	return inv, nil
}

// Cancel aborts an open pool and refunds every investor in full.
func (s *Service) Cancel(ctx context.Context, poolID uuid.UUID) error {
	mu := s.poolLock(poolID)
	mu.Lock()
	defer mu.Unlock()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Status != domain.PoolStatusOpen {
			return apperr.New(apperr.CodeInvalidPoolState, "cannot cancel pool %s in state %s", poolID, pool.Status)
		}
		return s.cancelLocked(ctx, tx, pool)
	})
	s.haltOnViolation(poolID, err)
	return err
}

// cancelLocked transitions an open pool to cancelled and refunds escrow.
// Caller holds the pool lock and the transaction.
func (s *Service) cancelLocked(ctx context.Context, tx *gorm.DB, pool *domain.FundingPool) error {
	var investments []domain.Investment
	if err := tx.Where("pool_id = ? AND reversed = ?", pool.PoolID, false).
		Order("committed_at asc").Find(&investments).Error; err != nil {
		return err
	}
	if err := s.Escrow.RefundAll(ctx, tx, pool, investments); err != nil {
		return err
	}

	refunded := pool.CurrentAmount
	pool.CurrentAmount = 0
	pool.Status = domain.PoolStatusCancelled
	if err := tx.Save(pool).Error; err != nil {
		return err
	}
	return s.recordEvent(tx, pool.PoolID, domain.PoolEventCancelled, map[string]interface{}{
		"refunded_amount": refunded,
		"investor_count":  len(investments),
	})
}

// ReleasePrincipal draws the escrowed principal down to the business custody
// wallet (minus platform fee) and starts the repayment clock.
func (s *Service) ReleasePrincipal(ctx context.Context, poolID uuid.UUID) (released, fee int64, err error) {
	mu := s.poolLock(poolID)
	mu.Lock()
	defer mu.Unlock()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Status != domain.PoolStatusFunded {
			return apperr.New(apperr.CodeInvalidPoolState, "cannot release principal for pool %s in state %s", poolID, pool.Status)
		}
		var business domain.Business
		if err := tx.Where("id = ?", pool.BusinessID).First(&business).Error; err != nil {
			return err
		}

		released, fee, err = s.Escrow.ReleasePrincipal(ctx, tx, pool, business.CustodyWallet)
		if err != nil {
			return err
		}

		pool.Status = domain.PoolStatusRepaying
		if err := tx.Save(pool).Error; err != nil {
			return err
		}
		return s.recordEvent(tx, poolID, domain.PoolEventReleased, map[string]interface{}{
			"released_amount": released,
			"platform_fee":    fee,
		})
	})
	if err != nil {
		s.haltOnViolation(poolID, err)
		return 0, 0, err
	}
	return released, fee, nil
}

// SettleRepayment settles a repaying pool in full: the business pays
// principal + interest back through escrow and every investor receives an
// exact pro-rata share. Idempotent on (poolID, batchID): replaying a settled
// batch returns the recorded disbursements with no further fund movement.
func (s *Service) SettleRepayment(ctx context.Context, poolID uuid.UUID, totalRepayment int64, batchID string) ([]domain.Disbursement, error) {
	if totalRepayment <= 0 {
		return nil, apperr.New(apperr.CodeInvalidParameters, "repayment amount must be positive")
	}
	if batchID == "" {
		batchID = uuid.New().String()
	}

	mu := s.poolLock(poolID)
	mu.Lock()
	defer mu.Unlock()

	// Idempotent replay: a batch that already disbursed is returned as-is.
	var existing []domain.Disbursement
	if err := s.DB.WithContext(ctx).
		Where("pool_id = ? AND batch_id = ?", poolID, batchID).
		Find(&existing).Error; err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	// A repaying pool past duration + grace defaults instead of settling.
	// The default is committed on its own before the rejection is returned.
	defaulted, err := s.defaultIfPastGrace(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if defaulted {
		return nil, apperr.New(apperr.CodeInvalidPoolState, "pool %s defaulted: grace period elapsed before settlement", poolID)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Status != domain.PoolStatusRepaying {
			return apperr.New(apperr.CodeInvalidPoolState, "cannot settle pool %s in state %s", poolID, pool.Status)
		}

		due := finmath.ExpectedReturn(pool.CurrentAmount, pool.InterestRateBps, pool.DurationSeconds)
		if totalRepayment < due {
			return apperr.New(apperr.CodeInvalidParameters,
				"repayment %d below amount due %d (principal + interest)", totalRepayment, due)
		}

		contributions, err := s.contributions(tx, poolID)
		if err != nil {
			return err
		}

		var business domain.Business
		if err := tx.Where("id = ?", pool.BusinessID).First(&business).Error; err != nil {
			return err
		}

		if err := s.Escrow.SettleRepayment(ctx, tx, pool, business.CustodyWallet, contributions, totalRepayment, batchID); err != nil {
			return err
		}

		pool.Status = domain.PoolStatusCompleted
		if err := tx.Save(pool).Error; err != nil {
			return err
		}
		return s.recordEvent(tx, poolID, domain.PoolEventSettled, map[string]interface{}{
			"total_repayment": totalRepayment,
			"batch_id":        batchID,
		})
	})
	if err != nil {
		s.haltOnViolation(poolID, err)
		return nil, err
	}

	var batch []domain.Disbursement
	if err := s.DB.WithContext(ctx).
		Where("pool_id = ? AND batch_id = ?", poolID, batchID).
		Find(&batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

// MarkDefaulted records that a repaying pool failed to settle.
func (s *Service) MarkDefaulted(ctx context.Context, poolID uuid.UUID) error {
	mu := s.poolLock(poolID)
	mu.Lock()
	defer mu.Unlock()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Status != domain.PoolStatusRepaying {
			return apperr.New(apperr.CodeInvalidPoolState, "cannot default pool %s in state %s", poolID, pool.Status)
		}
		return s.markDefaultedLocked(tx, pool, "explicit operator action")
	})
}

func (s *Service) markDefaultedLocked(tx *gorm.DB, pool *domain.FundingPool, reason string) error {
	pool.Status = domain.PoolStatusDefaulted
	if err := tx.Save(pool).Error; err != nil {
		return err
	}
	return s.recordEvent(tx, pool.PoolID, domain.PoolEventDefaulted, map[string]interface{}{
		"reason": reason,
	})
}

// pastGrace reports whether a funded pool has outrun duration + grace.
func (s *Service) pastGrace(pool *domain.FundingPool) bool {
	if pool.FundedAt == nil {
		return false
	}
	deadline := pool.FundedAt.Add(time.Duration(pool.DurationSeconds+s.GraceSeconds) * time.Second)
	return time.Now().After(deadline)
}

// expireIfDue cancels an open pool whose duration has lapsed. Caller holds
// the pool lock. Returns true when the pool was (or had already been)
// auto-cancelled for expiry.
func (s *Service) expireIfDue(ctx context.Context, poolID uuid.UUID) (bool, error) {
	expired := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Status != domain.PoolStatusOpen || !time.Now().After(pool.ExpiresAt()) {
			return nil
		}
		expired = true
		return s.cancelLocked(ctx, tx, pool)
	})
	return expired, err
}

// defaultIfPastGrace marks a repaying pool defaulted once duration + grace
// has lapsed since funding. Caller holds the pool lock.
func (s *Service) defaultIfPastGrace(ctx context.Context, poolID uuid.UUID) (bool, error) {
	defaulted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Status != domain.PoolStatusRepaying || !s.pastGrace(pool) {
			return nil
		}
		defaulted = true
		return s.markDefaultedLocked(tx, pool, "grace period elapsed before settlement")
	})
	return defaulted, err
}

// SweepExpired auto-cancels every open pool past its duration. Returns the
// number of pools cancelled. Exposed through an admin route; the same lazy
// check also runs inside Invest.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	var candidates []domain.FundingPool
	if err := s.DB.WithContext(ctx).
		Where("status = ?", domain.PoolStatusOpen).
		Find(&candidates).Error; err != nil {
		return 0, err
	}

	swept := 0
	for _, p := range candidates {
		if !time.Now().After(p.ExpiresAt()) {
			continue
		}
		mu := s.poolLock(p.PoolID)
		mu.Lock()
		expired, err := s.expireIfDue(ctx, p.PoolID)
		mu.Unlock()
		if err != nil {
			s.haltOnViolation(p.PoolID, err)
			log.Error().Err(err).Str("pool_id", p.PoolID.String()).Msg("expired pool sweep failed")
			continue
		}
		if expired {
			swept++
		}
	}
	return swept, nil
}

// Get returns a read-only snapshot of the pool.
func (s *Service) Get(ctx context.Context, poolID uuid.UUID) (*domain.FundingPool, error) {
	var pool domain.FundingPool
	if err := s.DB.WithContext(ctx).Where("pool_id = ?", poolID).First(&pool).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.CodeNotFound, "pool %s not found", poolID)
		}
		return nil, err
	}
	return &pool, nil
}

// ClearHalt re-enables a halted pool after manual investigation (admin).
func (s *Service) ClearHalt(ctx context.Context, poolID uuid.UUID) error {
	mu := s.poolLock(poolID)
	mu.Lock()
	defer mu.Unlock()
	return s.Escrow.ClearHalt(s.DB.WithContext(ctx), poolID)
}

// contributions aggregates non-reversed investments per investor, keeping
// the earliest commit time for residual tie-breaking.
func (s *Service) contributions(tx *gorm.DB, poolID uuid.UUID) ([]finmath.Contribution, error) {
	var investments []domain.Investment
	if err := tx.Where("pool_id = ? AND reversed = ?", poolID, false).
		Order("committed_at asc").Find(&investments).Error; err != nil {
		return nil, err
	}

	byInvestor := map[string]int{}
	var out []finmath.Contribution
	for _, inv := range investments {
		if idx, ok := byInvestor[inv.InvestorID]; ok {
			out[idx].Amount += inv.Amount
			continue
		}
		byInvestor[inv.InvestorID] = len(out)
		out = append(out, finmath.Contribution{
			InvestorID:  inv.InvestorID,
			Amount:      inv.Amount,
			CommittedAt: inv.CommittedAt,
		})
	}
	return out, nil
}

func (s *Service) loadPool(tx *gorm.DB, poolID uuid.UUID) (*domain.FundingPool, error) {
	var pool domain.FundingPool
	if err := tx.Where("pool_id = ?", poolID).First(&pool).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.CodeNotFound, "pool %s not found", poolID)
		}
		return nil, err
	}
	return &pool, nil
}

// haltOnViolation persists the escrow halt flag after a custody fault. The
// violating transaction has already rolled back; the halt itself must stick
// so further mutations on the pool are refused until manually cleared.
func (s *Service) haltOnViolation(poolID uuid.UUID, err error) {
	if !apperr.Is(err, apperr.CodeInvariantViolation) {
		return
	}
	if hErr := s.Escrow.Halt(s.DB, poolID); hErr != nil {
		log.Error().Err(hErr).Str("pool_id", poolID.String()).Msg("failed to persist escrow halt")
		return
	}
	data, _ := json.Marshal(map[string]interface{}{"error": err.Error()})
	if eErr := s.DB.Create(&domain.PoolEvent{
		PoolID:    poolID,
		EventType: domain.PoolEventHalted,
		EventData: datatypes.JSON(data),
	}).Error; eErr != nil {
		log.Error().Err(eErr).Str("pool_id", poolID.String()).Msg("failed to record halt event")
	}
}

func (s *Service) recordEvent(tx *gorm.DB, poolID uuid.UUID, eventType string, data map[string]interface{}) error {
	b, _ := json.Marshal(data)
	return tx.Create(&domain.PoolEvent{
		PoolID:    poolID,
		EventType: eventType,
		EventData: datatypes.JSON(b),
	}).Error
}
