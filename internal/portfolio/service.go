package portfolio

import (
	"context"

	"github.com/technicaldee/locallift/internal/domain"
	"github.com/technicaldee/locallift/internal/pkg/finmath"

	"gorm.io/gorm"
)

// Service is the read-only investor portfolio view: investment history plus
// aggregate stats. It never mutates ledger state.
type Service struct {
	DB *gorm.DB
}

// Position is one investment joined with its pool's visible state.
type Position struct {
	Investment     domain.Investment `json:"investment"`
	PoolStatus     string            `json:"pool_status"`
	BusinessID     string            `json:"business_id"`
	ExpectedReturn int64             `json:"expected_return"`
}

// Stats aggregates an investor's portfolio. AverageReturnBps keeps rate math
// in basis points like everything else in the ledger.
type Stats struct {
	TotalInvested        int64 `json:"total_invested"`
	ExpectedInterest     int64 `json:"expected_interest"`
	ActiveInvestments    int   `json:"active_investments"`
	CompletedInvestments int   `json:"completed_investments"`
	ReversedInvestments  int   `json:"reversed_investments"`
	AverageReturnBps     int64 `json:"average_return_bps"`
	BusinessesBacked     int   `json:"businesses_backed"`
}

// Portfolio returns an investor's positions newest-first with aggregate stats.
func (s *Service) Portfolio(ctx context.Context, investorID string) ([]Position, *Stats, error) {
	var investments []domain.Investment
	if err := s.DB.WithContext(ctx).
		Where("investor_id = ?", investorID).
		Order("committed_at desc").
		Find(&investments).Error; err != nil {
		return nil, nil, err
	}

	positions := make([]Position, 0, len(investments))
	stats := &Stats{}
	businesses := map[string]struct{}{}

	for _, inv := range investments {
		var pool domain.FundingPool
		if err := s.DB.WithContext(ctx).Where("pool_id = ?", inv.PoolID).First(&pool).Error; err != nil {
			return nil, nil, err
		}

		expected := finmath.ExpectedReturn(inv.Amount, pool.InterestRateBps, pool.DurationSeconds)
		positions = append(positions, Position{
			Investment:     inv,
			PoolStatus:     pool.Status,
			BusinessID:     pool.BusinessID,
			ExpectedReturn: expected,
		})

		if inv.Reversed {
			stats.ReversedInvestments++
			continue
		}
		stats.TotalInvested += inv.Amount
		businesses[pool.BusinessID] = struct{}{}
		switch pool.Status {
		case domain.PoolStatusCompleted:
			stats.CompletedInvestments++
		case domain.PoolStatusOpen, domain.PoolStatusFunded, domain.PoolStatusRepaying:
			stats.ActiveInvestments++
		}
		stats.ExpectedInterest += expected - inv.Amount
	}

	stats.BusinessesBacked = len(businesses)
	if stats.TotalInvested > 0 {
		stats.AverageReturnBps = stats.ExpectedInterest * finmath.BpsDenominator / stats.TotalInvested
	}
	return positions, stats, nil
}
