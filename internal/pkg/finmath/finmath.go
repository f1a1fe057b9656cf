// Package finmath holds the pure fixed-point money math for the ledger:
// platform fees, simple interest, and exact pro-rata splitting. All amounts
// are int64 smallest currency units and all rates are integer basis points;
// nothing in here touches floating point.
package finmath

import (
	"errors"
	"time"
)

const (
	// BpsDenominator converts basis points to a fraction (1 bps = 1/10000).
	BpsDenominator = 10_000

	// SecondsPerYear is the fixed year length used for simple interest.
	SecondsPerYear = 365 * 24 * 60 * 60
)

var (
	// ErrNoContributions indicates a pro-rata split over an empty set.
	ErrNoContributions = errors.New("finmath: no contributions to split over")

	// ErrZeroContributions indicates the contribution sum is zero.
	ErrZeroContributions = errors.New("finmath: contribution sum is zero")

	// ErrNegativeAmount indicates a negative amount or rate input.
	ErrNegativeAmount = errors.New("finmath: negative amount")
)

// Contribution is one investor's recorded stake in a pool.
type Contribution struct {
	InvestorID  string
	Amount      int64
	CommittedAt time.Time
}

// Share is one investor's computed payout.
type Share struct {
	InvestorID string
	Payout     int64
}

// PlatformFee returns floor(amount * feeBps / 10000).
func PlatformFee(amount, feeBps int64) int64 {
	if amount <= 0 || feeBps <= 0 {
		return 0
	}
	return amount * feeBps / BpsDenominator
}

// ExpectedReturn returns principal plus simple (non-compounding) interest
// accrued over durationSeconds at rateBps per year.
func ExpectedReturn(principal, rateBps, durationSeconds int64) int64 {
	if principal <= 0 {
		return 0
	}
	if rateBps <= 0 || durationSeconds <= 0 {
		return principal
	}
	interest := principal * rateBps * durationSeconds / (BpsDenominator * SecondsPerYear)
	return principal + interest
}

// ProRataShares splits totalAmount across contributions proportionally.
// Each raw share is floored; the truncation residual (always >= 0 and smaller
// than the number of contributions) goes to the largest contribution, ties
// broken by earliest CommittedAt. The returned payouts always sum to
// totalAmount exactly; callers rely on that for custody conservation.
func ProRataShares(totalAmount int64, contributions []Contribution) ([]Share, error) {
	if totalAmount < 0 {
		return nil, ErrNegativeAmount
	}
	if len(contributions) == 0 {
		return nil, ErrNoContributions
	}

	var sum int64
	for _, c := range contributions {
		if c.Amount < 0 {
			return nil, ErrNegativeAmount
		}
		sum += c.Amount
	}
	if sum == 0 {
		return nil, ErrZeroContributions
	}

	shares := make([]Share, len(contributions))
	var distributed int64
	largest := 0
	for i, c := range contributions {
		shares[i] = Share{
			InvestorID: c.InvestorID,
			Payout:     totalAmount * c.Amount / sum,
		}
		distributed += shares[i].Payout
		if c.Amount > contributions[largest].Amount ||
			(c.Amount == contributions[largest].Amount && c.CommittedAt.Before(contributions[largest].CommittedAt)) {
			largest = i
		}
	}

	shares[largest].Payout += totalAmount - distributed
	return shares, nil
}
