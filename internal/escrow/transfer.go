package escrow

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Transferer is the port to the token/fund-transfer backend. Implementations
// must be synchronous: a nil return means the movement is confirmed. The
// custodian never advances ledger state on an unconfirmed transfer.
type Transferer interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
}

// EscrowWallet is the custody address for a pool's escrow account.
func EscrowWallet(poolID uuid.UUID) string {
	return "escrow:" + poolID.String()
}

// LogTransferer is a stand-in backend for environments without a wired token
// rail. It confirms every transfer and logs the movement.
type LogTransferer struct{}

func (LogTransferer) Transfer(ctx context.Context, from, to string, amount int64) error {
	log.Info().Str("from", from).Str("to", to).Int64("amount", amount).Msg("transfer executed")
	return nil
}

// TransferCall records one movement through a RecordingTransferer.
type TransferCall struct {
	From   string
	To     string
	Amount int64
}

// RecordingTransferer records transfers and can be scripted to fail, for
// exercising the no-state-advance-on-failed-transfer path in tests.
type RecordingTransferer struct {
	mu       sync.Mutex
	Calls    []TransferCall
	FailNext error
}

func (r *RecordingTransferer) Transfer(ctx context.Context, from, to string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNext != nil {
		err := r.FailNext
		r.FailNext = nil
		return err
	}
	r.Calls = append(r.Calls, TransferCall{From: from, To: to, Amount: amount})
	return nil
}

// CallCount returns how many transfers were confirmed.
func (r *RecordingTransferer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// TotalTo sums confirmed transfer amounts into the given address.
func (r *RecordingTransferer) TotalTo(addr string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, c := range r.Calls {
		if c.To == addr {
			sum += c.Amount
		}
	}
	return sum
}
