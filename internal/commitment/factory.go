package commitment

import (
	"errors"
	"math/big"
	"sync"

	"github.com/raidex-network/raidex-go/internal/codec"
)

// ErrSwapAlreadyHasTaker is returned when a third Commitment arrives for an
// order_id that already has both a maker and a taker leg.
var ErrSwapAlreadyHasTaker = errors.New("commitment: swap already has a taker commitment")

// Factory creates and dispatches Swaps from inbound commitments, enforcing
// the at-most-one-swap-per-id invariant (§8): the first Commitment for an
// order_id creates the Swap as its maker leg; a second Commitment with the
// same order_id is routed as that swap's taker leg.
type Factory struct {
	mu    sync.Mutex
	swaps map[uint32]*Swap
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{swaps: make(map[uint32]*Swap)}
}

// HandleCommitment processes an inbound signed Commitment, returning the
// Swap it was routed to and whether this commitment was the maker
// (first) leg.
func (f *Factory) HandleCommitment(commitment codec.Commitment) (swap *Swap, isMaker bool, err error) {
	orderID := commitment.Payload.OrderID

	f.mu.Lock()
	defer f.mu.Unlock()

	swap, exists := f.swaps[orderID]
	if !exists {
		swap = newSwap(orderID, amountToUint64(commitment.Payload.Amount))
		swap.MakerCommitment = &commitment
		f.swaps[orderID] = swap
		return swap, true, nil
	}
	if swap.TakerCommitment != nil {
		return nil, false, ErrSwapAlreadyHasTaker
	}
	swap.TakerCommitment = &commitment
	return swap, false, nil
}

func amountToUint64(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

// Get returns the swap for order_id, if any.
func (f *Factory) Get(orderID uint32) (*Swap, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.swaps[orderID]
	return s, ok
}

// Cleanup removes a swap once it has reached a terminal state
// (completed or timeout), matching the source's cleanup_swap.
func (f *Factory) Cleanup(orderID uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.swaps, orderID)
}
