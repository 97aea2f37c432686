package commitment

import (
	"github.com/raidex-network/raidex-go/internal/codec"
	"github.com/raidex-network/raidex-go/internal/events"
	"github.com/raidex-network/raidex-go/internal/trader"
)

// Trade is the CS-issued record binding a maker and taker order at a
// specific amount, carrying the hash-lock secret. Trades live in a single
// arena keyed by trade id; Swaps reference them by id only, never by
// pointer, so two Swaps sharing a Trade never form a reference cycle.
type Trade struct {
	TradeID      events.TradeID
	MakerOrderID uint32
	TakerOrderID uint32
	Amount       uint64
	Secret       [32]byte
	SecretHash   [32]byte
}

// TradeArena owns every Trade by id.
type TradeArena struct {
	trades map[events.TradeID]*Trade
}

// NewTradeArena returns an empty TradeArena.
func NewTradeArena() *TradeArena {
	return &TradeArena{trades: make(map[events.TradeID]*Trade)}
}

// Put stores a trade, keyed by its id.
func (a *TradeArena) Put(t *Trade) { a.trades[t.TradeID] = t }

// Get looks up a trade by id.
func (a *TradeArena) Get(id events.TradeID) (*Trade, bool) {
	t, ok := a.trades[id]
	return t, ok
}

// Swap is the CS's per-order_id coordination record: it receives
// commitments from a maker and a taker, issues CommitmentProofs, tracks
// inbound receipts, and tracks which trades (by id, via the shared arena)
// it has been matched into.
type Swap struct {
	machine *swapMachine

	OrderID uint32
	Amount  uint64

	MakerCommitment *codec.Commitment
	TakerCommitment *codec.Commitment
	MakerProof      *codec.CommitmentProof
	TakerProof      *codec.CommitmentProof
	MakerReceipt    *trader.TransferReceipt
	TakerReceipt    *trader.TransferReceipt

	// TradeIDs indexes into the shared TradeArena; this Swap does not own
	// the Trade values.
	TradeIDs []events.TradeID

	Canceled bool

	// secret is generated once, at the maker leg's proof time, and reused
	// for the taker leg's proof so both CommitmentProofs carry the same
	// secret/secret_hash pair (§8 secret consistency).
	secret [32]byte
}

func newSwap(orderID uint32, amount uint64) *Swap {
	return &Swap{machine: newSwapMachine(), OrderID: orderID, Amount: amount}
}

// State returns the swap's current FSM state.
func (s *Swap) State() SwapState { return s.machine.state }

// AmountLeft computes amount - sum(trade.Amount for trade in s.TradeIDs),
// resolving the matched trades against arena. This is the corrected
// formula from SPEC_FULL.md's open question #2: the original subtracted
// trade ids (map keys) from amount, which is meaningless once ids are
// 32-byte random values.
func (s *Swap) AmountLeft(arena *TradeArena) uint64 {
	var sum uint64
	for _, id := range s.TradeIDs {
		if t, ok := arena.Get(id); ok {
			sum += t.Amount
		}
	}
	if sum >= s.Amount {
		return 0
	}
	return s.Amount - sum
}

// IsMatchable reports whether this swap can still be matched into new
// trades: it has remaining amount and has not been canceled (Matcher's
// is_matchable condition, §4.3).
func (s *Swap) IsMatchable(arena *TradeArena) bool {
	return !s.Canceled && s.AmountLeft(arena) > 0
}

// SuccessMessage fires "success_message" for the given party ("maker" or
// "taker").
func (s *Swap) SuccessMessage(party string) (SwapState, bool) {
	return s.machine.fire(triggerSuccessMessage, party)
}

// TimeoutFired fires the unconditional "timeout" trigger.
func (s *Swap) TimeoutFired() (SwapState, bool) {
	return s.machine.fire(triggerTimeout, "")
}
