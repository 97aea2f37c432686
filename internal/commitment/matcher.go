package commitment

import (
	"crypto/rand"
	"errors"

	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/events"
)

// ErrSwapsNotMatchable is returned when Match is asked to pair a swap that
// is canceled or has no remaining amount.
var ErrSwapsNotMatchable = errors.New("commitment: swap is not matchable")

// Matcher pairs a maker swap and a taker swap into a shared Trade, storing
// it in the arena both swaps index into.
type Matcher struct {
	arena *TradeArena
}

// NewMatcher returns a Matcher backed by arena.
func NewMatcher(arena *TradeArena) *Matcher {
	return &Matcher{arena: arena}
}

// IsMatchable reports whether s can still be matched into a new trade
// (§4.3 Matcher.is_matchable: remaining > 0 and not canceled).
func (m *Matcher) IsMatchable(s *Swap) bool {
	return s.IsMatchable(m.arena)
}

// Match pairs maker and taker into a new Trade of amount
// min(maker.AmountLeft, taker.AmountLeft), with a fresh random 32-byte
// trade id and hash-lock secret shared by both swaps.
func (m *Matcher) Match(maker, taker *Swap) (*Trade, error) {
	if !m.IsMatchable(maker) || !m.IsMatchable(taker) {
		return nil, ErrSwapsNotMatchable
	}

	makerLeft := maker.AmountLeft(m.arena)
	takerLeft := taker.AmountLeft(m.arena)
	amount := makerLeft
	if takerLeft < amount {
		amount = takerLeft
	}

	var tradeID events.TradeID
	if _, err := rand.Read(tradeID[:]); err != nil {
		return nil, err
	}
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, err
	}
	secretHash := raidexcrypto.Keccak256(secret[:])

	trade := &Trade{
		TradeID:      tradeID,
		MakerOrderID: maker.OrderID,
		TakerOrderID: taker.OrderID,
		Amount:       amount,
		Secret:       secret,
		SecretHash:   [32]byte(secretHash),
	}

	m.arena.Put(trade)
	maker.TradeIDs = append(maker.TradeIDs, tradeID)
	taker.TradeIDs = append(taker.TradeIDs, tradeID)

	return trade, nil
}
