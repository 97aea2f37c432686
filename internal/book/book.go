// Package book implements the price-indexed double-sided order book and
// the limit-order matching algorithm.
package book

import (
	"sort"

	"github.com/raidex-network/raidex-go/internal/crypto"
)

// Side identifies which side of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

// Entry is a published, CS-proven order visible for matching by remote
// nodes (the OrderBookEntry entity).
type Entry struct {
	OrderID    uint32
	Side       Side
	Price      float64
	BaseAmount uint64
	Initiator  crypto.Address
	Timeout    int64 // ms epoch
}

// View holds one side of the book (all buys, or all sells), ordered by
// (price, order_id) with a secondary index by order_id for O(1) lookup.
//
// Ordering is maintained with a sorted slice rather than a balanced tree:
// there is no sorted-map/balanced-tree library in the dependency set this
// module draws from, and at CORE's in-memory book sizes a slice with
// binary-search insertion is the idiomatic, dependency-free choice.
type View struct {
	entries []Entry
	byID    map[uint32]*Entry
}

// NewView returns an empty View.
func NewView() *View {
	return &View{byID: make(map[uint32]*Entry)}
}

func less(a, b Entry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.OrderID < b.OrderID
}

// Add inserts an entry, maintaining (price, order_id) order.
func (v *View) Add(e Entry) {
	idx := sort.Search(len(v.entries), func(i int) bool { return !less(v.entries[i], e) })
	v.entries = append(v.entries, Entry{})
	copy(v.entries[idx+1:], v.entries[idx:])
	v.entries[idx] = e
	v.byID[e.OrderID] = &v.entries[idx]
	v.reindex()
}

// reindex refreshes byID pointers after a slice reallocation/shift, since
// append/copy can move entries to new backing addresses.
func (v *View) reindex() {
	for i := range v.entries {
		v.byID[v.entries[i].OrderID] = &v.entries[i]
	}
}

// Remove deletes the entry with the given order id, if present.
func (v *View) Remove(orderID uint32) (Entry, bool) {
	entry, ok := v.byID[orderID]
	if !ok {
		return Entry{}, false
	}
	removed := *entry
	for i := range v.entries {
		if v.entries[i].OrderID == orderID {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			break
		}
	}
	delete(v.byID, orderID)
	v.reindex()
	return removed, true
}

// Get returns the entry with the given order id, if present.
func (v *View) Get(orderID uint32) (Entry, bool) {
	entry, ok := v.byID[orderID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Len returns the number of entries resting in this view.
func (v *View) Len() int { return len(v.entries) }

// EntriesAtOrBetter returns entries satisfying the direction-aware price
// predicate for an incoming order of the opposite side:
//   - incoming BUY matches resting sells priced <= p
//   - incoming SELL matches resting buys priced >= p
//
// This is the direction-aware predicate named correct by SPEC_FULL.md's
// resolution of the match_limit price-tier open question.
func (v *View) EntriesAtOrBetter(incoming Side, p float64) []Entry {
	var out []Entry
	for _, e := range v.entries {
		switch incoming {
		case Buy:
			if e.Price <= p {
				out = append(out, e)
			}
		case Sell:
			if e.Price >= p {
				out = append(out, e)
			}
		}
	}
	return out
}

// Book is the two-sided order book: a Buys view and a Sells view.
type Book struct {
	Buys  *View
	Sells *View
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{Buys: NewView(), Sells: NewView()}
}

// Insert adds an entry to the appropriate side.
func (b *Book) Insert(e Entry) {
	switch e.Side {
	case Buy:
		b.Buys.Add(e)
	case Sell:
		b.Sells.Add(e)
	}
}

// Contains reports whether an order id rests on either side of the book.
func (b *Book) Contains(orderID uint32) bool {
	if _, ok := b.Buys.Get(orderID); ok {
		return true
	}
	_, ok := b.Sells.Get(orderID)
	return ok
}

// Remove deletes an order id from whichever side it rests on.
func (b *Book) Remove(orderID uint32) (Entry, bool) {
	if e, ok := b.Buys.Remove(orderID); ok {
		return e, true
	}
	return b.Sells.Remove(orderID)
}

// Incoming is the order being matched against the book.
type Incoming struct {
	Side  Side
	Price float64
	Amount uint64
}

// MatchLimit runs the limit-order matching algorithm: it queries the
// opposite side of the book with the direction-aware price predicate,
// sorts candidates by base amount descending (largest-first greedy fill,
// minimizing counterparty count at the cost of perfect price-time
// priority), and greedily takes whole entries until the incoming amount is
// exhausted or no entry fits in the remainder.
//
// Returns the taken entries and the amount left unmatched. Conservation
// holds: sum(taken.BaseAmount) + left == order.Amount.
func MatchLimit(b *Book, order Incoming) (taken []Entry, amountLeft uint64) {
	var opposite *View
	switch order.Side {
	case Buy:
		opposite = b.Sells
	case Sell:
		opposite = b.Buys
	}

	candidates := opposite.EntriesAtOrBetter(order.Side, order.Price)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BaseAmount > candidates[j].BaseAmount
	})

	amountLeft = order.Amount
	for _, c := range candidates {
		if c.BaseAmount <= amountLeft {
			taken = append(taken, c)
			amountLeft -= c.BaseAmount
		}
	}
	return taken, amountLeft
}
