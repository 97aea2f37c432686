// Package events defines the two logical streams the dispatcher routes:
// outward-facing Events (actions the rest of the system should perform)
// and inward-facing StateChanges (facts applied to the DataManager's FSMs
// and book). Both are plain data; nothing in this package performs I/O.
package events

import (
	"math/big"

	"github.com/raidex-network/raidex-go/internal/crypto"
)

// TradeID is the CS-issued 32-byte random identifier shared by both sides
// of a trade.
type TradeID = crypto.Hash

// Event is implemented by every outward-facing action event.
type Event interface{ isEvent() }

// CommitEvent requests that the CommitmentClient send a signed Commitment
// to the CS and deposit fee tokens, keyed by order id.
type CommitEvent struct{ OrderID uint32 }

// CommitmentProvedEvent reports that a CommitmentProof was received and
// stored on an order.
type CommitmentProvedEvent struct{ OrderID uint32 }

// ReceivedInboundEvent reports that an inbound transfer satisfying a trade
// was observed.
type ReceivedInboundEvent struct {
	OrderID uint32
	TradeID TradeID
}

// CancellationRequestEvent requests that a Cancellation message be sent for
// an order whose timeout fired before it completed.
type CancellationRequestEvent struct{ OrderID uint32 }

// SendProvenOrderEvent requests a broadcast of a maker's ProvenOrder.
type SendProvenOrderEvent struct{ OrderID uint32 }

// CancellationEvent requests that a Cancellation message be sent.
type CancellationEvent struct{ OrderID uint32 }

// CommitmentEvent requests that a Commitment message be sent for a specific
// trade-bearing order (used by the taker path).
type CommitmentEvent struct{ OrderID uint32 }

// SwapInitEvent requests that the trader begin the off-chain asset
// transfer for a trade.
type SwapInitEvent struct{ TradeID TradeID }

// ExpectInboundEvent arms a timer/listener for the counterparty's transfer
// on a trade.
type ExpectInboundEvent struct{ TradeID TradeID }

// SendExecutedEvent requests that a SwapExecution message be sent to the CS.
type SendExecutedEvent struct {
	OrderID   uint32
	Timestamp *big.Int
}

func (CommitEvent) isEvent()               {}
func (CommitmentProvedEvent) isEvent()      {}
func (ReceivedInboundEvent) isEvent()       {}
func (CancellationRequestEvent) isEvent()   {}
func (SendProvenOrderEvent) isEvent()       {}
func (CancellationEvent) isEvent()          {}
func (CommitmentEvent) isEvent()            {}
func (SwapInitEvent) isEvent()              {}
func (ExpectInboundEvent) isEvent()         {}
func (SendExecutedEvent) isEvent()          {}

// StateChange is implemented by every inward-facing fact applied against
// the DataManager.
type StateChange interface{ isStateChange() }

// NewLimitOrderStateChange records a freshly created local or remote order.
type NewLimitOrderStateChange struct{ OrderID uint32 }

// CancelLimitOrderStateChange records a user- or timeout-driven cancel
// request for an order.
type CancelLimitOrderStateChange struct{ OrderID uint32 }

// OfferPublishedStateChange records that an order was broadcast as a
// ProvenOrder.
type OfferPublishedStateChange struct{ OrderID uint32 }

// CommitmentProofStateChange records receipt of a CommitmentProof for an
// order.
type CommitmentProofStateChange struct{ OrderID uint32 }

// CancellationProofStateChange records receipt of a CancellationProof for
// an order.
type CancellationProofStateChange struct{ OrderID uint32 }

// NewTradeStateChange records a CS-issued Trade matching a maker and taker
// order.
type NewTradeStateChange struct {
	TradeID       TradeID
	MakerOrderID  uint32
	TakerOrderID  uint32
	IsOwnOrderMaker bool
}

// OwnOrderID resolves which order id belongs to this node for a given
// trade, per SPEC_FULL.md's resolution of the handle_new_trade typo: the
// taker branch reads TakerOrderID, not a repeated MakerOrderID.
func (c NewTradeStateChange) OwnOrderID() uint32 {
	if c.IsOwnOrderMaker {
		return c.MakerOrderID
	}
	return c.TakerOrderID
}

// OrderTimeoutStateChange records a timer firing for an order or book
// entry.
type OrderTimeoutStateChange struct{ OrderID uint32 }

// TransferReceivedStateChange records an inbound TransferReceipt from the
// trader.
type TransferReceivedStateChange struct {
	Identifier uint32 // 32-bit order id the transfer was tagged with
	Amount     uint64
	Initiator  crypto.Address
}

// PaymentFailedStateChange records a failed attempt to pay into the CS or
// a counterparty.
type PaymentFailedStateChange struct{ OrderID uint32 }

func (NewLimitOrderStateChange) isStateChange()      {}
func (CancelLimitOrderStateChange) isStateChange()   {}
func (OfferPublishedStateChange) isStateChange()     {}
func (CommitmentProofStateChange) isStateChange()    {}
func (CancellationProofStateChange) isStateChange()  {}
func (NewTradeStateChange) isStateChange()           {}
func (OrderTimeoutStateChange) isStateChange()       {}
func (TransferReceivedStateChange) isStateChange()   {}
func (PaymentFailedStateChange) isStateChange()      {}
