package order

import (
	"math/big"

	"github.com/raidex-network/raidex-go/internal/codec"
	"github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/events"
)

// Order states (hierarchical: "open.*" substates, plus the terminal
// "completed" and "canceled").
const (
	StateOpenCreated               State = "open.created"
	StateOpenUnproved              State = "open.unproved"
	StateOpenProved                State = "open.proved"
	StateOpenPublished              State = "open.published"
	StateOpenCancellationRequested  State = "open.cancellation_requested"
	StateCompleted                 State = "completed"
	StateCanceled                  State = "canceled"
)

// Order triggers.
const (
	TriggerInitiating              = "initiating"
	TriggerReceiveCommitmentProof  = "receive_commitment_proof"
	TriggerPaymentFailed           = "payment_failed"
	TriggerReceivedOffer           = "received_offer"
	TriggerTimeout                 = "timeout"
	TriggerReceiveCancellationProof = "receive_cancellation_proof"
	TriggerReceivedInbound         = "received_inbound"
)

// OrderTable is the static transition table for the Order FSM (§4.1).
var OrderTable = []Transition{
	{Trigger: TriggerInitiating, From: StateOpenCreated, To: StateOpenUnproved},
	{Trigger: TriggerReceiveCommitmentProof, From: StateOpenUnproved, To: StateOpenProved},
	{Trigger: TriggerPaymentFailed, From: StateOpenUnproved, To: StateOpenUnproved},
	{Trigger: TriggerReceivedOffer, From: StateOpenProved, To: StateOpenPublished},
	{Trigger: TriggerTimeout, From: "open.*", To: StateOpenCancellationRequested},
	{Trigger: TriggerReceiveCancellationProof, From: "open.*", To: StateCanceled},
	{Trigger: TriggerReceivedInbound, From: StateOpenPublished, To: StateCompleted},
}

// Type is the order side.
type Type int

const (
	BuyOrder Type = iota
	SellOrder
)

// Order is a LimitOrder plus its Order FSM. Each Order exclusively owns
// its Trade records, keyed by trade id.
type Order struct {
	machine *Machine

	OrderID    uint32
	Type       Type
	BaseAmount uint64
	Price      float64
	Timeout    *big.Int

	CommitmentProof  *codec.CommitmentProof
	CancellationProof *codec.CommitmentProof

	// Trades maps trade id to the base amount that trade fills. Amounts
	// here are owned exclusively by this Order; the CS's Swap objects hold
	// references to the same trade ids, not these amounts.
	Trades map[events.TradeID]uint64
}

// New creates an Order in its initial state.
func New(orderID uint32, typ Type, baseAmount uint64, price float64, timeout *big.Int) *Order {
	return &Order{
		machine:    NewMachine(OrderTable, StateOpenCreated),
		OrderID:    orderID,
		Type:       typ,
		BaseAmount: baseAmount,
		Price:      price,
		Timeout:    timeout,
		Trades:     make(map[events.TradeID]uint64),
	}
}

// State returns the order's current FSM state.
func (o *Order) State() State { return o.machine.State() }

// AmountTraded sums the base amount filled by completed trades recorded so
// far.
func (o *Order) AmountTraded() uint64 {
	var sum uint64
	for _, amt := range o.Trades {
		sum += amt
	}
	return sum
}

// IsFilled holds when the sum of completed trades' base amount equals the
// order's base amount — the received_inbound guard condition from §4.1.
func (o *Order) IsFilled() bool {
	return o.AmountTraded() == o.BaseAmount
}

// Initiate fires the "initiating" trigger, moving open.created ->
// open.unproved, and returns the CommitEvent side effect the caller must
// dispatch.
func (o *Order) Initiate() (events.Event, bool) {
	if _, ok := o.machine.Fire(TriggerInitiating); !ok {
		return nil, false
	}
	return events.CommitEvent{OrderID: o.OrderID}, true
}

// ReceiveCommitmentProof fires "receive_commitment_proof", storing proof on
// the order and moving open.unproved -> open.proved.
func (o *Order) ReceiveCommitmentProof(proof codec.CommitmentProof) (events.Event, bool) {
	if _, ok := o.machine.Fire(TriggerReceiveCommitmentProof); !ok {
		return nil, false
	}
	o.CommitmentProof = &proof
	return events.CommitmentProvedEvent{OrderID: o.OrderID}, true
}

// PaymentFailed fires "payment_failed", a self-loop retry in open.unproved.
func (o *Order) PaymentFailed() bool {
	_, ok := o.machine.Fire(TriggerPaymentFailed)
	return ok
}

// ReceivedOffer fires "received_offer", moving open.proved ->
// open.published. The broadcast itself is performed separately by the
// caller (§4.1: "broadcast done separately").
func (o *Order) ReceivedOffer() bool {
	_, ok := o.machine.Fire(TriggerReceivedOffer)
	return ok
}

// TimeoutFired fires "timeout" from any open.* substate, moving to
// open.cancellation_requested, and returns the CancellationRequestEvent
// side effect.
func (o *Order) TimeoutFired() (events.Event, bool) {
	if _, ok := o.machine.Fire(TriggerTimeout); !ok {
		return nil, false
	}
	return events.CancellationRequestEvent{OrderID: o.OrderID}, true
}

// ReceiveCancellationProof fires "receive_cancellation_proof" from any
// open.* substate, moving to the terminal canceled state.
func (o *Order) ReceiveCancellationProof(proof codec.CommitmentProof) bool {
	if _, ok := o.machine.Fire(TriggerReceiveCancellationProof); !ok {
		return false
	}
	o.CancellationProof = &proof
	return true
}

// ReceivedInbound records a completed trade's fill amount and, if the order
// is now fully filled, fires "received_inbound" to reach the terminal
// completed state.
func (o *Order) ReceivedInbound(tradeID events.TradeID, amount uint64) bool {
	o.Trades[tradeID] = amount
	if !o.IsFilled() {
		return false
	}
	_, ok := o.machine.Fire(TriggerReceivedInbound)
	return ok
}

// Address is re-exported for convenience in callers that only import this
// package.
type Address = crypto.Address
