// Package node wires the trading-node role's subsystems together:
// Transport → OrderBook → MatchingEngine → DataManager → OrderFSM/TradeFSM
// → CommitmentClient → Trader (§2). Node owns the lifecycle; DataManager
// owns the FSM state and is the only goroutine permitted to mutate it,
// reached exclusively through the event Dispatcher.
package node

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/raidex-network/raidex-go/internal/book"
	"github.com/raidex-network/raidex-go/internal/codec"
	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/events"
	"github.com/raidex-network/raidex-go/internal/order"
	"github.com/raidex-network/raidex-go/internal/trader"
	"github.com/raidex-network/raidex-go/internal/transport"
	"github.com/raidex-network/raidex-go/pkg/helpers"
	"github.com/raidex-network/raidex-go/pkg/logging"
)

// Node is a trading-node process: it holds a signing identity, a book of
// remote published orders, its own Orders keyed by id, and the plumbing
// that moves an Order through its FSM on each inbound message or local
// API call.
type Node struct {
	key       *ecdsa.PrivateKey
	address   raidexcrypto.Address
	transport transport.Transport
	trader    trader.Trader

	book       *book.Book
	orders     map[uint32]*order.Order
	dispatcher *events.Dispatcher

	commitmentServiceTopic string
	log                    *logging.Logger
}

// Config carries the dependencies New needs to construct a Node. Transport
// and Trader are external collaborators (§1 Non-goals) injected by the
// caller; everything else is built internally.
type Config struct {
	Key                    *ecdsa.PrivateKey
	Transport              transport.Transport
	Trader                 trader.Trader
	CommitmentServiceTopic string
	Log                    *logging.Logger
}

// New constructs a Node and subscribes its event handlers, but does not
// start the dispatcher loop or the inbound message pump — call Run for
// that.
func New(cfg Config) *Node {
	log := cfg.Log
	if log == nil {
		log = logging.GetDefault()
	}
	log = log.Component("node")

	n := &Node{
		key:                    cfg.Key,
		address:                raidexcrypto.AddressFromPrivateKey(cfg.Key),
		transport:              cfg.Transport,
		trader:                 cfg.Trader,
		book:                   book.NewBook(),
		orders:                 make(map[uint32]*order.Order),
		commitmentServiceTopic: cfg.CommitmentServiceTopic,
		log:                    log,
	}
	n.dispatcher = events.NewDispatcher(n.apply, 256, log)
	n.dispatcher.Subscribe(events.CommitEvent{}, n.onCommit)
	n.dispatcher.Subscribe(events.SendProvenOrderEvent{}, n.onSendProvenOrder)
	n.dispatcher.Subscribe(events.CancellationRequestEvent{}, n.onCancellationRequest)
	n.dispatcher.Subscribe(events.SwapInitEvent{}, n.onSwapInit)
	n.dispatcher.Subscribe(events.SendExecutedEvent{}, n.onSendExecuted)
	return n
}

// Run starts the dispatcher loop and the transport pump until ctx is
// canceled.
func (n *Node) Run(ctx context.Context) error {
	ownCh, err := n.transport.Subscribe(ctx, n.transport.OwnTopic())
	if err != nil {
		return fmt.Errorf("node: subscribe own topic: %w", err)
	}
	broadcastCh, err := n.transport.Subscribe(ctx, transport.BroadcastTopic)
	if err != nil {
		return fmt.Errorf("node: subscribe broadcast topic: %w", err)
	}
	receipts := n.trader.Receipts()

	go n.dispatcher.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ownCh:
			n.handleInbound(msg)
		case msg := <-broadcastCh:
			n.handleInbound(msg)
		case r := <-receipts:
			n.dispatcher.EnqueueStateChange(events.TransferReceivedStateChange{
				Identifier: r.Identifier, Amount: r.Amount, Initiator: r.Initiator,
			})
		}
	}
}

// PostLimitOrder is the local API (§2 step 1): it matches the incoming
// order against the book and, for whatever remains unmatched, registers a
// new Order and fires its "initiating" trigger.
func (n *Node) PostLimitOrder(side book.Side, baseAmount uint64, price float64, timeout *big.Int) (*order.Order, []book.Entry) {
	taken, left := book.MatchLimit(n.book, book.Incoming{Side: side, Price: price, Amount: baseAmount})

	if left == 0 {
		return nil, taken
	}

	typ := order.BuyOrder
	if side == book.Sell {
		typ = order.SellOrder
	}
	o := order.New(randomOrderID(), typ, left, price, timeout)
	n.orders[o.OrderID] = o

	if ev, ok := o.Initiate(); ok {
		n.dispatcher.DispatchEvent(ev)
	}
	return o, taken
}

func randomOrderID() uint32 { return rand.Uint32() }

// apply is the Dispatcher's StateChangeHandler: the single place Order/
// Trade FSMs are mutated.
func (n *Node) apply(sc events.StateChange) error {
	switch c := sc.(type) {
	case events.CommitmentProofStateChange:
		o, ok := n.orders[c.OrderID]
		if !ok {
			return fmt.Errorf("node: commitment proof for unknown order %d", c.OrderID)
		}
		if o.CommitmentProof == nil {
			return fmt.Errorf("node: commitment proof state change with no proof stored")
		}
		if o.ReceivedOffer() {
			n.dispatcher.DispatchEvent(events.SendProvenOrderEvent{OrderID: o.OrderID})
		}
	case events.TransferReceivedStateChange:
		// Identifier is the 32-bit order_id the transfer was tagged with.
		// A receipt needs no FSM action here: proof arrival is what
		// advances open.unproved, not the deposit receipt itself.
		n.log.Debug("transfer received", "identifier", c.Identifier, "amount", c.Amount)
	case events.OrderTimeoutStateChange:
		o, ok := n.orders[c.OrderID]
		if !ok {
			return fmt.Errorf("node: timeout for unknown order %d", c.OrderID)
		}
		if ev, ok := o.TimeoutFired(); ok {
			n.dispatcher.DispatchEvent(ev)
		}
	case events.PaymentFailedStateChange:
		o, ok := n.orders[c.OrderID]
		if !ok {
			return fmt.Errorf("node: payment failed for unknown order %d", c.OrderID)
		}
		o.PaymentFailed()
	}
	return nil
}

// onCommit publishes a signed Commitment for the order on the CS topic
// (§2 step 2). It does not deposit fee tokens: no transfer is requested
// from the trader here.
func (n *Node) onCommit(e events.Event) {
	ev := e.(events.CommitEvent)
	o, ok := n.orders[ev.OrderID]
	if !ok {
		n.log.Error("commit event for unknown order", "order_id", ev.OrderID)
		return
	}

	payload := codec.NewCommitmentPayload(o.OrderID, raidexcrypto.Hash{}, o.Timeout, new(big.Int).SetUint64(o.BaseAmount))
	commitment, err := codec.Sign(payload, n.key)
	if err != nil {
		n.log.Error("sign commitment", "error", err)
		return
	}
	n.publish(n.commitmentServiceTopic, codec.TagCommitment, commitment)
}

// onSendProvenOrder broadcasts a ProvenOrder once a maker's CommitmentProof
// has arrived (§2 step 4).
func (n *Node) onSendProvenOrder(e events.Event) {
	ev := e.(events.SendProvenOrderEvent)
	o, ok := n.orders[ev.OrderID]
	if !ok || o.CommitmentProof == nil {
		return
	}

	quoteAmount := uint64(o.Price * float64(o.BaseAmount))
	orderMsg := codec.OrderMessage{
		AskAmount: new(big.Int).SetUint64(o.BaseAmount),
		BidAmount: new(big.Int).SetUint64(quoteAmount),
		OrderID:   o.OrderID,
		Timeout:   o.Timeout,
		Side:      uint8(o.Type),
		Cmdid:     uint32(codec.CmdOffer),
	}
	payload := codec.NewProvenOrderPayload(orderMsg, *o.CommitmentProof)
	proven, err := codec.Sign(payload, n.key)
	if err != nil {
		n.log.Error("sign proven order", "error", err)
		return
	}
	n.publish(transport.BroadcastTopic, codec.TagProvenOffer, proven)
}

// onCancellationRequest sends a Cancellation for an order whose timeout
// fired before it completed (§2 design, §8 scenario 4).
func (n *Node) onCancellationRequest(e events.Event) {
	ev := e.(events.CancellationRequestEvent)
	payload := codec.NewCancellationPayload(ev.OrderID)
	signed, err := codec.Sign(payload, n.key)
	if err != nil {
		n.log.Error("sign cancellation", "error", err)
		return
	}
	n.publish(n.commitmentServiceTopic, codec.TagCancellation, signed)
}

// onSwapInit logs the trade id of a matched trade; it does not request a
// transfer from the trader.
func (n *Node) onSwapInit(e events.Event) {
	ev := e.(events.SwapInitEvent)
	n.log.Info("swap initiated", "trade_id", ev.TradeID)
}

// onSendExecuted reports successful off-chain execution to the CS.
func (n *Node) onSendExecuted(e events.Event) {
	ev := e.(events.SendExecutedEvent)
	payload := codec.NewSwapExecutionPayload(new(big.Int).SetUint64(uint64(ev.OrderID)), ev.Timestamp)
	signed, err := codec.Sign(payload, n.key)
	if err != nil {
		n.log.Error("sign swap execution", "error", err)
		return
	}
	n.publish(n.commitmentServiceTopic, codec.TagSwapExecuted, signed)
}

func (n *Node) publish(topic, tag string, payload interface{}) {
	env, err := codec.Envelop(tag, payload)
	if err != nil {
		n.log.Error("envelop message", "tag", tag, "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		n.log.Error("marshal envelope", "tag", tag, "error", err)
		return
	}
	if err := n.transport.Publish(context.Background(), topic, data); err != nil {
		n.log.Error("publish message", "tag", tag, "topic", topic, "error", err)
	}
}

// handleInbound decodes an envelope and routes it to the matching
// StateChange, absorbing MalformedMessage per §7.
func (n *Node) handleInbound(msg transport.Message) {
	var env codec.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		n.log.Debug("drop malformed envelope", "error", err)
		return
	}

	switch env.Msg {
	case codec.TagCommitmentProof:
		var proof codec.CommitmentProof
		if err := env.Open(&proof); err != nil {
			n.log.Debug("drop malformed commitment proof", "error", err)
			return
		}
		o, ok := n.orders[proof.Payload.OfferID]
		if !ok {
			n.log.Debug("commitment proof for unknown order", "order_id", proof.Payload.OfferID)
			return
		}
		if ev, ok := o.ReceiveCommitmentProof(proof); ok {
			n.dispatcher.DispatchEvent(ev)
			n.dispatcher.EnqueueStateChange(events.CommitmentProofStateChange{OrderID: o.OrderID})
		}
	case codec.TagProvenOffer:
		var proven codec.ProvenOrder
		if err := env.Open(&proven); err != nil {
			n.log.Debug("drop malformed proven order", "error", err)
			return
		}
		initiator, err := proven.Sender()
		if err != nil {
			n.log.Debug("drop proven order with unrecoverable sender", "error", err)
			return
		}
		om := proven.Payload.Order
		baseAmount := om.AskAmount.Uint64()
		quoteAmount := om.BidAmount.Uint64()
		n.book.Insert(book.Entry{
			OrderID:    om.OrderID,
			Side:       book.Side(om.Side),
			Price:      helpers.Price(baseAmount, quoteAmount),
			BaseAmount: baseAmount,
			Initiator:  initiator,
			Timeout:    om.Timeout.Int64(),
		})
	case codec.TagOfferTaken:
		var taken codec.OfferTaken
		if err := env.Open(&taken); err != nil {
			n.log.Debug("drop malformed offer taken", "error", err)
			return
		}
		n.book.Remove(taken.Payload.OfferID)
	case codec.TagCancellationProof:
		var proof codec.CancellationProof
		if err := env.Open(&proof); err != nil {
			n.log.Debug("drop malformed cancellation proof", "error", err)
			return
		}
		if o, ok := n.orders[proof.Payload.OfferID]; ok {
			o.ReceiveCancellationProof(proof.Payload.CancellationProof)
		}
	default:
		n.log.Debug("drop unhandled message", "tag", env.Msg)
	}
}
