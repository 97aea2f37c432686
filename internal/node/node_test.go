package node

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/raidex-network/raidex-go/internal/book"
	"github.com/raidex-network/raidex-go/internal/codec"
	"github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/events"
	"github.com/raidex-network/raidex-go/internal/trader"
	"github.com/raidex-network/raidex-go/internal/transport"
)

// fakeTransport is an in-memory transport.Transport double: Publish on one
// topic delivers to every channel subscribed to that topic within the same
// test process.
type fakeTransport struct {
	ownTopic string
	subs     map[string]chan transport.Message
}

func newFakeTransport(ownTopic string) *fakeTransport {
	return &fakeTransport{ownTopic: ownTopic, subs: make(map[string]chan transport.Message)}
}

func (f *fakeTransport) Publish(ctx context.Context, topic string, data []byte) error {
	if ch, ok := f.subs[topic]; ok {
		ch <- transport.Message{Topic: topic, Data: data}
	}
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, topic string) (<-chan transport.Message, error) {
	if ch, ok := f.subs[topic]; ok {
		return ch, nil
	}
	ch := make(chan transport.Message, 16)
	f.subs[topic] = ch
	return ch, nil
}

func (f *fakeTransport) OwnTopic() string { return f.ownTopic }
func (f *fakeTransport) Close() error     { return nil }

func newTestNode(t *testing.T) (*Node, *fakeTransport) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := crypto.AddressFromPrivateKey(key)
	ft := newFakeTransport(addr.Hex())
	n := New(Config{
		Key:                    key,
		Transport:              ft,
		Trader:                 trader.NewFakeTrader(),
		CommitmentServiceTopic: "cs",
	})
	return n, ft
}

func TestPostLimitOrderWithEmptyBookRegistersMaker(t *testing.T) {
	n, _ := newTestNode(t)

	o, taken := n.PostLimitOrder(book.Sell, 100, 0.01, big.NewInt(60))
	if len(taken) != 0 {
		t.Errorf("expected no matches against an empty book, got %d", len(taken))
	}
	if o == nil {
		t.Fatal("expected a maker order to be registered")
	}
	if o.BaseAmount != 100 {
		t.Errorf("BaseAmount = %d, want 100", o.BaseAmount)
	}
	if _, ok := n.orders[o.OrderID]; !ok {
		t.Error("order should be indexed by its id")
	}
}

func TestPostLimitOrderFullyMatchedRegistersNoOrder(t *testing.T) {
	n, _ := newTestNode(t)
	n.book.Insert(book.Entry{OrderID: 1, Side: book.Sell, Price: 0.01, BaseAmount: 100})

	o, taken := n.PostLimitOrder(book.Buy, 100, 0.01, big.NewInt(60))
	if o != nil {
		t.Error("fully matched incoming order should not register a maker order")
	}
	if len(taken) != 1 || taken[0].OrderID != 1 {
		t.Errorf("expected the resting entry to be taken, got %+v", taken)
	}
}

// TestHandleInboundProvenOfferInsertsWithSideAndPrice exercises §2 steps
// 4-5: a remote node's ProvenOrder must be recorded in the local book with
// its true side, price, and initiator, not as a zero-valued Buy at price
// 0.0 (which would silently corrupt MatchLimit's direction-aware
// predicate for every cross-node match).
func TestHandleInboundProvenOfferInsertsWithSideAndPrice(t *testing.T) {
	n, _ := newTestNode(t)
	remoteKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	remoteAddr := crypto.AddressFromPrivateKey(remoteKey)

	orderMsg := codec.OrderMessage{
		AskAmount: big.NewInt(200),
		BidAmount: big.NewInt(10),
		OrderID:   42,
		Timeout:   big.NewInt(123456),
		Side:      uint8(book.Sell),
		Cmdid:     uint32(codec.CmdOffer),
	}
	proof, err := codec.Sign(codec.NewCommitmentProofPayload([65]byte{}, crypto.Hash{}, crypto.Hash{}, 42), remoteKey)
	if err != nil {
		t.Fatalf("sign proof: %v", err)
	}
	proven, err := codec.Sign(codec.NewProvenOrderPayload(orderMsg, proof), remoteKey)
	if err != nil {
		t.Fatalf("sign proven order: %v", err)
	}
	env, err := codec.Envelop(codec.TagProvenOffer, proven)
	if err != nil {
		t.Fatalf("envelop: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	n.handleInbound(transport.Message{Topic: transport.BroadcastTopic, Data: data})

	entry, ok := n.book.Sells.Get(42)
	if !ok {
		t.Fatal("expected order 42 to be inserted on the sell side")
	}
	if entry.Side != book.Sell {
		t.Errorf("Side = %v, want Sell", entry.Side)
	}
	if entry.BaseAmount != 200 {
		t.Errorf("BaseAmount = %d, want 200", entry.BaseAmount)
	}
	if wantPrice := 10.0 / 200.0; entry.Price != wantPrice {
		t.Errorf("Price = %v, want %v", entry.Price, wantPrice)
	}
	if entry.Initiator != remoteAddr {
		t.Errorf("Initiator = %v, want %v", entry.Initiator, remoteAddr)
	}
	if entry.Timeout != 123456 {
		t.Errorf("Timeout = %d, want 123456", entry.Timeout)
	}
}

func TestOnCommitPublishesSignedCommitmentToCSTopic(t *testing.T) {
	n, ft := newTestNode(t)
	o, _ := n.PostLimitOrder(book.Sell, 50, 0.02, big.NewInt(120))
	if o == nil {
		t.Fatal("expected a registered order")
	}

	ch, _ := ft.Subscribe(context.Background(), "cs")
	n.onCommit(events.CommitEvent{OrderID: o.OrderID})

	select {
	case msg := <-ch:
		if len(msg.Data) == 0 {
			t.Error("expected non-empty commitment payload")
		}
	default:
		t.Fatal("expected a commitment message to be published to the CS topic")
	}
}
