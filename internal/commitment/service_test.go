package commitment

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/raidex-network/raidex-go/internal/codec"
	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/refund"
	"github.com/raidex-network/raidex-go/internal/trader"
	"github.com/raidex-network/raidex-go/internal/transport"
)

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

func newTestService(t *testing.T) (*Service, *fakeTransport) {
	t.Helper()
	key, err := raidexcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	ft := newFakeTransport("cs")
	svc := NewService(ServiceConfig{
		Key:                key,
		Transport:          ft,
		Trader:             trader.NewFakeTrader(),
		Refunds:            refund.NewQueue(refund.DefaultConfig(), trader.NewFakeTrader(), nil),
		FeeRateBasisPoints: 100, // 1%
	})
	return svc, ft
}

func signCommitment(t *testing.T, key *ecdsa.PrivateKey, orderID uint32, amount int64, takeOrders []uint32) codec.Commitment {
	t.Helper()
	payload := codec.NewTakerCommitmentPayload(orderID, raidexcrypto.Hash{}, big.NewInt(1000), big.NewInt(amount), takeOrders)
	c, err := codec.Sign(payload, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return c
}

// TestServiceHandleReceiptIssuesProofsAndMatches exercises the happy path
// (§8 scenario 1): maker and taker each commit against the same order_id,
// each deposits, the CS proves each leg, and once both are proved it
// constructs a shared Trade and broadcasts OfferTaken.
func TestServiceHandleReceiptIssuesProofsAndMatches(t *testing.T) {
	svc, ft := newTestService(t)
	makerKey, _ := raidexcrypto.GenerateKey()
	takerKey, _ := raidexcrypto.GenerateKey()
	makerAddr := raidexcrypto.AddressFromPrivateKey(makerKey)
	takerAddr := raidexcrypto.AddressFromPrivateKey(takerKey)

	maker := signCommitment(t, makerKey, 7, 100, nil)
	taker := signCommitment(t, takerKey, 7, 100, []uint32{7})

	if _, isMaker, err := svc.factory.HandleCommitment(maker); err != nil || !isMaker {
		t.Fatalf("maker HandleCommitment: isMaker=%v err=%v", isMaker, err)
	}
	if _, isMaker, err := svc.factory.HandleCommitment(taker); err != nil || isMaker {
		t.Fatalf("taker HandleCommitment: isMaker=%v err=%v", isMaker, err)
	}

	broadcastCh, _ := ft.Subscribe(context.Background(), transport.BroadcastTopic)

	svc.handleReceipt(trader.TransferReceipt{Identifier: 7, Amount: 100, Initiator: makerAddr})
	drainEnvelope(t, broadcastCh, codec.TagCommitmentProof)

	svc.handleReceipt(trader.TransferReceipt{Identifier: 7, Amount: 100, Initiator: takerAddr})
	drainEnvelope(t, broadcastCh, codec.TagCommitmentProof)
	drainEnvelope(t, broadcastCh, codec.TagOfferTaken)

	swap, ok := svc.factory.Get(7)
	if !ok {
		t.Fatal("expected swap to still be registered")
	}
	if len(swap.TradeIDs) != 1 {
		t.Fatalf("expected exactly one trade to have been created, got %d", len(swap.TradeIDs))
	}
	trade, ok := svc.arena.Get(swap.TradeIDs[0])
	if !ok {
		t.Fatal("trade should be stored in the arena")
	}
	if trade.SecretHash != [32]byte(raidexcrypto.Keccak256(trade.Secret[:])) {
		t.Error("SecretHash should equal keccak256(Secret)")
	}
}

// TestServiceSwapExecutedCompletesAndEnqueuesRefund exercises the maker
// and taker each reporting successful off-chain execution, driving the
// swap to completed and enqueueing one refund per leg (§2 step 8).
func TestServiceSwapExecutedCompletesAndEnqueuesRefund(t *testing.T) {
	svc, ft := newTestService(t)
	makerKey, _ := raidexcrypto.GenerateKey()
	takerKey, _ := raidexcrypto.GenerateKey()
	makerAddr := raidexcrypto.AddressFromPrivateKey(makerKey)
	takerAddr := raidexcrypto.AddressFromPrivateKey(takerKey)

	maker := signCommitment(t, makerKey, 3, 50, nil)
	taker := signCommitment(t, takerKey, 3, 50, []uint32{3})
	svc.factory.HandleCommitment(maker)
	svc.factory.HandleCommitment(taker)

	broadcastCh, _ := ft.Subscribe(context.Background(), transport.BroadcastTopic)
	svc.handleReceipt(trader.TransferReceipt{Identifier: 3, Amount: 50, Initiator: makerAddr})
	drainEnvelope(t, broadcastCh, codec.TagCommitmentProof)
	svc.handleReceipt(trader.TransferReceipt{Identifier: 3, Amount: 50, Initiator: takerAddr})
	drainEnvelope(t, broadcastCh, codec.TagCommitmentProof)
	drainEnvelope(t, broadcastCh, codec.TagOfferTaken)

	makerExec, err := codec.Sign(codec.NewSwapExecutionPayload(big.NewInt(3), big.NewInt(1)), makerKey)
	if err != nil {
		t.Fatalf("sign maker execution: %v", err)
	}
	takerExec, err := codec.Sign(codec.NewSwapExecutionPayload(big.NewInt(3), big.NewInt(2)), takerKey)
	if err != nil {
		t.Fatalf("sign taker execution: %v", err)
	}

	svc.handleSwapExecuted(makerExec)
	swap, _ := svc.factory.Get(3)
	if swap == nil {
		t.Fatal("swap should not be cleaned up before both executions arrive")
	}
	if swap.State() != StateReceivedMakerSuccess {
		t.Fatalf("state after maker execution = %s, want %s", swap.State(), StateReceivedMakerSuccess)
	}

	svc.handleSwapExecuted(takerExec)
	drainEnvelope(t, broadcastCh, codec.TagSwapCompleted)

	if got := svc.refunds.Len(); got != 2 {
		t.Errorf("refund queue length = %d, want 2 (one per leg)", got)
	}
	if _, ok := svc.factory.Get(3); ok {
		t.Error("swap should be cleaned up once completed")
	}
}

// TestServiceRejectsOutOfOrderSwapExecution exercises §8 Scenario 5: a
// SwapExecution arriving before its TransferReceipt has been proved must
// be rejected, leaving the swap in StateInitiated with no refund queued
// and no SwapCompleted broadcast.
func TestServiceRejectsOutOfOrderSwapExecution(t *testing.T) {
	svc, ft := newTestService(t)
	makerKey, _ := raidexcrypto.GenerateKey()
	takerKey, _ := raidexcrypto.GenerateKey()

	maker := signCommitment(t, makerKey, 5, 20, nil)
	taker := signCommitment(t, takerKey, 5, 20, []uint32{5})
	svc.factory.HandleCommitment(maker)
	svc.factory.HandleCommitment(taker)

	broadcastCh, _ := ft.Subscribe(context.Background(), transport.BroadcastTopic)

	makerExec, err := codec.Sign(codec.NewSwapExecutionPayload(big.NewInt(5), big.NewInt(1)), makerKey)
	if err != nil {
		t.Fatalf("sign maker execution: %v", err)
	}

	// No TransferReceipt has arrived yet: MakerProof is still nil.
	svc.handleSwapExecuted(makerExec)

	swap, ok := svc.factory.Get(5)
	if !ok {
		t.Fatal("swap should still exist")
	}
	if swap.State() != StateInitiated {
		t.Fatalf("state after out-of-order execution = %s, want %s", swap.State(), StateInitiated)
	}
	if got := svc.refunds.Len(); got != 0 {
		t.Errorf("refund queue length = %d, want 0 (nothing was escrowed)", got)
	}
	select {
	case msg := <-broadcastCh:
		t.Fatalf("expected no broadcast, got %+v", msg)
	default:
	}

	// Now the receipt arrives and proves the maker leg; replaying the same
	// SwapExecution should succeed.
	svc.handleReceipt(trader.TransferReceipt{Identifier: 5, Amount: 20, Initiator: raidexcrypto.AddressFromPrivateKey(makerKey)})
	drainEnvelope(t, broadcastCh, codec.TagCommitmentProof)

	svc.handleSwapExecuted(makerExec)
	if swap.State() != StateReceivedMakerSuccess {
		t.Fatalf("state after retried execution = %s, want %s", swap.State(), StateReceivedMakerSuccess)
	}
}

func TestServiceHandleCancellationRefundsWithoutFeeAndEchoesProof(t *testing.T) {
	svc, ft := newTestService(t)
	makerKey, _ := raidexcrypto.GenerateKey()
	makerAddr := raidexcrypto.AddressFromPrivateKey(makerKey)

	maker := signCommitment(t, makerKey, 9, 10, nil)
	svc.factory.HandleCommitment(maker)

	broadcastCh, _ := ft.Subscribe(context.Background(), transport.BroadcastTopic)
	svc.handleReceipt(trader.TransferReceipt{Identifier: 9, Amount: 10, Initiator: makerAddr})
	drainEnvelope(t, broadcastCh, codec.TagCommitmentProof)

	cancellation, err := codec.Sign(codec.NewCancellationPayload(9), makerKey)
	if err != nil {
		t.Fatalf("sign cancellation: %v", err)
	}
	svc.handleCancellation(cancellation.Payload.OfferID)
	drainEnvelope(t, broadcastCh, codec.TagCancellationProof)

	if got := svc.refunds.Len(); got != 1 {
		t.Errorf("refund queue length = %d, want 1", got)
	}
}

func drainEnvelope(t *testing.T, ch <-chan transport.Message, wantTag string) {
	t.Helper()
	select {
	case msg := <-ch:
		var env codec.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Msg != wantTag {
			t.Errorf("envelope tag = %s, want %s", env.Msg, wantTag)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s message", wantTag)
	}
}
