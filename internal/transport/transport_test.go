package transport

import (
	"context"
	"testing"
	"time"

	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
)

func newTestTransport(t *testing.T, ctx context.Context) *PubSub {
	t.Helper()
	key, err := raidexcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tr, err := New(ctx, "/ip4/127.0.0.1/tcp/0", key, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestOwnTopicIsNodeAddress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	key, err := raidexcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tr, err := New(ctx, "/ip4/127.0.0.1/tcp/0", key, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	if tr.OwnTopic() == "" {
		t.Fatal("OwnTopic should not be empty")
	}
	if want := raidexcrypto.AddressFromPrivateKey(key).Hex(); tr.OwnTopic() != want {
		t.Errorf("OwnTopic = %q, want %q", tr.OwnTopic(), want)
	}
}

func TestBroadcastTopicDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newTestTransport(t, ctx)
	b := newTestTransport(t, ctx)

	aHost := a.host
	bHost := b.host
	bHost.Peerstore().AddAddrs(aHost.ID(), aHost.Addrs(), time.Hour)
	if err := bHost.Connect(ctx, aHost.Peerstore().PeerInfo(aHost.ID())); err != nil {
		t.Fatalf("connect: %v", err)
	}

	msgs, err := b.Subscribe(ctx, BroadcastTopic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Give GossipSub's mesh a moment to form before publishing.
	time.Sleep(200 * time.Millisecond)

	if err := a.Publish(ctx, BroadcastTopic, []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case m := <-msgs:
		if string(m.Data) != "hello" {
			t.Errorf("Data = %q, want %q", m.Data, "hello")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for broadcast delivery")
	}
}
