// Package transport implements the external Transport contract from §1: a
// publish/subscribe broadcast bus with address-scoped topics and a literal
// "broadcast" topic. It is deliberately a flat pub/sub shape — no
// guaranteed-delivery direct streams, no DHT-based discovery — because
// that is the entire contract CORE depends on.
package transport

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/pkg/logging"
)

// BroadcastTopic is the literal topic every node and the CS subscribe to
// in addition to their own address topic.
const BroadcastTopic = "broadcast"

// Message is one inbound pub/sub delivery.
type Message struct {
	Topic string
	Data  []byte
	From  peer.ID
}

// Transport is the bus contract CORE components depend on.
type Transport interface {
	// Publish broadcasts data on topic.
	Publish(ctx context.Context, topic string, data []byte) error
	// Subscribe returns the channel of inbound messages for topic. Calling
	// Subscribe again for the same topic returns the same channel.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	// OwnTopic is the topic equal to this transport's own address — the
	// per-node/per-CS inbox.
	OwnTopic() string
	Close() error
}

// PubSub is the libp2p-pubsub (GossipSub) implementation of Transport.
type PubSub struct {
	host host.Host
	ps   *pubsub.PubSub

	ownTopic string
	topics   map[string]*subscription
	log      *logging.Logger
}

type subscription struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	ch    chan Message
}

// New constructs a PubSub transport listening on listenAddr, deriving its
// own topic from the Ethereum-style address of signingKey (the same key
// used to sign wire messages, so a node's transport identity and its
// message-signing identity are the same address).
func New(ctx context.Context, listenAddr string, signingKey *ecdsa.PrivateKey, log *logging.Logger) (*PubSub, error) {
	if log == nil {
		log = logging.GetDefault()
	}
	log = log.Component("transport")

	maddr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: parse listen addr: %w", err)
	}

	identity, err := identityFromECDSA(signingKey)
	if err != nil {
		return nil, err
	}

	h, err := libp2p.New(
		libp2p.ListenAddrs(maddr),
		libp2p.Identity(identity),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("transport: create pubsub: %w", err)
	}

	ownAddr := raidexcrypto.AddressFromPrivateKey(signingKey)
	t := &PubSub{
		host:     h,
		ps:       ps,
		ownTopic: ownAddr.Hex(),
		topics:   make(map[string]*subscription),
		log:      log,
	}

	if _, err := t.Subscribe(ctx, t.ownTopic); err != nil {
		t.Close()
		return nil, err
	}
	if _, err := t.Subscribe(ctx, BroadcastTopic); err != nil {
		t.Close()
		return nil, err
	}

	log.Info("transport started", "own_topic", t.ownTopic, "addrs", h.Addrs())
	return t, nil
}

func identityFromECDSA(key *ecdsa.PrivateKey) (crypto.PrivKey, error) {
	// libp2p's secp256k1 key type takes the raw 32-byte scalar, so the
	// same private key that signs wire messages also derives this node's
	// libp2p peer identity — one key, two addressing schemes in lockstep.
	raw := make([]byte, 32)
	key.D.FillBytes(raw)
	priv, err := crypto.UnmarshalSecp256k1PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("transport: derive libp2p identity: %w", err)
	}
	return priv, nil
}

// OwnTopic implements Transport.
func (t *PubSub) OwnTopic() string { return t.ownTopic }

// Publish implements Transport.
func (t *PubSub) Publish(ctx context.Context, topicName string, data []byte) error {
	sub, err := t.Subscribe(ctx, topicName)
	_ = sub
	if err != nil {
		return err
	}
	return t.topics[topicName].topic.Publish(ctx, data)
}

// Subscribe implements Transport.
func (t *PubSub) Subscribe(ctx context.Context, topicName string) (<-chan Message, error) {
	if existing, ok := t.topics[topicName]; ok {
		return existing.ch, nil
	}

	topic, err := t.ps.Join(topicName)
	if err != nil {
		return nil, fmt.Errorf("transport: join topic %s: %w", topicName, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe topic %s: %w", topicName, err)
	}

	entry := &subscription{topic: topic, sub: sub, ch: make(chan Message, 256)}
	t.topics[topicName] = entry

	go t.pump(ctx, topicName, entry)
	return entry.ch, nil
}

func (t *PubSub) pump(ctx context.Context, topicName string, entry *subscription) {
	for {
		msg, err := entry.sub.Next(ctx)
		if err != nil {
			t.log.Debug("subscription closed", "topic", topicName, "error", err)
			close(entry.ch)
			return
		}
		if msg.ReceivedFrom == t.host.ID() {
			continue
		}
		entry.ch <- Message{Topic: topicName, Data: msg.Data, From: msg.ReceivedFrom}
	}
}

// Close shuts down every subscription and the underlying host.
func (t *PubSub) Close() error {
	for _, entry := range t.topics {
		entry.sub.Cancel()
		entry.topic.Close()
	}
	return t.host.Close()
}
