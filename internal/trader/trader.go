// Package trader defines the external payment-channel client contract
// (the "trader") and an in-memory test double. The trader's own
// implementation is explicitly out of scope for the CORE (§1): this
// package only provides the interface CORE components depend on and a
// fake usable in tests.
package trader

import (
	"context"

	"github.com/raidex-network/raidex-go/internal/crypto"
)

// TransferReceipt is emitted by the trader whenever an inbound transfer
// completes. Identifier is the 32-bit order_id the transfer was tagged
// with; a 32-byte trade_id does not fit in it.
type TransferReceipt struct {
	Initiator  crypto.Address
	Amount     uint64
	Identifier uint32
}

// Trader is the Raiden-like payment-channel client contract CORE depends
// on. It is reentrant: TransferAsync may be called concurrently and
// returns a future (channel) per call, per the CONCURRENCY & RESOURCE
// MODEL's "trader client is reentrant and returns a future per call".
type Trader interface {
	// TransferAsync requests an off-chain transfer of amount of token to
	// target, tagged with identifier so the counterparty (or CS) can
	// correlate the resulting TransferReceipt. The returned channel
	// receives exactly one value: nil on success, or a non-nil error.
	TransferAsync(ctx context.Context, token, target crypto.Address, amount uint64, identifier uint32) <-chan error

	// Receipts returns the stream of inbound TransferReceipt events. The
	// channel is never closed while the trader is running.
	Receipts() <-chan TransferReceipt
}

// FakeTrader is an in-memory Trader double for tests: TransferAsync always
// succeeds (unless configured to fail) and records every call so tests can
// assert on it; receipts are delivered by calling Deliver.
type FakeTrader struct {
	receipts chan TransferReceipt

	// FailNext, if set, causes the next N TransferAsync calls to report
	// failure instead of success. Decremented on every call.
	FailNext int

	Calls []FakeTransferCall
}

// FakeTransferCall records one TransferAsync invocation.
type FakeTransferCall struct {
	Token, Target crypto.Address
	Amount        uint64
	Identifier    uint32
}

// NewFakeTrader returns a FakeTrader with a buffered receipt channel.
func NewFakeTrader() *FakeTrader {
	return &FakeTrader{receipts: make(chan TransferReceipt, 64)}
}

// TransferAsync implements Trader.
func (f *FakeTrader) TransferAsync(ctx context.Context, token, target crypto.Address, amount uint64, identifier uint32) <-chan error {
	f.Calls = append(f.Calls, FakeTransferCall{Token: token, Target: target, Amount: amount, Identifier: identifier})
	result := make(chan error, 1)
	if f.FailNext > 0 {
		f.FailNext--
		result <- errTransferFailed
	} else {
		result <- nil
	}
	return result
}

// Receipts implements Trader.
func (f *FakeTrader) Receipts() <-chan TransferReceipt { return f.receipts }

// Deliver injects a TransferReceipt as if it arrived from the network.
func (f *FakeTrader) Deliver(r TransferReceipt) { f.receipts <- r }

var errTransferFailed = transferFailedError{}

type transferFailedError struct{}

func (transferFailedError) Error() string { return "trader: transfer failed" }
