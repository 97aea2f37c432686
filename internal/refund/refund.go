// Package refund implements the CS's refund queue: a FIFO of pending
// refunds, retried with a bounded exponential backoff policy (SPEC_FULL.md
// open question #3 resolution — the source's refund retry loop has no cap
// and busy-loops forever on failure).
package refund

import (
	"container/list"
	"context"
	"math"
	"sync"
	"time"

	"github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/trader"
	"github.com/raidex-network/raidex-go/pkg/logging"
)

// Config tunes the retry backoff, mirrored from the reference message
// retry-worker's tuning knobs (initial/max interval, multiplier, cap).
type Config struct {
	InitialRetryInterval time.Duration
	MaxRetryInterval     time.Duration
	BackoffMultiplier    float64
	MaxRetries           int
}

// DefaultConfig returns the reference retry tuning.
func DefaultConfig() Config {
	return Config{
		InitialRetryInterval: 10 * time.Second,
		MaxRetryInterval:     10 * time.Minute,
		BackoffMultiplier:    2.0,
		MaxRetries:           50,
	}
}

func (c Config) nextInterval(attempt int) time.Duration {
	interval := float64(c.InitialRetryInterval) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if interval > float64(c.MaxRetryInterval) {
		return c.MaxRetryInterval
	}
	return time.Duration(interval)
}

// Refund is one pending refund: a counterparty's prior deposit, refunded
// in full or minus fee. ClaimFee and Amount are frozen at enqueue time so
// a mid-retry-storm change to the configured fee rate cannot silently
// alter an in-flight refund's amount (see SPEC_FULL.md Supplemented
// Features).
type Refund struct {
	Token      crypto.Address
	Initiator  crypto.Address
	Identifier uint32
	Amount     uint64 // already fee-adjusted if ClaimFee
	ClaimFee   bool

	attempts    int
	nextAttempt time.Time
}

// NewRefund computes the fee-adjusted amount (if claimFee) once and
// returns a Refund ready to enqueue.
func NewRefund(token, initiator crypto.Address, identifier uint32, receiptAmount uint64, claimFee bool, feeRateBasisPoints uint32) Refund {
	amount := receiptAmount
	if claimFee {
		amount = receiptAmount - (receiptAmount*uint64(feeRateBasisPoints))/10000
	}
	return Refund{Token: token, Initiator: initiator, Identifier: identifier, Amount: amount, ClaimFee: claimFee}
}

// Queue is a FIFO of pending refunds. There is no strict ordering
// guarantee across distinct identifiers, but a single identifier's refund
// is retried at-most-once-successful until the trader reports success or
// MaxRetries is exhausted, at which point it is dropped with a logged
// dead-letter entry rather than looping forever.
type Queue struct {
	mu     sync.Mutex
	items  *list.List // of *Refund
	cfg    Config
	trader trader.Trader
	log    *logging.Logger
}

// NewQueue returns an empty Queue.
func NewQueue(cfg Config, t trader.Trader, log *logging.Logger) *Queue {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Queue{items: list.New(), cfg: cfg, trader: t, log: log.Component("refund_queue")}
}

// Enqueue appends r to the tail of the queue.
func (q *Queue) Enqueue(r Refund) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items.PushBack(&r)
}

// Len returns the number of refunds currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// ProcessOnce dequeues every refund whose nextAttempt has arrived, attempts
// delivery, and re-enqueues failures at the tail with a bumped backoff
// interval. Refunds that exhaust MaxRetries are dropped with a logged
// dead-letter entry. Intended to be called periodically (e.g. from a
// ticker loop); see Run for that loop.
func (q *Queue) ProcessOnce(ctx context.Context, now time.Time) {
	q.mu.Lock()
	var due []*list.Element
	for e := q.items.Front(); e != nil; e = e.Next() {
		r := e.Value.(*Refund)
		if !r.nextAttempt.After(now) {
			due = append(due, e)
		}
	}
	for _, e := range due {
		q.items.Remove(e)
	}
	q.mu.Unlock()

	for _, e := range due {
		r := e.Value.(*Refund)
		errCh := q.trader.TransferAsync(ctx, r.Token, r.Initiator, r.Amount, r.Identifier)
		select {
		case err := <-errCh:
			if err == nil {
				continue
			}
			q.retry(r, now)
		case <-ctx.Done():
			q.mu.Lock()
			q.items.PushBack(r)
			q.mu.Unlock()
			return
		}
	}
}

func (q *Queue) retry(r *Refund, now time.Time) {
	r.attempts++
	if r.attempts > q.cfg.MaxRetries {
		q.log.Error("refund dead-lettered after exhausting retries",
			"identifier", r.Identifier, "attempts", r.attempts)
		return
	}
	r.nextAttempt = now.Add(q.cfg.nextInterval(r.attempts - 1))
	q.mu.Lock()
	q.items.PushBack(r)
	q.mu.Unlock()
}

// Run calls ProcessOnce on every tick of interval until ctx is canceled.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			q.ProcessOnce(ctx, now)
		}
	}
}
