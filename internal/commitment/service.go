package commitment

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/raidex-network/raidex-go/internal/codec"
	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/events"
	"github.com/raidex-network/raidex-go/internal/refund"
	"github.com/raidex-network/raidex-go/internal/trader"
	"github.com/raidex-network/raidex-go/internal/transport"
	"github.com/raidex-network/raidex-go/pkg/logging"
)

// Service is the commitment-service role's coordinator: Transport →
// CommitmentTask → SwapFactory → Swap(FSM) → RefundQueue → Trader (§2).
// Each Swap is keyed by the maker's order_id; a taker commits against the
// same order_id to take it (TakeOrders names it too, for clarity), so the
// Factory's at-most-one-swap-per-id routing naturally merges both legs
// onto one Swap record.
type Service struct {
	key     *ecdsa.PrivateKey
	address raidexcrypto.Address

	transport transport.Transport
	trader    trader.Trader

	factory *Factory
	matcher *Matcher
	arena   *TradeArena
	refunds *refund.Queue

	feeToken           raidexcrypto.Address
	feeRateBasisPoints uint32

	log *logging.Logger
}

// ServiceConfig carries Service's dependencies.
type ServiceConfig struct {
	Key                *ecdsa.PrivateKey
	Transport          transport.Transport
	Trader             trader.Trader
	Refunds            *refund.Queue
	FeeToken           raidexcrypto.Address
	FeeRateBasisPoints uint32
	Log                *logging.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	log := cfg.Log
	if log == nil {
		log = logging.GetDefault()
	}
	arena := NewTradeArena()
	return &Service{
		key:                cfg.Key,
		address:            raidexcrypto.AddressFromPrivateKey(cfg.Key),
		transport:          cfg.Transport,
		trader:             cfg.Trader,
		factory:            NewFactory(),
		matcher:            NewMatcher(arena),
		arena:              arena,
		refunds:            cfg.Refunds,
		feeToken:           cfg.FeeToken,
		feeRateBasisPoints: cfg.FeeRateBasisPoints,
		log:                log.Component("commitment_service"),
	}
}

// Run subscribes to the CS's own topic and the broadcast topic, runs the
// refund worker, and periodically advertises the CS's presence and fee
// rate (SPEC_FULL.md Supplemented Features) until ctx is canceled.
func (s *Service) Run(ctx context.Context, advertiseInterval time.Duration) error {
	ownCh, err := s.transport.Subscribe(ctx, s.transport.OwnTopic())
	if err != nil {
		return err
	}
	broadcastCh, err := s.transport.Subscribe(ctx, transport.BroadcastTopic)
	if err != nil {
		return err
	}
	receipts := s.trader.Receipts()

	go s.refunds.Run(ctx, 5*time.Second)

	ticker := time.NewTicker(advertiseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ownCh:
			s.handleInbound(msg)
		case msg := <-broadcastCh:
			s.handleInbound(msg)
		case r := <-receipts:
			s.handleReceipt(r)
		case <-ticker.C:
			s.advertise()
		}
	}
}

func (s *Service) handleInbound(msg transport.Message) {
	var env codec.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.log.Debug("drop malformed envelope", "error", err)
		return
	}

	switch env.Msg {
	case codec.TagCommitment:
		var c codec.Commitment
		if err := env.Open(&c); err != nil {
			s.log.Debug("drop malformed commitment", "error", err)
			return
		}
		if _, _, err := s.factory.HandleCommitment(c); err != nil {
			s.log.Debug("drop commitment", "order_id", c.Payload.OrderID, "error", err)
		}
	case codec.TagSwapExecuted:
		var se codec.SwapExecution
		if err := env.Open(&se); err != nil {
			s.log.Debug("drop malformed swap execution", "error", err)
			return
		}
		s.handleSwapExecuted(se)
	case codec.TagCancellation:
		var c codec.Cancellation
		if err := env.Open(&c); err != nil {
			s.log.Debug("drop malformed cancellation", "error", err)
			return
		}
		s.handleCancellation(c.Payload.OfferID)
	default:
		s.log.Debug("drop unhandled message", "tag", env.Msg)
	}
}

// handleReceipt processes an inbound fee-token deposit, identifying which
// leg of the swap (maker's or taker's) it belongs to by the depositing
// address, and issues that leg's CommitmentProof (§2 step 3). Once both
// legs have deposited and been proved, it constructs the shared Trade and
// broadcasts OfferTaken (§2 step 6).
func (s *Service) handleReceipt(r trader.TransferReceipt) {
	swap, ok := s.factory.Get(r.Identifier)
	if !ok {
		s.log.Debug("receipt for unknown order", "identifier", r.Identifier)
		return
	}

	makerAddr, err := swap.MakerCommitment.Sender()
	if err != nil {
		s.log.Error("recover maker sender", "error", err)
		return
	}

	switch {
	case r.Initiator == makerAddr:
		if swap.MakerProof != nil {
			return
		}
		if _, err := rand.Read(swap.secret[:]); err != nil {
			s.log.Error("generate secret", "error", err)
			return
		}
		swap.MakerReceipt = &r
		s.issueProof(swap, swap.MakerCommitment, &swap.MakerProof)
	case swap.TakerCommitment != nil:
		takerAddr, err := swap.TakerCommitment.Sender()
		if err != nil {
			s.log.Error("recover taker sender", "error", err)
			return
		}
		if r.Initiator != takerAddr || swap.TakerProof != nil {
			return
		}
		swap.TakerReceipt = &r
		s.issueProof(swap, swap.TakerCommitment, &swap.TakerProof)
	default:
		s.log.Debug("receipt from unrecognized party", "order_id", r.Identifier)
		return
	}

	if swap.MakerProof != nil && swap.TakerProof != nil {
		s.completeMatch(swap)
	}
}

// issueProof signs a CommitmentProof over leg's signature using the
// swap's shared secret, storing it into *dest.
func (s *Service) issueProof(swap *Swap, leg *codec.Commitment, dest **codec.CommitmentProof) {
	secretHash := [32]byte(raidexcrypto.Keccak256(swap.secret[:]))
	payload := codec.NewCommitmentProofPayload(leg.Signature, raidexcrypto.Hash(swap.secret), raidexcrypto.Hash(secretHash), swap.OrderID)
	proof, err := codec.Sign(payload, s.key)
	if err != nil {
		s.log.Error("sign commitment proof", "error", err)
		return
	}
	*dest = &proof
	s.broadcast(codec.TagCommitmentProof, proof)
}

// completeMatch constructs the shared Trade once both legs are proved and
// broadcasts OfferTaken.
func (s *Service) completeMatch(swap *Swap) {
	var tradeID events.TradeID
	if _, err := rand.Read(tradeID[:]); err != nil {
		s.log.Error("generate trade id", "error", err)
		return
	}
	trade := &Trade{
		TradeID:      tradeID,
		MakerOrderID: swap.OrderID,
		TakerOrderID: swap.OrderID,
		Amount:       swap.Amount,
		Secret:       swap.secret,
		SecretHash:   [32]byte(raidexcrypto.Keccak256(swap.secret[:])),
	}
	s.arena.Put(trade)
	swap.TradeIDs = append(swap.TradeIDs, tradeID)
	taken, err := codec.Sign(codec.NewOfferTakenPayload(swap.OrderID), s.key)
	if err != nil {
		s.log.Error("sign offer taken", "error", err)
		return
	}
	s.broadcast(codec.TagOfferTaken, taken)
}

// role identifies which party sent se by recovering its signer and
// comparing against the swap's known maker and taker addresses.
func (s *Service) role(swap *Swap, se codec.SwapExecution) (string, error) {
	sender, err := se.Sender()
	if err != nil {
		return "", err
	}
	if makerAddr, err := swap.MakerCommitment.Sender(); err == nil && sender == makerAddr {
		return "maker", nil
	}
	if swap.TakerCommitment != nil {
		if takerAddr, err := swap.TakerCommitment.Sender(); err == nil && sender == takerAddr {
			return "taker", nil
		}
	}
	return "", fmt.Errorf("commitment: swap execution sender does not match either leg")
}

func (s *Service) handleSwapExecuted(se codec.SwapExecution) {
	orderID := uint32(se.Payload.OfferID.Uint64())
	swap, ok := s.factory.Get(orderID)
	if !ok {
		s.log.Debug("swap execution for unknown order", "order_id", orderID)
		return
	}
	party, err := s.role(swap, se)
	if err != nil {
		s.log.Debug("drop swap execution", "order_id", orderID, "error", err)
		return
	}

	// §5/§8 scenario 5: a SwapExecution must not advance the FSM ahead of
	// the matching TransferReceipt. Without this guard a reordered
	// SwapExecution would drive the swap to completed, trigger refunds,
	// and broadcast SwapCompleted for funds that were never escrowed; the
	// swap must stay in initiated until its receipt is proved.
	proved := (party == "maker" && swap.MakerProof != nil) || (party == "taker" && swap.TakerProof != nil)
	if !proved {
		s.log.Debug("swap execution received before receipt was proved, rejecting", "order_id", orderID, "party", party)
		return
	}

	state, ok := swap.SuccessMessage(party)
	if !ok {
		s.log.Debug("swap execution rejected by fsm", "order_id", orderID, "state", swap.State())
		return
	}
	if state != StateCompleted {
		return
	}

	s.enqueueRefund(swap, true)
	completed, err := codec.Sign(codec.NewSwapCompletedPayload(se.Payload.OfferID, se.Payload.Timestamp), s.key)
	if err != nil {
		s.log.Error("sign swap completed", "error", err)
	} else {
		s.broadcast(codec.TagSwapCompleted, completed)
	}
	s.factory.Cleanup(swap.OrderID)
}

func (s *Service) handleCancellation(orderID uint32) {
	swap, ok := s.factory.Get(orderID)
	if !ok {
		s.log.Debug("cancellation for unknown order", "order_id", orderID)
		return
	}
	swap.Canceled = true
	swap.TimeoutFired()
	s.enqueueRefund(swap, false)

	if swap.MakerProof == nil {
		s.log.Debug("cancellation before maker proof issued, no proof to echo", "order_id", orderID)
		return
	}
	cancelProof := codec.NewCancellationProofPayload(orderID, *swap.MakerProof)
	signed, err := codec.Sign(cancelProof, s.key)
	if err != nil {
		s.log.Error("sign cancellation proof", "error", err)
		return
	}
	s.broadcast(codec.TagCancellationProof, signed)
	s.factory.Cleanup(orderID)
}

// enqueueRefund queues one refund per received leg of swap, per the
// refund-completeness invariant (§8): every received TransferReceipt gets
// exactly one Refund.
func (s *Service) enqueueRefund(swap *Swap, claimFee bool) {
	if swap.MakerReceipt != nil {
		s.refunds.Enqueue(refund.NewRefund(s.feeToken, swap.MakerReceipt.Initiator, swap.OrderID, swap.MakerReceipt.Amount, claimFee, s.feeRateBasisPoints))
	}
	if swap.TakerReceipt != nil {
		s.refunds.Enqueue(refund.NewRefund(s.feeToken, swap.TakerReceipt.Initiator, swap.OrderID, swap.TakerReceipt.Amount, claimFee, s.feeRateBasisPoints))
	}
}

func (s *Service) advertise() {
	payload := codec.NewCommitmentServiceAdvertisementPayload(s.feeRateBasisPoints, big.NewInt(0))
	signed, err := codec.Sign(payload, s.key)
	if err != nil {
		s.log.Error("sign advertisement", "error", err)
		return
	}
	s.broadcast(codec.TagCommitmentServiceAdvertisement, signed)
}

func (s *Service) broadcast(tag string, payload interface{}) {
	env, err := codec.Envelop(tag, payload)
	if err != nil {
		s.log.Error("envelop message", "tag", tag, "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Error("marshal envelope", "tag", tag, "error", err)
		return
	}
	if err := s.transport.Publish(context.Background(), transport.BroadcastTopic, data); err != nil {
		s.log.Error("publish message", "tag", tag, "error", err)
	}
}
