package codec

import (
	"math/big"

	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
)

// Cmdid is the stable tag-to-cmdid mapping used as the first distinguishing
// field of every RLP payload.
type Cmdid uint32

const (
	CmdOffer                           Cmdid = 1
	CmdProvenOffer                      Cmdid = 2
	CmdProvenCommitment                 Cmdid = 3
	CmdCommitment                       Cmdid = 4
	CmdCommitmentProof                  Cmdid = 5
	CmdCommitmentService                Cmdid = 6
	CmdSwapExecuted                     Cmdid = 7
	CmdSwapCompleted                    Cmdid = 8
	CmdOfferTaken                       Cmdid = 9
	CmdCancellation                     Cmdid = 10
	CmdCancellationProof                Cmdid = 11
	CmdCommitmentServiceAdvertisement   Cmdid = 12
)

// Message tags used as the "msg" field of the JSON envelope.
const (
	TagOffer                         = "offer"
	TagProvenOffer                    = "proven_offer"
	TagProvenCommitment                = "proven_commitment"
	TagCommitment                      = "commitment"
	TagCommitmentProof                 = "commitment_proof"
	TagCommitmentService               = "commitment_service"
	TagSwapExecuted                    = "swap_executed"
	TagSwapCompleted                   = "swap_completed"
	TagOfferTaken                      = "offer_taken"
	TagCancellation                    = "cancellation"
	TagCancellationProof               = "cancellation_proof"
	TagCommitmentServiceAdvertisement  = "commitment_service_advertisement"
)

// cmdidForTag maps each message tag to its expected cmdid, used to validate
// envelopes: a mismatch between the JSON "msg" tag and the RLP payload's
// own cmdid field is a MalformedMessage.
var cmdidForTag = map[string]Cmdid{
	TagOffer:                        CmdOffer,
	TagProvenOffer:                   CmdProvenOffer,
	TagProvenCommitment:              CmdProvenCommitment,
	TagCommitment:                    CmdCommitment,
	TagCommitmentProof:               CmdCommitmentProof,
	TagCommitmentService:             CmdCommitmentService,
	TagSwapExecuted:                  CmdSwapExecuted,
	TagSwapCompleted:                 CmdSwapCompleted,
	TagOfferTaken:                    CmdOfferTaken,
	TagCancellation:                  CmdCancellation,
	TagCancellationProof:             CmdCancellationProof,
	TagCommitmentServiceAdvertisement: CmdCommitmentServiceAdvertisement,
}

// OrderMessage is the unsigned description of a limit order offered for
// trade: the two token legs, amounts, a random 32-bit order id, and an
// absolute timeout. AskAmount is always the order's base-asset amount and
// BidAmount the quote-asset amount it wants in return, independent of
// Side; a receiving node recovers the order's price as BidAmount/AskAmount
// (see pkg/helpers.Price) and its book direction from Side.
type OrderMessage struct {
	AskToken  raidexcrypto.Address
	AskAmount *big.Int
	BidToken  raidexcrypto.Address
	BidAmount *big.Int
	OrderID   uint32
	Timeout   *big.Int
	Side      uint8
	Cmdid     uint32
}

// CommitmentPayload is the unsigned body of a Commitment message: a
// promise, backed by a fee-token deposit, to honor an order. TakeOrders is
// non-empty only for a taker's commitment, naming the maker order ids it
// intends to take (see SPEC_FULL.md Supplemented Features).
type CommitmentPayload struct {
	OrderID    uint32
	OrderHash  raidexcrypto.Hash
	Timeout    *big.Int
	Amount     *big.Int
	TakeOrders []uint32
	Cmdid      uint32
}

// Commitment is a CommitmentPayload signed by the committing party.
type Commitment = Signed[CommitmentPayload]

// NewCommitmentPayload builds a maker commitment payload (empty TakeOrders).
func NewCommitmentPayload(orderID uint32, orderHash raidexcrypto.Hash, timeout, amount *big.Int) CommitmentPayload {
	return CommitmentPayload{
		OrderID:   orderID,
		OrderHash: orderHash,
		Timeout:   timeout,
		Amount:    amount,
		Cmdid:     uint32(CmdCommitment),
	}
}

// NewTakerCommitmentPayload builds a taker commitment payload naming the
// maker order ids it intends to take.
func NewTakerCommitmentPayload(orderID uint32, orderHash raidexcrypto.Hash, timeout, amount *big.Int, takeOrders []uint32) CommitmentPayload {
	p := NewCommitmentPayload(orderID, orderHash, timeout, amount)
	p.TakeOrders = takeOrders
	return p
}

// CommitmentProofPayload is the CS's escrow-acceptance proof over a
// counterparty's commitment signature, carrying the fresh hash-lock
// secret used by the off-chain swap.
type CommitmentProofPayload struct {
	CommitmentSig [65]byte
	Secret        raidexcrypto.Hash
	SecretHash    raidexcrypto.Hash
	OfferID       uint32
	Cmdid         uint32
}

// CommitmentProof is a CommitmentProofPayload signed by the CS.
type CommitmentProof = Signed[CommitmentProofPayload]

func NewCommitmentProofPayload(commitmentSig [65]byte, secret, secretHash raidexcrypto.Hash, offerID uint32) CommitmentProofPayload {
	return CommitmentProofPayload{
		CommitmentSig: commitmentSig,
		Secret:        secret,
		SecretHash:    secretHash,
		OfferID:       offerID,
		Cmdid:         uint32(CmdCommitmentProof),
	}
}

// ProvenOrderPayload binds a published order to the CS proof that
// escrowed the maker's commitment.
type ProvenOrderPayload struct {
	Order OrderMessage
	Proof CommitmentProof
	Cmdid uint32
}

// ProvenOrder is a ProvenOrderPayload signed by the maker.
type ProvenOrder = Signed[ProvenOrderPayload]

func NewProvenOrderPayload(order OrderMessage, proof CommitmentProof) ProvenOrderPayload {
	return ProvenOrderPayload{Order: order, Proof: proof, Cmdid: uint32(CmdProvenOffer)}
}

// ProvenCommitmentPayload binds a taker's commitment to the CS proof that
// escrowed it, sent directly to the maker.
type ProvenCommitmentPayload struct {
	Commitment Commitment
	Proof      CommitmentProof
	Cmdid      uint32
}

// ProvenCommitment is a ProvenCommitmentPayload signed by the taker.
type ProvenCommitment = Signed[ProvenCommitmentPayload]

func NewProvenCommitmentPayload(commitment Commitment, proof CommitmentProof) ProvenCommitmentPayload {
	return ProvenCommitmentPayload{Commitment: commitment, Proof: proof, Cmdid: uint32(CmdProvenCommitment)}
}

// SwapEventPayload is the shared shape of SwapExecution and SwapCompleted:
// an offer id and a timestamp.
type SwapEventPayload struct {
	OfferID   *big.Int
	Timestamp *big.Int
	Cmdid     uint32
}

// SwapExecution is sent by a swap participant to the CS on successful
// off-chain execution.
type SwapExecution = Signed[SwapEventPayload]

func NewSwapExecutionPayload(offerID, timestamp *big.Int) SwapEventPayload {
	return SwapEventPayload{OfferID: offerID, Timestamp: timestamp, Cmdid: uint32(CmdSwapExecuted)}
}

// SwapCompleted is broadcast by the CS once both participants'
// SwapExecution messages have been observed.
type SwapCompleted = Signed[SwapEventPayload]

func NewSwapCompletedPayload(offerID, timestamp *big.Int) SwapEventPayload {
	return SwapEventPayload{OfferID: offerID, Timestamp: timestamp, Cmdid: uint32(CmdSwapCompleted)}
}

// OfferTakenPayload announces that a published order has been matched.
type OfferTakenPayload struct {
	OfferID uint32
	Cmdid   uint32
}

// OfferTaken is an OfferTakenPayload signed by the CS.
type OfferTaken = Signed[OfferTakenPayload]

func NewOfferTakenPayload(offerID uint32) OfferTakenPayload {
	return OfferTakenPayload{OfferID: offerID, Cmdid: uint32(CmdOfferTaken)}
}

// CancellationPayload requests that an unmatched published order be
// withdrawn.
type CancellationPayload struct {
	OfferID uint32
	Cmdid   uint32
}

// Cancellation is a CancellationPayload signed by the order's owner.
type Cancellation = Signed[CancellationPayload]

func NewCancellationPayload(offerID uint32) CancellationPayload {
	return CancellationPayload{OfferID: offerID, Cmdid: uint32(CmdCancellation)}
}

// CancellationProofPayload is the CS's acknowledgement that a cancellation
// was accepted before any match occurred.
type CancellationProofPayload struct {
	OfferID           uint32
	CancellationProof CommitmentProof
	Cmdid             uint32
}

// CancellationProof is a CancellationProofPayload signed by the CS.
type CancellationProof = Signed[CancellationProofPayload]

func NewCancellationProofPayload(offerID uint32, proof CommitmentProof) CancellationProofPayload {
	return CancellationProofPayload{OfferID: offerID, CancellationProof: proof, Cmdid: uint32(CmdCancellationProof)}
}

// CommitmentServiceAdvertisementPayload is periodically broadcast by a CS so
// nodes can discover it and its current fee rate without out-of-band
// configuration (see SPEC_FULL.md Supplemented Features).
type CommitmentServiceAdvertisementPayload struct {
	FeeRateBasisPoints uint32
	Timestamp          *big.Int
	Cmdid              uint32
}

// CommitmentServiceAdvertisement is a CommitmentServiceAdvertisementPayload
// signed by the CS.
type CommitmentServiceAdvertisement = Signed[CommitmentServiceAdvertisementPayload]

func NewCommitmentServiceAdvertisementPayload(feeRateBasisPoints uint32, timestamp *big.Int) CommitmentServiceAdvertisementPayload {
	return CommitmentServiceAdvertisementPayload{
		FeeRateBasisPoints: feeRateBasisPoints,
		Timestamp:          timestamp,
		Cmdid:              uint32(CmdCommitmentServiceAdvertisement),
	}
}
