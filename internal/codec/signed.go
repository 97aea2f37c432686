// Package codec implements the wire message field layouts, RLP encoding,
// signing, and the JSON envelope used to exchange messages over the
// transport bus.
package codec

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	raidexcrypto "github.com/raidex-network/raidex-go/internal/crypto"
)

// Signed composes an arbitrary payload with a detached 65-byte recoverable
// signature. This replaces an inheritance hierarchy of signed-message base
// classes: any payload type can be wrapped, and the hash used for signing
// is always computed by RLP-encoding the payload alone, never the
// signature.
type Signed[T any] struct {
	Payload   T
	Signature [65]byte
}

// HashWithoutSignature returns keccak256(rlp(payload)).
func (s Signed[T]) HashWithoutSignature() (raidexcrypto.Hash, error) {
	enc, err := rlp.EncodeToBytes(s.Payload)
	if err != nil {
		return raidexcrypto.Hash{}, fmt.Errorf("codec: encode payload: %w", err)
	}
	return raidexcrypto.Keccak256(enc), nil
}

// Sign computes the payload hash and signs it with key, returning a fully
// signed message.
func Sign[T any](payload T, key *ecdsa.PrivateKey) (Signed[T], error) {
	msg := Signed[T]{Payload: payload}
	hash, err := msg.HashWithoutSignature()
	if err != nil {
		return Signed[T]{}, err
	}
	sig, err := raidexcrypto.Sign(hash, key)
	if err != nil {
		return Signed[T]{}, err
	}
	copy(msg.Signature[:], sig)
	return msg, nil
}

// Sender recovers the address that produced the signature over the
// payload's hash. It returns ErrSignatureMissing if the signature is absent
// (all zero), and an ErrMalformedMessage-wrapped error if recovery from the
// signature fails.
func (s Signed[T]) Sender() (raidexcrypto.Address, error) {
	if s.Signature == ([65]byte{}) {
		return raidexcrypto.Address{}, ErrSignatureMissing
	}
	hash, err := s.HashWithoutSignature()
	if err != nil {
		return raidexcrypto.Address{}, err
	}
	addr, err := raidexcrypto.Recover(hash, s.Signature[:])
	if err != nil {
		return raidexcrypto.Address{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return addr, nil
}
