// Package crypto provides the hashing, signing, and address derivation
// primitives used throughout the wire protocol: keccak256 hashing,
// recoverable secp256k1 ECDSA signatures, and Ethereum-style address
// derivation from a public key.
package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the size in bytes of an address (last 20 bytes of a
// keccak256 public-key hash).
const AddressLength = ethcommon.AddressLength

// SignatureLength is the size in bytes of a recoverable secp256k1 signature
// (r || s || v).
const SignatureLength = 65

// HashLength is the size in bytes of a keccak256 digest.
const HashLength = 32

// Address is an opaque 20-byte chain address. The CORE treats addresses as
// opaque identifiers; it never inspects on-chain contract state.
type Address = ethcommon.Address

// Hash is a 32-byte keccak256 digest.
type Hash = ethcommon.Hash

// ErrInvalidSignatureLength is returned when a signature byte slice is not
// exactly SignatureLength bytes.
var ErrInvalidSignatureLength = errors.New("crypto: invalid signature length")

// Keccak256 hashes the concatenation of the given byte slices.
func Keccak256(data ...[]byte) Hash {
	return Hash(ethcrypto.Keccak256Hash(data...))
}

// GenerateKey creates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ethcrypto.GenerateKey()
}

// AddressFromPrivateKey derives the address owned by a private key.
func AddressFromPrivateKey(key *ecdsa.PrivateKey) Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}

// HexToAddress parses a hex-encoded address, as found in config files'
// token_pairs entries.
func HexToAddress(s string) Address {
	return ethcommon.HexToAddress(s)
}

// Sign produces a 65-byte recoverable ECDSA signature (r || s || v) over a
// 32-byte hash.
func Sign(hash Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := ethcrypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig, nil
}

// Recover recovers the address that produced sig over hash. It returns
// ErrInvalidSignatureLength if sig is not SignatureLength bytes.
func Recover(hash Hash, sig []byte) (Address, error) {
	if len(sig) != SignatureLength {
		return Address{}, ErrInvalidSignatureLength
	}
	pub, err := ethcrypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// LoadOrCreateKey loads the hex-encoded private key at path, or generates
// and persists a new one if the file does not exist yet.
func LoadOrCreateKey(path string) (*ecdsa.PrivateKey, error) {
	if data, err := os.ReadFile(path); err == nil {
		key, err := ethcrypto.HexToECDSA(string(trimNewline(data)))
		if err != nil {
			return nil, fmt.Errorf("crypto: parse keyfile %s: %w", path, err)
		}
		return key, nil
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("crypto: create keyfile dir: %w", err)
	}
	hexKey := ethcrypto.FromECDSA(key)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%x", hexKey)), 0600); err != nil {
		return nil, fmt.Errorf("crypto: write keyfile %s: %w", path, err)
	}
	return key, nil
}

func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r' || data[len(data)-1] == ' ') {
		data = data[:len(data)-1]
	}
	return data
}
