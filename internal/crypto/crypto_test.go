package crypto

import (
	"path/filepath"
	"testing"
)

func TestSignRecoverRoundtrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	wantAddr := AddressFromPrivateKey(key)

	hash := Keccak256([]byte("a trade worth signing"))

	sig, err := Sign(hash, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("Sign returned %d bytes, want %d", len(sig), SignatureLength)
	}

	gotAddr, err := Recover(hash, sig)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if gotAddr != wantAddr {
		t.Errorf("Recover address = %s, want %s", gotAddr, wantAddr)
	}
}

func TestRecoverInvalidLength(t *testing.T) {
	hash := Keccak256([]byte("x"))
	if _, err := Recover(hash, []byte{1, 2, 3}); err != ErrInvalidSignatureLength {
		t.Errorf("Recover with short sig: err = %v, want %v", err, ErrInvalidSignatureLength)
	}
}

func TestKeccak256Deterministic(t *testing.T) {
	h1 := Keccak256([]byte("hello"))
	h2 := Keccak256([]byte("hello"))
	if h1 != h2 {
		t.Errorf("Keccak256 not deterministic: %s != %s", h1, h2)
	}
	h3 := Keccak256([]byte("world"))
	if h1 == h3 {
		t.Errorf("Keccak256 collision on different input")
	}
}

func TestLoadOrCreateKeyPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	key1, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey (create): %v", err)
	}

	key2, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey (reload): %v", err)
	}

	if AddressFromPrivateKey(key1) != AddressFromPrivateKey(key2) {
		t.Error("reloaded key derives a different address than the generated one")
	}
}
