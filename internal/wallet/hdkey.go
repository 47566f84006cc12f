package wallet

import (
	"fmt"

	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 derivation path constants.
// Full path: m/44'/CoinType'/account'/change/index
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeQuanta is our registered (placeholder) coin type (hardened).
	// TODO: Register an actual coin type number.
	CoinTypeQuanta = bip32.FirstHardenedChild + 8888

	// ChangeExternal is for receiving addresses.
	ChangeExternal = 0

	// ChangeInternal is for change addresses.
	ChangeInternal = 1
)

// HDKey represents a node in a BIP-32 derivation tree. Its raw key material
// is never used directly for lattice signing — DeriveAddress-derived nodes
// are stretched into a Dilithium seed by Signer(), since CRYSTALS-Dilithium
// keys have no representation compatible with secp256k1 derivation.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add bip32.FirstHardenedChild to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DeriveAddress derives the key at m/44'/8888'/account'/change/index.
func (k *HDKey) DeriveAddress(account, change, index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinTypeQuanta,
		bip32.FirstHardenedChild+account,
		change,
		index,
	)
}

// rawKeyBytes returns the 32-byte private key material, stripping the
// leading 0x00 padding byte the bip32 library stores private keys with.
// Returns nil for a public-only (neutered) key.
func (k *HDKey) rawKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// dilithiumSeed stretches 32 bytes of BIP-32 key material into a
// crypto.SeedSize Dilithium seed via repeated SHA3-256 hashing with a
// counter, since the lattice seed and the secp256k1-sized derivation
// output are not the same length.
func dilithiumSeed(raw []byte) []byte {
	out := make([]byte, 0, crypto.SeedSize)
	for counter := byte(0); len(out) < crypto.SeedSize; counter++ {
		h := crypto.Hash(append(append([]byte{}, raw...), counter))
		out = append(out, h[:]...)
	}
	return out[:crypto.SeedSize]
}

// Signer derives a Dilithium signing key from this HD node's key material.
// Returns an error if this is a public-only key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	raw := k.rawKeyBytes()
	if raw == nil {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return crypto.PrivateKeyFromSeed(dilithiumSeed(raw))
}

// Address derives the QUANTA address reachable from this key's signer.
// Address = SHA3-256(dilithium_public_key)[:20].
func (k *HDKey) Address() (types.Address, error) {
	signer, err := k.Signer()
	if err != nil {
		return types.Address{}, err
	}
	return crypto.AddressFromPubKey(signer.PublicKey()), nil
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// Neuter returns a public-key-only copy (for watch-only wallets).
func (k *HDKey) Neuter() *HDKey {
	return &HDKey{key: k.key.PublicKey()}
}
