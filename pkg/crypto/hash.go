// Package crypto provides cryptographic primitives for QUANTA.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/quantachain/quanta/pkg/types"
)

// Hash computes a SHA3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return types.Hash(sha3.Sum256(data))
}

// DoubleHash computes Hash(Hash(data)). Block hashes are double-hashed per
// the wire format: hash = SHA3-256(SHA3-256(header bytes)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// AddressFromPubKey derives an address from a Falcon-512 public key.
// Address = SHA3-256(public_key)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// HashConcat hashes the concatenation of two hashes. Used for building
// merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// LeadingZeroBits returns the number of leading zero bits in a hash,
// treating it as a 256-bit big-endian integer. Used to compare a block
// hash against the required PoW difficulty.
func LeadingZeroBits(h types.Hash) uint32 {
	var bits uint32
	for _, b := range h {
		if b == 0 {
			bits += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return bits
			}
			bits++
		}
		return bits
	}
	return bits
}

// MeetsDifficulty reports whether h has at least the required number of
// leading zero bits.
func MeetsDifficulty(h types.Hash, bits uint32) bool {
	return LeadingZeroBits(h) >= bits
}
