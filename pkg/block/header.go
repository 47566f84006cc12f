package block

import (
	"encoding/binary"

	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

// Header contains block metadata.
type Header struct {
	Height       uint64        `json:"height"`
	Timestamp    int64         `json:"timestamp"`
	PreviousHash types.Hash    `json:"previous_hash"`
	MerkleRoot   types.Hash    `json:"merkle_root"`
	Nonce        uint64        `json:"nonce"`
	Difficulty   uint32        `json:"difficulty"` // required leading zero bits of Hash()
	Miner        types.Address `json:"miner"`
}

// Hash computes the block hash: SHA3-256(SHA3-256(header bytes)). Double
// hashing is part of the wire format so a one-round preimage search can't
// shortcut the proof-of-work loop.
func (h *Header) Hash() types.Hash {
	return crypto.DoubleHash(h.SigningBytes())
}

// SigningBytes returns the canonical header encoding used both for hashing
// and as the bytes mutated (via Nonce) during mining.
//
// Format: height(8) | timestamp(8) | previous_hash(32) | merkle_root(32) |
// nonce(8) | difficulty(4) | miner(20), all little-endian.
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 8+8+32+32+8+4+types.AddressSize)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Timestamp))
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Nonce)
	buf = binary.LittleEndian.AppendUint32(buf, h.Difficulty)
	buf = append(buf, h.Miner[:]...)
	return buf
}

// MeetsDifficulty reports whether this header's hash satisfies its own
// declared difficulty target.
func (h *Header) MeetsDifficulty() bool {
	return crypto.MeetsDifficulty(h.Hash(), h.Difficulty)
}
