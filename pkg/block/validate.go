package block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader        = errors.New("block has nil header")
	ErrNoTransactions   = errors.New("block has no transactions")
	ErrBadMerkleRoot    = errors.New("merkle root mismatch")
	ErrZeroTimestamp    = errors.New("block timestamp is zero")
	ErrBadTxOrder       = errors.New("transactions not in canonical order")
	ErrNoCoinbase       = errors.New("first transaction must be coinbase")
	ErrMultipleCoinbase = errors.New("multiple coinbase transactions in block")
	ErrTooManyTxs       = errors.New("too many transactions in block")
	ErrBlockTooLarge    = errors.New("block too large")
	ErrDifficultyNotMet = errors.New("block hash does not meet declared difficulty")
	ErrMinerMismatch    = errors.New("coinbase recipient does not match header miner")
)

// Validate checks block structure and internal consistency. This does NOT
// verify consensus rules that require chain context (previous hash linkage,
// cumulative work, difficulty retarget) — see the consensus package for
// that.
func (b *Block) Validate(nowUnix int64) error {
	if b.Header == nil {
		return ErrNilHeader
	}

	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}

	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}

	if len(b.Transactions) > config.MaxBlockTxs {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), config.MaxBlockTxs)
	}

	// Check total block size (header signing bytes + all tx signing bytes).
	blockSize := len(b.Header.SigningBytes())
	for _, t := range b.Transactions {
		blockSize += len(t.SigningBytes())
	}
	if blockSize > config.MaxBlockSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrBlockTooLarge, blockSize, config.MaxBlockSize)
	}

	// Exactly one coinbase transaction, and it must be first.
	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	if b.Transactions[0].Recipient != b.Header.Miner {
		return fmt.Errorf("%w: coinbase pays %s, header miner %s",
			ErrMinerMismatch, b.Transactions[0].Recipient, b.Header.Miner)
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	// Verify merkle root.
	txHashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		txHashes[i] = t.Hash()
	}
	expectedRoot := ComputeMerkleRoot(txHashes)
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	// Canonical tx ordering: coinbase first, remaining sorted by hash ascending.
	for i := 2; i < len(txHashes); i++ {
		if bytes.Compare(txHashes[i-1][:], txHashes[i][:]) >= 0 {
			return fmt.Errorf("%w: tx %d hash >= tx %d hash", ErrBadTxOrder, i-1, i)
		}
	}

	// Validate each transaction structurally (signature checked separately —
	// it's expensive and the consensus engine may already have it cached).
	for i, t := range b.Transactions {
		if err := t.Validate(nowUnix); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	if !b.Header.MeetsDifficulty() {
		return fmt.Errorf("%w: hash %s, difficulty %d bits", ErrDifficultyNotMet, b.Header.Hash(), b.Header.Difficulty)
	}

	return nil
}

// VerifySignatures checks every non-coinbase transaction's signature.
// Separate from Validate since signature checks are the most expensive part
// of block validation and callers may want to parallelize or skip them for
// already-verified mempool transactions.
func (b *Block) VerifySignatures() error {
	for i, t := range b.Transactions {
		if err := t.VerifySignature(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}
	return nil
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
