// Package chainstore persists blocks and chain metadata to a storage.DB.
// It is the lowest-level piece of the chain state machine: BlockStore and
// Tip carry no knowledge of consensus rules or ledger semantics, so both
// internal/consensus (header validation against chain context) and
// internal/state (ledger mutation) can depend on it without either
// depending on internal/chain, which composes all three into the chain
// orchestrator.
package chainstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/quantachain/quanta/internal/storage"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/types"
)

// Key prefixes and metadata keys, per the persistent-store key spaces:
// b/<height> -> block bytes, h/<block_hash> -> height, t/<tx_hash> ->
// (height, position), m/tip, m/burned, m/treasury.
var (
	prefixBlock  = []byte("b/")
	prefixHeight = []byte("h/")
	prefixTx     = []byte("t/")

	keyTip       = []byte("m/tip")
	keyBurned    = []byte("m/burned")
	keyTreasury  = []byte("m/treasury")
	keyReorgMark = []byte("m/reorg")
)

// BlockStore persists blocks and chain metadata to a storage.DB.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore creates a block store backed by the given database.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// batch returns an atomic batch if the underlying DB supports one,
// otherwise a best-effort non-atomic fallback.
func (bs *BlockStore) batch() storage.Batch {
	if b, ok := bs.db.(storage.Batcher); ok {
		return b.NewBatch()
	}
	return &directBatch{db: bs.db}
}

// directBatch applies writes immediately; used only when the backing DB
// (e.g. a bare in-memory map without NewBatch) offers no atomic batch.
type directBatch struct{ db storage.DB }

func (d *directBatch) Put(key, value []byte) error { return d.db.Put(key, value) }
func (d *directBatch) Delete(key []byte) error      { return d.db.Delete(key) }
func (d *directBatch) Commit() error                { return nil }

// PutBlock stores a block keyed by height, indexes it by hash -> height and
// every transaction hash -> (height, position), and atomically commits all
// of it in a single batch.
func (bs *BlockStore) PutBlock(blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}

	hash := blk.Hash()
	height := blk.Header.Height

	b := bs.batch()
	if err := b.Put(blockKey(height), data); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	if err := b.Put(heightIndexKey(hash), heightBytes(height)); err != nil {
		return fmt.Errorf("hash index put: %w", err)
	}
	for pos, t := range blk.Transactions {
		txHash := t.Hash()
		val := make([]byte, 8+8)
		binary.BigEndian.PutUint64(val[:8], height)
		binary.BigEndian.PutUint64(val[8:], uint64(pos))
		if err := b.Put(txKey(txHash), val); err != nil {
			return fmt.Errorf("tx index put %s: %w", txHash, err)
		}
	}
	return b.Commit()
}

// DeleteBlock removes a block and its indexes (used when rolling back).
func (bs *BlockStore) DeleteBlock(blk *block.Block) error {
	hash := blk.Hash()
	height := blk.Header.Height

	b := bs.batch()
	b.Delete(blockKey(height))
	b.Delete(heightIndexKey(hash))
	for _, t := range blk.Transactions {
		b.Delete(txKey(t.Hash()))
	}
	return b.Commit()
}

// GetBlock retrieves a block by height.
func (bs *BlockStore) GetBlock(height uint64) (*block.Block, error) {
	data, err := bs.db.Get(blockKey(height))
	if err != nil {
		return nil, fmt.Errorf("block get: %w", err)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("block unmarshal: %w", err)
	}
	return &blk, nil
}

// GetBlockByHash retrieves a block by its hash, via the hash->height index.
func (bs *BlockStore) GetBlockByHash(hash types.Hash) (*block.Block, error) {
	height, err := bs.HeightForHash(hash)
	if err != nil {
		return nil, err
	}
	return bs.GetBlock(height)
}

// HeightForHash resolves a block hash to its height.
func (bs *BlockStore) HeightForHash(hash types.Hash) (uint64, error) {
	data, err := bs.db.Get(heightIndexKey(hash))
	if err != nil {
		return 0, fmt.Errorf("hash index get: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt hash index: got %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// HasBlock checks if a block exists at the given height.
func (bs *BlockStore) HasBlock(height uint64) (bool, error) {
	return bs.db.Has(blockKey(height))
}

// Tip describes the chain head persisted under m/tip.
type Tip struct {
	Hash           types.Hash `json:"hash"`
	Height         uint64     `json:"height"`
	CumulativeWork uint64     `json:"cumulative_work"`
}

// SetTip stores the current chain tip.
func (bs *BlockStore) SetTip(tip Tip) error {
	data, err := json.Marshal(tip)
	if err != nil {
		return fmt.Errorf("tip marshal: %w", err)
	}
	return bs.db.Put(keyTip, data)
}

// GetTip returns the current chain tip. Returns the zero Tip if none is set
// (fresh chain, no genesis applied yet).
func (bs *BlockStore) GetTip() (Tip, error) {
	data, err := bs.db.Get(keyTip)
	if err != nil {
		return Tip{}, nil
	}
	var tip Tip
	if err := json.Unmarshal(data, &tip); err != nil {
		return Tip{}, fmt.Errorf("tip unmarshal: %w", err)
	}
	return tip, nil
}

// GetTxLocation returns the block height and position of the given transaction.
func (bs *BlockStore) GetTxLocation(txHash types.Hash) (height uint64, position int, err error) {
	data, err := bs.db.Get(txKey(txHash))
	if err != nil {
		return 0, 0, fmt.Errorf("tx index get: %w", err)
	}
	if len(data) != 16 {
		return 0, 0, fmt.Errorf("corrupt tx index: got %d bytes, want 16", len(data))
	}
	height = binary.BigEndian.Uint64(data[:8])
	position = int(binary.BigEndian.Uint64(data[8:]))
	return height, position, nil
}

// HasTx reports whether a transaction hash is already recorded on chain.
func (bs *BlockStore) HasTx(txHash types.Hash) (bool, error) {
	return bs.db.Has(txKey(txHash))
}

// AddBurned adds delta to the running total_supply_burned counter.
func (bs *BlockStore) AddBurned(delta uint64) error {
	return bs.addCounter(keyBurned, delta)
}

// GetBurned returns the running total_supply_burned counter.
func (bs *BlockStore) GetBurned() uint64 {
	return bs.getCounter(keyBurned)
}

// AddTreasury adds delta to the running treasury balance counter.
func (bs *BlockStore) AddTreasury(delta uint64) error {
	return bs.addCounter(keyTreasury, delta)
}

// GetTreasury returns the running treasury balance counter.
func (bs *BlockStore) GetTreasury() uint64 {
	return bs.getCounter(keyTreasury)
}

func (bs *BlockStore) addCounter(key []byte, delta uint64) error {
	cur := bs.getCounter(key)
	return bs.db.Put(key, heightBytes(cur+delta))
}

func (bs *BlockStore) getCounter(key []byte) uint64 {
	data, err := bs.db.Get(key)
	if err != nil || len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

// PutReorgCheckpoint marks that a reorg replacing the blocks above
// forkHeight is in progress, so
// a crash mid-reorg can be detected and the affected range rebuilt on
// restart.
func (bs *BlockStore) PutReorgCheckpoint(forkHeight uint64) error {
	return bs.db.Put(keyReorgMark, heightBytes(forkHeight))
}

// GetReorgCheckpoint returns the fork height and true if a reorg checkpoint exists.
func (bs *BlockStore) GetReorgCheckpoint() (uint64, bool) {
	data, err := bs.db.Get(keyReorgMark)
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

// DeleteReorgCheckpoint removes the reorg-in-progress marker.
func (bs *BlockStore) DeleteReorgCheckpoint() error {
	return bs.db.Delete(keyReorgMark)
}

func blockKey(height uint64) []byte {
	key := make([]byte, len(prefixBlock)+8)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], height)
	return key
}

func heightIndexKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixHeight)+types.HashSize)
	copy(key, prefixHeight)
	copy(key[len(prefixHeight):], hash[:])
	return key
}

func txKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixTx)+types.HashSize)
	copy(key, prefixTx)
	copy(key[len(prefixTx):], hash[:])
	return key
}

func heightBytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
