// Package chain implements the blockchain state machine: block application,
// tip tracking, and fork reorganization over the account ledger.
package chain

import (
	"fmt"
	"sync"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/internal/consensus"
	"github.com/quantachain/quanta/internal/state"
	"github.com/quantachain/quanta/internal/storage"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
)

// RevertedTxHandler is called after a reorg with transactions from reverted
// blocks that have no counterpart in the new branch, so the caller can
// re-insert them into the mempool.
type RevertedTxHandler func(txs []*tx.Transaction)

// Chain ties together persistent block/tx storage, the account ledger, and
// proof-of-work consensus into a single state machine.
type Chain struct {
	mu sync.Mutex // Serializes ProcessBlock/Reorg/InitFromGenesis.

	db           storage.DB
	blocks       *BlockStore
	rules        config.MiningRules
	treasuryAddr types.Address
	engine       *consensus.PoW
	validator    *consensus.Validator

	genesisHash  types.Hash
	state        State
	replayedWork uint64 // running cumulative-work accumulator used during rebuildFromGenesis/ReorgTo replay.

	revertedTxHandler RevertedTxHandler
}

// New creates a chain over the given database and recovers its tip from
// whatever has already been persisted (a fresh database yields a
// zero/genesis state).
func New(db storage.DB, rules config.MiningRules, treasuryAddr types.Address, engine *consensus.PoW) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("consensus engine is nil")
	}

	blocks := NewBlockStore(db)
	tip, err := blocks.GetTip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}

	c := &Chain{
		db:           db,
		blocks:       blocks,
		rules:        rules,
		treasuryAddr: treasuryAddr,
		engine:       engine,
		validator:    consensus.NewValidator(engine),
		state: State{
			Height:         tip.Height,
			TipHash:        tip.Hash,
			CumulativeWork: tip.CumulativeWork,
		},
	}

	if genBlk, err := blocks.GetBlock(0); err == nil {
		c.genesisHash = genBlk.Hash()
		if !tip.Hash.IsZero() || tip.Height != 0 {
			c.state.TipTimestamp = c.tipTimestamp()
		}
	}

	// A crash mid-reorg leaves the reorg checkpoint set; the account ledger
	// may reflect a partially-applied branch. Rebuild from genesis to the
	// persisted tip to recover a consistent state.
	if _, found := blocks.GetReorgCheckpoint(); found {
		if err := c.rebuildFromGenesis(c.state.Height); err != nil {
			return nil, fmt.Errorf("recover from interrupted reorg: %w", err)
		}
		if err := blocks.DeleteReorgCheckpoint(); err != nil {
			return nil, fmt.Errorf("clear reorg checkpoint: %w", err)
		}
	}

	return c, nil
}

func (c *Chain) tipTimestamp() int64 {
	blk, err := c.blocks.GetBlock(c.state.Height)
	if err != nil {
		return 0
	}
	return blk.Header.Timestamp
}

// InitFromGenesis initializes a fresh chain from genesis configuration.
// Returns an error if the chain already has blocks.
func (c *Chain) InitFromGenesis(gen *config.Genesis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsGenesis() {
		return fmt.Errorf("chain already initialized at height %d", c.state.Height)
	}

	treasuryAddr, err := types.ParseAddress(gen.TreasuryAddress)
	if err != nil {
		return fmt.Errorf("invalid treasury address: %w", err)
	}

	blk, err := CreateGenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("create genesis: %w", err)
	}

	supply, err := c.applyGenesisBlock(blk)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}

	if err := c.blocks.PutBlock(blk); err != nil {
		return fmt.Errorf("store genesis: %w", err)
	}

	hash := blk.Hash()
	tip := Tip{Hash: hash, Height: 0, CumulativeWork: 0}
	if err := c.blocks.SetTip(tip); err != nil {
		return fmt.Errorf("set genesis tip: %w", err)
	}

	c.genesisHash = hash
	c.treasuryAddr = treasuryAddr
	c.rules = gen.Protocol.Mining
	c.state = State{
		Height:       0,
		TipHash:      hash,
		TipTimestamp: blk.Header.Timestamp,
		Supply:       supply,
	}

	return nil
}

// State returns a copy of the current chain state.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Height returns the current chain height.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Height
}

// TipHash returns the hash of the current chain tip.
func (c *Chain) TipHash() types.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TipHash
}

// TipTimestamp returns the timestamp of the current chain tip.
func (c *Chain) TipTimestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TipTimestamp
}

// Supply returns the current circulating supply.
func (c *Chain) Supply() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Supply
}

// Rules returns the mining/reward rules the chain was initialized with.
func (c *Chain) Rules() config.MiningRules {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules
}

// GetBlock retrieves a block by height.
func (c *Chain) GetBlock(height uint64) (*block.Block, error) {
	return c.blocks.GetBlock(height)
}

// GetBlockByHash retrieves a block by its hash.
func (c *Chain) GetBlockByHash(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlockByHash(hash)
}

// GetTransaction looks up a confirmed transaction by hash via the tx index.
func (c *Chain) GetTransaction(hash types.Hash) (*tx.Transaction, error) {
	height, position, err := c.blocks.GetTxLocation(hash)
	if err != nil {
		return nil, err
	}
	blk, err := c.blocks.GetBlock(height)
	if err != nil {
		return nil, fmt.Errorf("load block for tx: %w", err)
	}
	if position < 0 || position >= len(blk.Transactions) {
		return nil, fmt.Errorf("tx %s: index position %d out of range", hash, position)
	}
	return blk.Transactions[position], nil
}

// GetTxBlock looks up the block and in-block index containing a confirmed
// transaction, for callers that need to place it in its merkle tree (e.g.
// an inclusion proof).
func (c *Chain) GetTxBlock(hash types.Hash) (*block.Block, int, error) {
	height, position, err := c.blocks.GetTxLocation(hash)
	if err != nil {
		return nil, 0, err
	}
	blk, err := c.blocks.GetBlock(height)
	if err != nil {
		return nil, 0, fmt.Errorf("load block for tx: %w", err)
	}
	if position < 0 || position >= len(blk.Transactions) {
		return nil, 0, fmt.Errorf("tx %s: index position %d out of range", hash, position)
	}
	return blk, position, nil
}

// HasTx reports whether a transaction hash is already recorded on chain.
// Satisfies mempool.ChainTxChecker.
func (c *Chain) HasTx(hash types.Hash) (bool, error) {
	return c.blocks.HasTx(hash)
}

// Account returns an address's current ledger state. Satisfies
// mempool.AccountReader.
func (c *Chain) Account(addr types.Address) (*state.Account, error) {
	return state.GetAccount(c.db, addr)
}

// Burned returns the running total of fees destroyed by the burn split.
func (c *Chain) Burned() uint64 {
	return c.blocks.GetBurned()
}

// Treasury returns the running total credited to the treasury address via
// the fee split (the treasury account's own balance tracks the same value;
// this counter exists for quick reporting without an account lookup).
func (c *Chain) Treasury() uint64 {
	return c.blocks.GetTreasury()
}

// SetRevertedTxHandler sets the callback for transactions reverted during a
// reorg so they can be re-added to the mempool if still valid.
func (c *Chain) SetRevertedTxHandler(fn RevertedTxHandler) {
	c.revertedTxHandler = fn
}

// FeeSumWindow sums the fees collected by the most recent min(window,
// height) blocks below (and including) height, for the usage-based reward
// multiplier (spec.md §4.H uses the trailing 1000-block window).
func (c *Chain) FeeSumWindow(height uint64, window uint64) uint64 {
	var sum uint64
	start := uint64(0)
	if height > window {
		start = height - window + 1
	}
	for h := start; h <= height; h++ {
		blk, err := c.blocks.GetBlock(h)
		if err != nil {
			continue
		}
		for _, t := range blk.Transactions[1:] {
			sum += t.Fee
		}
	}
	return sum
}

// applyGenesisBlock credits the genesis block's single coinbase allocation
// directly, bypassing the reward/fee pipeline that governs every later
// block. It returns the resulting circulating supply and resets the
// cumulative-work replay accumulator to zero, since genesis carries no
// proof-of-work.
func (c *Chain) applyGenesisBlock(blk *block.Block) (uint64, error) {
	if len(blk.Transactions) != 1 {
		return 0, fmt.Errorf("genesis block must carry exactly one transaction, got %d", len(blk.Transactions))
	}
	coinbase := blk.Transactions[0]
	if err := state.PutAccount(c.db, coinbase.Recipient, &state.Account{Balance: coinbase.Amount}); err != nil {
		return 0, fmt.Errorf("credit genesis allocation: %w", err)
	}
	c.replayedWork = 0
	return coinbase.Amount, nil
}

// replayHeight re-applies the block already persisted at height h to the
// account ledger, used to rebuild the ledger from stored blocks alone
// (startup recovery after an interrupted reorg, and ReorgTo's rewind to a
// common ancestor). It accumulates into c.replayedWork and c.state.Supply
// as it goes, so callers replay a contiguous range starting at height 0.
func (c *Chain) replayHeight(h uint64) error {
	blk, err := c.blocks.GetBlock(h)
	if err != nil {
		return fmt.Errorf("load block at height %d: %w", h, err)
	}

	if h == 0 {
		supply, err := c.applyGenesisBlock(blk)
		if err != nil {
			return err
		}
		c.state.Supply = supply
		return nil
	}

	feeSum := c.FeeSumWindow(h-1, 1000)
	parentTip := Tip{Hash: blk.Header.PreviousHash, Height: h - 1, CumulativeWork: c.replayedWork}
	view := state.Begin(c.db, c.blocks, c.rules, c.treasuryAddr, parentTip)
	result, err := view.ApplyBlock(blk, feeSum)
	if err != nil {
		return fmt.Errorf("replay apply block %d: %w", h, err)
	}
	if err := view.Commit(); err != nil {
		return fmt.Errorf("replay commit block %d: %w", h, err)
	}

	c.replayedWork = view.Tip().CumulativeWork
	c.state.Supply += result.Reward
	if result.FeeBurned > c.state.Supply {
		c.state.Supply = 0
	} else {
		c.state.Supply -= result.FeeBurned
	}
	return nil
}
