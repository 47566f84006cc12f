package chain

import (
	"fmt"
	"time"

	"github.com/quantachain/quanta/internal/state"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
)

// ErrReorgTooDeep is returned when a candidate branch exceeds MaxReorgDepth.
var ErrReorgTooDeep = fmt.Errorf("reorg too deep")

// ErrGenesisReorg is returned when a reorg would replace the genesis block.
var ErrGenesisReorg = fmt.Errorf("reorg would replace genesis block")

// ErrLighterBranch is returned when a candidate branch does not have more
// cumulative work than the current chain.
var ErrLighterBranch = fmt.Errorf("candidate branch does not exceed current cumulative work")

// MaxReorgDepth is the maximum number of blocks a candidate branch passed to
// ReorgTo may contain.
const MaxReorgDepth = 1000

// ReorgTo switches the chain onto an alternate branch, per the decision to
// reorg only in direct response to an explicitly supplied heavier branch
// (e.g. one a peer advertised) rather than speculative fork-choice among
// several locally buffered candidates. branch must be contiguous, starting
// at forkHeight+1 and ending at the candidate tip, with branch[0]'s
// PreviousHash equal to the hash of the chain's block at forkHeight.
//
// The height-keyed block store can only hold one block per height, so a
// candidate branch is validated and its cumulative work compared against
// the current chain entirely from already-persisted history before any of
// its blocks are written — only once it is confirmed heavier does it
// overwrite the old branch's height slots.
func (c *Chain) ReorgTo(branch []*block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(branch) == 0 {
		return fmt.Errorf("empty candidate branch")
	}
	if len(branch) > MaxReorgDepth {
		return fmt.Errorf("%w: %d blocks", ErrReorgTooDeep, len(branch))
	}

	forkHeight := branch[0].Header.Height - 1
	if forkHeight == 0 {
		if !c.genesisHash.IsZero() && branch[0].Header.PreviousHash != c.genesisHash {
			return ErrGenesisReorg
		}
	}

	forkBlk, err := c.blocks.GetBlock(forkHeight)
	if err != nil {
		return fmt.Errorf("load fork-point block at height %d: %w", forkHeight, err)
	}
	if branch[0].Header.PreviousHash != forkBlk.Hash() {
		return fmt.Errorf("branch does not attach to block at height %d", forkHeight)
	}
	for i, blk := range branch {
		if err := c.validator.ValidateStructure(blk, time.Now().Unix()); err != nil {
			return fmt.Errorf("validate branch block at height %d: %w", blk.Header.Height, err)
		}
		if i > 0 && (blk.Header.Height != branch[i-1].Header.Height+1 || blk.Header.PreviousHash != branch[i-1].Hash()) {
			return fmt.Errorf("branch is not contiguous at height %d", blk.Header.Height)
		}
	}

	var oldWork, newWork uint64
	for h := forkHeight + 1; h <= c.state.Height; h++ {
		blk, err := c.blocks.GetBlock(h)
		if err != nil {
			return fmt.Errorf("load old branch block at height %d: %w", h, err)
		}
		oldWork += workUnits(blk.Header.Difficulty)
	}
	for _, blk := range branch {
		newWork += workUnits(blk.Header.Difficulty)
	}
	if newWork <= oldWork {
		return ErrLighterBranch
	}

	var reverted []*block.Block
	for h := forkHeight + 1; h <= c.state.Height; h++ {
		blk, err := c.blocks.GetBlock(h)
		if err == nil {
			reverted = append(reverted, blk)
		}
	}

	if err := c.blocks.PutReorgCheckpoint(forkHeight); err != nil {
		return fmt.Errorf("write reorg checkpoint: %w", err)
	}

	if err := state.ClearAllAccounts(c.db); err != nil {
		return fmt.Errorf("clear accounts for rebuild: %w", err)
	}

	// Re-apply genesis allocations, then every surviving block up to the
	// fork point, then the new branch. Nothing in the old branch above the
	// fork point is replayed, which is precisely how it's dropped.
	for h := uint64(0); h <= forkHeight; h++ {
		if err := c.replayHeight(h); err != nil {
			return fmt.Errorf("replay height %d: %w", h, err)
		}
	}
	for _, blk := range branch {
		if err := c.blocks.PutBlock(blk); err != nil {
			return fmt.Errorf("store branch block at height %d: %w", blk.Header.Height, err)
		}
	}
	for h := forkHeight + 1; h <= branch[len(branch)-1].Header.Height; h++ {
		if err := c.replayHeight(h); err != nil {
			return fmt.Errorf("replay new branch height %d: %w", h, err)
		}
	}

	tip := branch[len(branch)-1]
	c.state.Height = tip.Header.Height
	c.state.TipHash = tip.Hash()
	c.state.TipTimestamp = tip.Header.Timestamp
	c.state.CumulativeWork = c.replayedWork

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}

	if c.revertedTxHandler != nil && len(reverted) > 0 {
		newBranchTxs := make(map[string]bool)
		for _, blk := range branch {
			for _, t := range blk.Transactions {
				h := t.Hash()
				newBranchTxs[string(h[:])] = true
			}
		}
		var toReturn []*tx.Transaction
		for _, blk := range reverted {
			for _, t := range blk.Transactions[1:] {
				h := t.Hash()
				if !newBranchTxs[string(h[:])] {
					toReturn = append(toReturn, t)
				}
			}
		}
		if len(toReturn) > 0 {
			c.revertedTxHandler(toReturn)
		}
	}

	return nil
}

// workUnits returns 2^difficulty, matching internal/state's saturation rule.
func workUnits(difficulty uint32) uint64 {
	if difficulty >= 63 {
		return ^uint64(0)
	}
	return uint64(1) << difficulty
}

// rebuildFromGenesis replays every persisted block from genesis through
// height, rebuilding the account ledger from scratch. Used for startup
// recovery after a crash mid-reorg.
func (c *Chain) rebuildFromGenesis(height uint64) error {
	if err := state.ClearAllAccounts(c.db); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	for h := uint64(0); h <= height; h++ {
		if err := c.replayHeight(h); err != nil {
			return fmt.Errorf("replay height %d: %w", h, err)
		}
	}
	c.state.CumulativeWork = c.replayedWork
	return nil
}
