package chain

import (
	"errors"
	"fmt"

	"github.com/quantachain/quanta/internal/state"
	"github.com/quantachain/quanta/pkg/block"
)

// Block processing errors.
var (
	ErrBlockKnown       = errors.New("block already known")
	ErrNotTipExtension  = errors.New("block does not extend the current tip")
)

// ProcessBlock validates a block and applies it to the chain. nowUnix bounds
// the block's timestamp against the wall clock. If the block extends the
// current tip it is applied directly; any other block (a fork from a known
// ancestor, or one past a gap) is rejected with ErrNotTipExtension and is
// not stored. An alternate branch is adopted only through ReorgTo.
func (c *Chain) ProcessBlock(blk *block.Block, nowUnix int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}

	hash := blk.Hash()
	if known, err := c.blocks.HasBlock(blk.Header.Height); err == nil && known {
		if existing, err := c.blocks.GetBlock(blk.Header.Height); err == nil && existing.Hash() == hash {
			return ErrBlockKnown
		}
	}

	if err := c.validator.ValidateStructure(blk, nowUnix); err != nil {
		return fmt.Errorf("validate structure: %w", err)
	}

	tip, err := c.blocks.GetTip()
	if err != nil {
		return fmt.Errorf("load tip: %w", err)
	}

	if blk.Header.Height == 0 {
		return fmt.Errorf("genesis block must be created via InitFromGenesis")
	}

	// Fast path: block extends the current tip.
	if blk.Header.PreviousHash == tip.Hash && blk.Header.Height == tip.Height+1 {
		return c.applyFastPath(blk, tip, nowUnix)
	}

	return fmt.Errorf("%w: block %s at height %d does not extend tip %s at height %d; use ReorgTo for an alternate branch",
		ErrNotTipExtension, hash, blk.Header.Height, tip.Hash, tip.Height)
}

func (c *Chain) applyFastPath(blk *block.Block, tip Tip, nowUnix int64) error {
	var prevDifficulty uint32
	var prevTimestamp int64
	if blk.Header.Height > 0 {
		prevBlk, err := c.blocks.GetBlock(blk.Header.Height - 1)
		if err != nil {
			return fmt.Errorf("load parent for context checks: %w", err)
		}
		prevDifficulty = prevBlk.Header.Difficulty
		prevTimestamp = prevBlk.Header.Timestamp
	}

	getTimestamp := func(h uint64) (int64, error) {
		b, err := c.blocks.GetBlock(h)
		if err != nil {
			return 0, err
		}
		return b.Header.Timestamp, nil
	}
	if err := c.validator.ValidateContext(blk, tip, prevDifficulty, prevTimestamp, nowUnix, getTimestamp); err != nil {
		return fmt.Errorf("validate context: %w", err)
	}

	feeSum := c.FeeSumWindow(blk.Header.Height-1, 1000)

	view := state.Begin(c.db, c.blocks, c.rules, c.treasuryAddr, tip)
	result, err := view.ApplyBlock(blk, feeSum)
	if err != nil {
		return fmt.Errorf("apply block: %w", err)
	}
	if err := view.Commit(); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}

	c.state.Height = result.Height
	c.state.TipHash = result.Hash
	c.state.TipTimestamp = blk.Header.Timestamp
	c.state.Supply += result.Reward
	if result.FeeBurned > c.state.Supply {
		c.state.Supply = 0
	} else {
		c.state.Supply -= result.FeeBurned
	}
	c.state.CumulativeWork = view.Tip().CumulativeWork

	return nil
}
