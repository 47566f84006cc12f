package consensus

import (
	"errors"
	"fmt"

	"github.com/quantachain/quanta/internal/chainstore"
	"github.com/quantachain/quanta/pkg/block"
)

// Block contextual errors: linkage and difficulty checks that require
// knowledge of the current chain tip, as opposed to block.Validate's
// context-free structural checks.
var (
	ErrNotOnTip    = errors.New("block previous_hash does not match current tip")
	ErrWrongHeight = errors.New("block height is not tip height + 1")
	ErrFutureBlock = errors.New("block timestamp too far in the future")
	ErrStaleBlock  = errors.New("block timestamp not after previous block")
)

// Validator validates blocks against both structural and consensus rules.
// Per-transaction contextual checks (nonce, spendable balance, coinbase
// reward amount) are the responsibility of internal/state.View.ApplyBlock,
// which is the actual mutation entry point — Validator checks everything
// that can be decided from headers and chain metadata alone, cheaply,
// before a block is ever handed to a view.
type Validator struct {
	engine *PoW
}

// NewValidator creates a block validator with the given PoW engine.
func NewValidator(engine *PoW) *Validator {
	return &Validator{engine: engine}
}

// ValidateStructure runs the context-free checks: structural integrity,
// canonical tx order, merkle root, transaction signatures, and PoW target
// met. nowUnix bounds the block's timestamp from "the future" side.
func (v *Validator) ValidateStructure(blk *block.Block, nowUnix int64) error {
	if err := blk.Validate(nowUnix); err != nil {
		return fmt.Errorf("block structure: %w", err)
	}
	if err := blk.VerifySignatures(); err != nil {
		return fmt.Errorf("signatures: %w", err)
	}
	if err := v.engine.VerifyHeader(blk.Header); err != nil {
		return fmt.Errorf("consensus: %w", err)
	}
	return nil
}

// ValidateContext runs the checks that require the current chain tip:
// previous_hash/height linkage, timestamp monotonicity against the parent,
// and expected-difficulty agreement. getTimestamp resolves a block's
// timestamp by height, needed for the difficulty retarget calculation.
func (v *Validator) ValidateContext(blk *block.Block, tip chainstore.Tip, prevDifficulty uint32, prevTimestamp int64, nowUnix int64, getTimestamp func(uint64) (int64, error)) error {
	header := blk.Header

	if header.PreviousHash != tip.Hash {
		return ErrNotOnTip
	}
	if header.Height != tip.Height+1 {
		return ErrWrongHeight
	}
	if header.Timestamp <= prevTimestamp {
		return ErrStaleBlock
	}
	if header.Timestamp > nowUnix+2*60*60 {
		return ErrFutureBlock
	}
	if err := v.engine.VerifyDifficulty(header, prevDifficulty, getTimestamp); err != nil {
		return fmt.Errorf("difficulty: %w", err)
	}
	return nil
}
