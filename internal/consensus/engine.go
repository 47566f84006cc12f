// Package consensus validates block headers against proof-of-work rules
// and the chain's contextual linkage/difficulty requirements.
package consensus

import "github.com/quantachain/quanta/pkg/block"

// Engine is the interface for consensus header verification and mining
// preparation. PoW is the only implementation; the interface exists so
// internal/chain and internal/miner don't depend on PoW's concrete type.
type Engine interface {
	VerifyHeader(header *block.Header) error
	Prepare(header *block.Header) error
	Seal(blk *block.Block) error
}
