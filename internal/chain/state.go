package chain

import "github.com/quantachain/quanta/pkg/types"

// State is a snapshot of the chain's current head: tip identity, cumulative
// proof-of-work, and circulating supply.
type State struct {
	Height         uint64
	TipHash        types.Hash
	TipTimestamp   int64
	Supply         uint64 // Circulating supply: genesis allocations + minted rewards - burned fees.
	CumulativeWork uint64 // Sum of 2^difficulty over every block on this chain (PoW fork choice).
}

// IsGenesis reports whether no blocks have been applied yet.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}
