package chain

import (
	"fmt"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
)

// CreateGenesisBlock builds the height-0 block from the genesis
// configuration. It carries a single coinbase transaction crediting the
// chain's one pre-mine allocation (or a zero-value coinbase to the
// treasury address if there is none) — an account-model transaction has
// exactly one recipient, so a genesis block can only self-describe a single
// initial allocation. Both of this chain's defined networks fit that shape
// (mainnet: no pre-mine; testnet: one faucet address), so genesis is kept
// fully self-contained: replaying the persisted genesis block alone is
// enough to reconstruct its effect on the ledger, with no need to carry the
// original config.Genesis.Alloc map forward at rebuild time.
func CreateGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}
	if len(gen.Alloc) > 1 {
		return nil, fmt.Errorf("genesis supports at most one initial allocation (got %d); distribute further with post-genesis transfers", len(gen.Alloc))
	}

	treasuryAddr, err := types.ParseAddress(gen.TreasuryAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid treasury address: %w", err)
	}

	recipient := treasuryAddr
	var amount uint64
	for addrStr, amt := range gen.Alloc {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		recipient, amount = addr, amt
	}

	coinbase := tx.NewCoinbase(recipient, amount)
	coinbase.Timestamp = int64(gen.Timestamp)

	merkle := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})

	header := &block.Header{
		Height:       0,
		Timestamp:    int64(gen.Timestamp),
		PreviousHash: types.Hash{},
		MerkleRoot:   merkle,
		Difficulty:   gen.Protocol.Consensus.InitialDifficultyBits,
		Miner:        recipient,
	}

	return block.NewBlock(header, []*tx.Transaction{coinbase}), nil
}
