// Package miner implements block production: selecting mempool
// transactions, computing the scheduled reward and fee split, and sealing
// the resulting block under the chain's consensus engine.
package miner

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/internal/consensus"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
)

// ChainState provides read-only access to the current chain state.
type ChainState interface {
	Height() uint64
	TipHash() types.Hash
	TipTimestamp() int64
	FeeSumWindow(height, window uint64) uint64
}

// MempoolSelector selects transactions for block inclusion. Each returned
// transaction carries its own fee, so no separate fee lookup is needed.
type MempoolSelector interface {
	SelectForBlock(limit int) []*tx.Transaction
}

// Miner produces new blocks.
type Miner struct {
	chain        ChainState
	engine       consensus.Engine
	pool         MempoolSelector
	coinbaseAddr types.Address
	rules        config.MiningRules
	maxBlockTxs  int
}

// New creates a new block producer. rules drives both the reward schedule
// (ExpectedReward/SplitReward) and the fee burn/treasury/miner split, and
// should match the genesis the chain was initialized with.
func New(chain ChainState, engine consensus.Engine, pool MempoolSelector, coinbaseAddr types.Address, rules config.MiningRules) *Miner {
	return &Miner{
		chain:        chain,
		engine:       engine,
		pool:         pool,
		coinbaseAddr: coinbaseAddr,
		rules:        rules,
		maxBlockTxs:  config.MaxBlockTxs,
	}
}

// ProduceBlock builds, seals, and returns a new block using the current time.
// The coinbase amount = scheduled reward + the miner's share of tx fees.
// The block is NOT applied to the chain — the caller must call ProcessBlock.
func (m *Miner) ProduceBlock() (*block.Block, error) {
	return m.produceBlock(context.Background(), time.Now().Unix())
}

// ProduceBlockAt builds, seals, and returns a new block with the given
// timestamp, bumped to at least parent+1 to preserve monotonicity.
func (m *Miner) ProduceBlockAt(timestamp int64) (*block.Block, error) {
	return m.produceBlock(context.Background(), timestamp)
}

// ProduceBlockCtx builds and seals a block with cancellation support. When
// the context is cancelled, PoW sealing stops immediately.
func (m *Miner) ProduceBlockCtx(ctx context.Context) (*block.Block, error) {
	return m.produceBlock(ctx, time.Now().Unix())
}

func (m *Miner) produceBlock(ctx context.Context, timestamp int64) (*block.Block, error) {
	if parentTS := m.chain.TipTimestamp(); timestamp <= parentTS {
		timestamp = parentTS + 1
	}

	var selected []*tx.Transaction
	var totalFees uint64
	if m.pool != nil {
		selected = m.pool.SelectForBlock(m.maxBlockTxs - 1) // reserve a slot for the coinbase
		for _, t := range selected {
			totalFees += t.Fee
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		hi, hj := selected[i].Hash(), selected[j].Hash()
		return bytes.Compare(hi[:], hj[:]) < 0
	})

	height := m.chain.Height() + 1
	_, _, feeMiner := splitFees(m.rules, totalFees)
	feeSum := m.chain.FeeSumWindow(height-1, 1000)
	reward := m.rules.ExpectedReward(height, feeSum)

	coinbase := tx.NewCoinbase(m.coinbaseAddr, reward+feeMiner)
	coinbase.Timestamp = timestamp

	txs := make([]*tx.Transaction, 0, 1+len(selected))
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	txHashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		txHashes[i] = t.Hash()
	}
	merkle := block.ComputeMerkleRoot(txHashes)

	header := &block.Header{
		Height:       height,
		Timestamp:    timestamp,
		PreviousHash: m.chain.TipHash(),
		MerkleRoot:   merkle,
		Miner:        m.coinbaseAddr,
	}

	if err := m.engine.Prepare(header); err != nil {
		return nil, fmt.Errorf("prepare header: %w", err)
	}

	blk := block.NewBlock(header, txs)

	// Use cancellable sealing if the engine supports it (PoW).
	if pow, ok := m.engine.(*consensus.PoW); ok {
		if err := pow.SealWithCancel(ctx, blk); err != nil {
			return nil, fmt.Errorf("seal block: %w", err)
		}
	} else {
		if err := m.engine.Seal(blk); err != nil {
			return nil, fmt.Errorf("seal block: %w", err)
		}
	}

	return blk, nil
}

// splitFees divides a fee total into burn/treasury/miner shares using the
// same percentages internal/state.View.ApplyBlock applies on commit — the
// miner share absorbs the rounding remainder so the three shares always
// sum exactly to total.
func splitFees(rules config.MiningRules, total uint64) (burn, treasury, miner uint64) {
	burn = total * rules.FeeBurnPercent / 100
	treasury = total * rules.FeeTreasuryPercent / 100
	miner = total - burn - treasury
	return burn, treasury, miner
}
