package chain

import (
	"errors"
	"testing"

	"github.com/quantachain/quanta/internal/state"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
)

// TestProcessBlock_RejectsTamperedTransaction verifies that a transaction
// mutated after signing (amount raised post-signature, a classic
// malleability attack) fails signature verification rather than silently
// crediting the tampered amount.
func TestProcessBlock_RejectsTamperedTransaction(t *testing.T) {
	ch, key, addr := testChain(t)

	legit := signedTransfer(t, key, types.Address{0x55}, 1000, 200, 0, testTimestamp+1)
	legit.Amount = 4_000_000 // tampered after signing

	blk := mineBlock(t, ch, addr, testTimestamp+1, legit)
	err := ch.ProcessBlock(blk, testTimestamp+100)
	if err == nil {
		t.Fatal("expected tampered transaction to be rejected")
	}
	if !errors.Is(err, tx.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

// TestProcessBlock_RejectsCoinbaseRewardAboveSchedule verifies a coinbase
// claiming more than the block's scheduled reward plus fee share is
// rejected rather than allowed to mint extra supply.
func TestProcessBlock_RejectsCoinbaseRewardAboveSchedule(t *testing.T) {
	ch, _, addr := testChain(t)

	blk := mineBlock(t, ch, addr, testTimestamp+1)
	blk.Transactions[0].Amount += 1_000_000 // inflate the reward
	hashes := []types.Hash{blk.Transactions[0].Hash()}
	blk.Header.MerkleRoot = block.ComputeMerkleRoot(hashes)
	if err := ch.engine.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	err := ch.ProcessBlock(blk, testTimestamp+100)
	if !errors.Is(err, state.ErrBadCoinbaseAmount) {
		t.Fatalf("expected ErrBadCoinbaseAmount, got: %v", err)
	}
}

// TestProcessBlock_RejectsMultipleCoinbase verifies a block carrying a
// second coinbase-shaped transaction (no signature, matching a miner
// payout) is rejected at the structural validation stage.
func TestProcessBlock_RejectsMultipleCoinbase(t *testing.T) {
	ch, _, addr := testChain(t)

	legitCoinbase := mineBlock(t, ch, addr, testTimestamp+1).Transactions[0]
	extraCoinbase := tx.NewCoinbase(types.Address{0x99}, 500)
	extraCoinbase.Timestamp = testTimestamp + 1

	all := []*tx.Transaction{legitCoinbase, extraCoinbase}
	hashes := make([]types.Hash, len(all))
	for i, txn := range all {
		hashes[i] = txn.Hash()
	}
	header := &block.Header{
		Height:       1,
		Timestamp:    testTimestamp + 1,
		PreviousHash: ch.TipHash(),
		MerkleRoot:   block.ComputeMerkleRoot(hashes),
		Difficulty:   1,
		Miner:        addr,
	}
	blk := block.NewBlock(header, all)
	if err := ch.engine.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	err := ch.ProcessBlock(blk, testTimestamp+100)
	if !errors.Is(err, block.ErrMultipleCoinbase) {
		t.Fatalf("expected block.ErrMultipleCoinbase, got: %v", err)
	}
}

// TestProcessBlock_RejectsKnownAncestorNotTip verifies that a block built
// on a known-but-stale ancestor (not the current tip) is rejected as a
// non-extending block rather than silently accepted out of order.
func TestProcessBlock_RejectsKnownAncestorNotTip(t *testing.T) {
	ch, _, addr := testChain(t)
	genesisBlk, _ := ch.GetBlock(0)

	validBlock := mineBlock(t, ch, addr, testTimestamp+1)
	if err := ch.ProcessBlock(validBlock, testTimestamp+100); err != nil {
		t.Fatalf("process valid block: %v", err)
	}

	// Built on genesis (a known ancestor), not the now-current tip, and
	// carrying a height that doesn't even match genesis+1.
	stale := mineOn(t, ch, genesisBlk, addr, 1, testTimestamp+8)
	stale.Header.Height = 5
	if err := ch.engine.Seal(stale); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	err := ch.ProcessBlock(stale, testTimestamp+100)
	if !errors.Is(err, ErrNotTipExtension) {
		t.Fatalf("expected ErrNotTipExtension, got: %v", err)
	}
}
