package chain

import (
	"testing"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/internal/consensus"
	"github.com/quantachain/quanta/internal/storage"
	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

func TestChain_RebuildFromGenesis(t *testing.T) {
	ch, key, addr := testChain(t)

	transfer := signedTransfer(t, key, types.Address{0x55}, 1000, 200, 0, testTimestamp+1)
	blk1 := mineBlock(t, ch, addr, testTimestamp+1, transfer)
	if err := ch.ProcessBlock(blk1, testTimestamp+100); err != nil {
		t.Fatalf("ProcessBlock(1): %v", err)
	}
	blk2 := mineBlock(t, ch, addr, testTimestamp+2)
	if err := ch.ProcessBlock(blk2, testTimestamp+100); err != nil {
		t.Fatalf("ProcessBlock(2): %v", err)
	}

	wantSupply := ch.Supply()
	wantBurned := ch.Burned()
	wantTreasury := ch.Treasury()

	if err := ch.rebuildFromGenesis(ch.Height()); err != nil {
		t.Fatalf("rebuildFromGenesis: %v", err)
	}

	if ch.Supply() != wantSupply {
		t.Errorf("supply after rebuild = %d, want %d", ch.Supply(), wantSupply)
	}
	if ch.Burned() != wantBurned {
		t.Errorf("burned after rebuild = %d, want %d", ch.Burned(), wantBurned)
	}
	if ch.Treasury() != wantTreasury {
		t.Errorf("treasury after rebuild = %d, want %d", ch.Treasury(), wantTreasury)
	}

	recipient, err := ch.Account(types.Address{0x55})
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if recipient.Balance != 1000 {
		t.Errorf("recipient balance after rebuild = %d, want 1000", recipient.Balance)
	}
}

func TestChain_New_RecoversFromInterruptedReorg(t *testing.T) {
	db := storage.NewMemory()
	engine, err := consensus.NewPoW(1, 0, 10)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := crypto.AddressFromPubKey(key.PublicKey())

	ch, err := New(db, config.MiningRules{}, types.Address{}, engine)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen := testGenesis(map[string]uint64{addr.String(): 5_000_000})
	if err := ch.InitFromGenesis(gen); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}

	blk1 := mineBlock(t, ch, addr, testTimestamp+1)
	if err := ch.ProcessBlock(blk1, testTimestamp+100); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	// Simulate a crash mid-reorg: the checkpoint marker is left behind
	// without a corresponding rebuild having completed.
	if err := ch.blocks.PutReorgCheckpoint(0); err != nil {
		t.Fatalf("PutReorgCheckpoint: %v", err)
	}

	recovered, err := New(db, ch.rules, ch.treasuryAddr, engine)
	if err != nil {
		t.Fatalf("New (recovery): %v", err)
	}

	if recovered.Height() != 1 {
		t.Errorf("recovered height = %d, want 1", recovered.Height())
	}
	if _, found := recovered.blocks.GetReorgCheckpoint(); found {
		t.Error("reorg checkpoint should be cleared after recovery")
	}
	if recovered.Supply() != ch.Supply() {
		t.Errorf("recovered supply = %d, want %d", recovered.Supply(), ch.Supply())
	}
}
