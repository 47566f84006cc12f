package consensus

import (
	"testing"

	"github.com/quantachain/quanta/internal/chainstore"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
)

func validTestBlock(height uint64, prev types.Hash, timestamp int64) *block.Block {
	coinbase := tx.NewCoinbase(types.Address{0x01}, 0)
	hash := coinbase.Hash()
	header := &block.Header{
		Height:       height,
		Timestamp:    timestamp,
		PreviousHash: prev,
		MerkleRoot:   hash,
		Miner:        types.Address{0x01},
	}
	return block.NewBlock(header, []*tx.Transaction{coinbase})
}

func TestValidator_ValidateStructure_Valid(t *testing.T) {
	engine, _ := NewPoW(1, 0, 3)
	v := NewValidator(engine)

	blk := validTestBlock(1, types.Hash{}, 1000)
	blk.Header.Difficulty = 1
	if err := engine.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if err := v.ValidateStructure(blk, 2000); err != nil {
		t.Fatalf("ValidateStructure: %v", err)
	}
}

func TestValidator_ValidateStructure_InsufficientWork(t *testing.T) {
	engine, _ := NewPoW(1, 0, 3)
	v := NewValidator(engine)

	blk := validTestBlock(1, types.Hash{}, 1000)
	blk.Header.Difficulty = 255 // unsealed, won't meet this

	if err := v.ValidateStructure(blk, 2000); err == nil {
		t.Fatal("ValidateStructure should fail for a block that doesn't meet difficulty")
	}
}

func TestValidator_ValidateContext_Valid(t *testing.T) {
	engine, _ := NewPoW(1, 10, 10)
	v := NewValidator(engine)

	prevHash := types.Hash{0xAA}
	tip := chainstore.Tip{Hash: prevHash, Height: 5}

	blk := validTestBlock(6, prevHash, 2000)
	blk.Header.Difficulty = 1

	err := v.ValidateContext(blk, tip, 1, 1000, 2100, nil)
	if err != nil {
		t.Fatalf("ValidateContext: %v", err)
	}
}

func TestValidator_ValidateContext_NotOnTip(t *testing.T) {
	engine, _ := NewPoW(1, 10, 10)
	v := NewValidator(engine)

	tip := chainstore.Tip{Hash: types.Hash{0xAA}, Height: 5}
	blk := validTestBlock(6, types.Hash{0xBB}, 2000)
	blk.Header.Difficulty = 1

	err := v.ValidateContext(blk, tip, 1, 1000, 2100, nil)
	if err != ErrNotOnTip {
		t.Fatalf("ValidateContext err = %v, want ErrNotOnTip", err)
	}
}

func TestValidator_ValidateContext_WrongHeight(t *testing.T) {
	engine, _ := NewPoW(1, 10, 10)
	v := NewValidator(engine)

	prevHash := types.Hash{0xAA}
	tip := chainstore.Tip{Hash: prevHash, Height: 5}
	blk := validTestBlock(8, prevHash, 2000)
	blk.Header.Difficulty = 1

	err := v.ValidateContext(blk, tip, 1, 1000, 2100, nil)
	if err != ErrWrongHeight {
		t.Fatalf("ValidateContext err = %v, want ErrWrongHeight", err)
	}
}

func TestValidator_ValidateContext_StaleTimestamp(t *testing.T) {
	engine, _ := NewPoW(1, 10, 10)
	v := NewValidator(engine)

	prevHash := types.Hash{0xAA}
	tip := chainstore.Tip{Hash: prevHash, Height: 5}
	blk := validTestBlock(6, prevHash, 900)
	blk.Header.Difficulty = 1

	err := v.ValidateContext(blk, tip, 1, 1000, 2100, nil)
	if err != ErrStaleBlock {
		t.Fatalf("ValidateContext err = %v, want ErrStaleBlock", err)
	}
}

func TestValidator_ValidateContext_FutureBlock(t *testing.T) {
	engine, _ := NewPoW(1, 10, 10)
	v := NewValidator(engine)

	prevHash := types.Hash{0xAA}
	tip := chainstore.Tip{Hash: prevHash, Height: 5}
	blk := validTestBlock(6, prevHash, 100000)
	blk.Header.Difficulty = 1

	err := v.ValidateContext(blk, tip, 1, 1000, 2100, nil)
	if err != ErrFutureBlock {
		t.Fatalf("ValidateContext err = %v, want ErrFutureBlock", err)
	}
}
