package consensus

import (
	"testing"

	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/types"
)

func TestNewPoW_ZeroDifficulty(t *testing.T) {
	_, err := NewPoW(0, 0, 3)
	if err != ErrZeroDifficulty {
		t.Fatalf("NewPoW(0) err = %v, want ErrZeroDifficulty", err)
	}
}

func TestPoW_SealAndVerify(t *testing.T) {
	// Very low difficulty so seal completes instantly.
	pow, err := NewPoW(1, 0, 3)
	if err != nil {
		t.Fatal(err)
	}

	header := &block.Header{
		PreviousHash: types.Hash{},
		MerkleRoot:   types.Hash{1, 2, 3},
		Timestamp:    1000,
		Height:       1,
		Difficulty:   1,
	}

	blk := block.NewBlock(header, nil)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after Seal: %v", err)
	}
}

func TestPoW_VerifyHeader_Rejects(t *testing.T) {
	pow, err := NewPoW(1, 0, 3)
	if err != nil {
		t.Fatal(err)
	}

	// Near-impossible difficulty for a fixed nonce.
	header := &block.Header{
		PreviousHash: types.Hash{},
		MerkleRoot:   types.Hash{1, 2, 3},
		Timestamp:    1000,
		Height:       1,
		Difficulty:   255,
		Nonce:        42,
	}

	err = pow.VerifyHeader(header)
	if err != ErrInsufficientWork {
		t.Fatalf("VerifyHeader with high difficulty = %v, want ErrInsufficientWork", err)
	}
}

func TestPoW_VerifyHeader_ZeroDifficulty(t *testing.T) {
	pow, err := NewPoW(1, 0, 3)
	if err != nil {
		t.Fatal(err)
	}

	header := &block.Header{
		Height:     1,
		Difficulty: 0,
	}

	err = pow.VerifyHeader(header)
	if err != ErrZeroDifficulty {
		t.Fatalf("VerifyHeader(difficulty=0) = %v, want ErrZeroDifficulty", err)
	}
}

func TestPoW_SealModerateDifficulty(t *testing.T) {
	// 8 leading zero bits: one byte of the hash must be zero. Fast to find.
	pow, err := NewPoW(8, 0, 3)
	if err != nil {
		t.Fatal(err)
	}

	header := &block.Header{
		PreviousHash: types.Hash{},
		MerkleRoot:   types.Hash{0xDE, 0xAD},
		Timestamp:    12345,
		Height:       5,
		Difficulty:   8,
	}
	blk := block.NewBlock(header, nil)

	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader: %v", err)
	}
	if !blk.Header.MeetsDifficulty() {
		t.Fatal("sealed header should meet its own difficulty")
	}
}

func TestPoW_Prepare_SetsDifficulty(t *testing.T) {
	pow, _ := NewPoW(42, 0, 3)
	header := &block.Header{Height: 1, Timestamp: 1}
	if err := pow.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Difficulty != 42 {
		t.Fatalf("Prepare set difficulty = %d, want 42", header.Difficulty)
	}
}

func TestPoW_Prepare_UsesDifficultyFn(t *testing.T) {
	pow, _ := NewPoW(1, 0, 3)
	pow.DifficultyFn = func(height uint64) uint32 {
		return uint32(height) * 2
	}

	header := &block.Header{Height: 5, Timestamp: 1}
	if err := pow.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Difficulty != 10 {
		t.Fatalf("Prepare with DifficultyFn set difficulty = %d, want 10", header.Difficulty)
	}
}

// ── Difficulty adjustment tests ──────────────────────────────────────
// Per the retarget rule: new = clamp(old*expected/actual, [old/2, old*2], >=1).

func TestCalcNextDifficulty_ExactTarget(t *testing.T) {
	got := CalcNextDifficulty(100, 100, 100)
	if got != 100 {
		t.Fatalf("CalcNextDifficulty(exact) = %d, want 100", got)
	}
}

func TestCalcNextDifficulty_TooFast(t *testing.T) {
	// actual=50, expected=100 -> raw = 100*100/50 = 200, clamp max = 100*2 = 200.
	got := CalcNextDifficulty(100, 50, 100)
	if got != 200 {
		t.Fatalf("CalcNextDifficulty(2x fast) = %d, want 200", got)
	}
}

func TestCalcNextDifficulty_TooSlow(t *testing.T) {
	// S5: blocks spaced 20s apart vs expected 10s/block over 10 blocks = 100s
	// expected, actual = 200s -> raw = d0*100/200 = d0/2, clamp min = d0/2.
	got := CalcNextDifficulty(20, 200, 100)
	if got != 10 {
		t.Fatalf("CalcNextDifficulty(S5 halved) = %d, want 10", got)
	}
}

func TestCalcNextDifficulty_ClampUp(t *testing.T) {
	// actual much smaller than expected would imply >2x increase; clamped to 2x.
	got := CalcNextDifficulty(100, 10, 100)
	if got != 200 {
		t.Fatalf("CalcNextDifficulty(clamp up) = %d, want 200", got)
	}
}

func TestCalcNextDifficulty_ClampDown(t *testing.T) {
	// actual much larger than expected would imply <0.5x decrease; clamped to 0.5x.
	got := CalcNextDifficulty(100, 10000, 100)
	if got != 50 {
		t.Fatalf("CalcNextDifficulty(clamp down) = %d, want 50", got)
	}
}

func TestCalcNextDifficulty_MinOne(t *testing.T) {
	got := CalcNextDifficulty(1, 10000, 10)
	if got < 1 {
		t.Fatalf("CalcNextDifficulty(min) = %d, want >= 1", got)
	}
}

func TestPoW_ShouldAdjust(t *testing.T) {
	pow, _ := NewPoW(1, 10, 3)

	tests := []struct {
		height uint64
		want   bool
	}{
		{0, false},
		{1, false},
		{9, false},
		{10, true},
		{11, false},
		{20, true},
		{30, true},
		{100, true},
	}

	for _, tt := range tests {
		got := pow.ShouldAdjust(tt.height)
		if got != tt.want {
			t.Errorf("ShouldAdjust(%d) = %v, want %v", tt.height, got, tt.want)
		}
	}

	pow0, _ := NewPoW(1, 0, 3)
	if pow0.ShouldAdjust(10) {
		t.Error("ShouldAdjust with interval=0 should be false")
	}
}

func TestPoW_ExpectedDifficulty(t *testing.T) {
	pow, _ := NewPoW(100, 10, 10) // adjust every 10 blocks, target 10s/block

	if got := pow.ExpectedDifficulty(0, 0, nil); got != 100 {
		t.Fatalf("ExpectedDifficulty(0) = %d, want 100", got)
	}
	if got := pow.ExpectedDifficulty(1, 0, nil); got != 100 {
		t.Fatalf("ExpectedDifficulty(1) = %d, want 100", got)
	}

	if got := pow.ExpectedDifficulty(5, 200, nil); got != 200 {
		t.Fatalf("ExpectedDifficulty(5, prev=200) = %d, want 200", got)
	}

	// Boundary, exact timing: expected = 10*10 = 100s.
	getTS := func(h uint64) (int64, error) {
		if h == 0 {
			return 0, nil
		}
		return 100, nil
	}
	if got := pow.ExpectedDifficulty(10, 200, getTS); got != 200 {
		t.Fatalf("ExpectedDifficulty(10, exact) = %d, want 200", got)
	}

	// 2x faster than expected: actual=50 vs expected=100 -> difficulty doubles.
	getFastTS := func(h uint64) (int64, error) {
		if h == 0 {
			return 0, nil
		}
		return 50, nil
	}
	if got := pow.ExpectedDifficulty(10, 200, getFastTS); got != 400 {
		t.Fatalf("ExpectedDifficulty(10, 2x fast) = %d, want 400", got)
	}
}

func TestPoW_VerifyDifficulty(t *testing.T) {
	pow, _ := NewPoW(100, 10, 10)

	header := &block.Header{Height: 1, Difficulty: 100}
	if err := pow.VerifyDifficulty(header, 0, nil); err != nil {
		t.Fatalf("VerifyDifficulty(height=1, diff=100) = %v, want nil", err)
	}

	header2 := &block.Header{Height: 1, Difficulty: 50}
	if err := pow.VerifyDifficulty(header2, 0, nil); err == nil {
		t.Fatal("VerifyDifficulty(height=1, diff=50) = nil, want error")
	}

	header3 := &block.Header{Height: 5, Difficulty: 200}
	if err := pow.VerifyDifficulty(header3, 200, nil); err != nil {
		t.Fatalf("VerifyDifficulty(height=5, diff=200) = %v, want nil", err)
	}
}
