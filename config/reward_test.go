package config

import "testing"

func TestExpectedReward_Genesis(t *testing.T) {
	rules := DefaultMiningRules()
	got := rules.ExpectedReward(0, 0)
	want := uint64(150 * QUA)
	if got != want {
		t.Errorf("ExpectedReward(0) = %d, want %d", got, want)
	}
}

func TestExpectedReward_AfterEarlyAdopterWindow(t *testing.T) {
	rules := DefaultMiningRules()
	got := rules.ExpectedReward(rules.EarlyAdopterBonusBlocks, 0)
	want := uint64(100 * QUA)
	if got != want {
		t.Errorf("ExpectedReward(100_000) = %d, want %d", got, want)
	}
}

func TestExpectedReward_FloorReached(t *testing.T) {
	rules := DefaultMiningRules()
	got := rules.ExpectedReward(20*rules.BlocksPerYear, 0)
	want := uint64(5 * QUA)
	if got != want {
		t.Errorf("ExpectedReward(20 years) = %d, want %d", got, want)
	}
}

func TestExpectedReward_UsageMultiplierCapped(t *testing.T) {
	rules := DefaultMiningRules()
	// feeSum well beyond 1e7 should clamp the usage multiplier at 2x, not
	// grow unbounded. At height 0 the 1.5x early-adopter bonus also applies:
	// 100 QUA * 1.5 * 2 = 300 QUA.
	atCap := rules.ExpectedReward(0, 10_000_000)
	overCap := rules.ExpectedReward(0, 50_000_000)
	if atCap != overCap {
		t.Errorf("usage multiplier should clamp at 1e7 fees: %d != %d", atCap, overCap)
	}
	if atCap != 300*QUA {
		t.Errorf("ExpectedReward with saturated usage = %d, want %d", atCap, 300*QUA)
	}
}

func TestSplitReward_ExactHalf(t *testing.T) {
	rules := DefaultMiningRules()
	immediate, locked := rules.SplitReward(100 * QUA)
	if locked != 50*QUA || immediate != 50*QUA {
		t.Errorf("SplitReward(100 QUA) = (%d, %d), want (50, 50) QUA", immediate, locked)
	}
}

func TestSplitReward_SumsToTotal(t *testing.T) {
	rules := DefaultMiningRules()
	for _, total := range []uint64{0, 1, 7, 999, 150 * QUA} {
		immediate, locked := rules.SplitReward(total)
		if immediate+locked != total {
			t.Errorf("SplitReward(%d): %d+%d != %d", total, immediate, locked, total)
		}
	}
}
