package tx

import (
	"testing"

	"github.com/quantachain/quanta/config"
)

func TestMinFee(t *testing.T) {
	if MinFee() != config.MinTxFeeMicro {
		t.Errorf("MinFee() = %d, want %d", MinFee(), config.MinTxFeeMicro)
	}
}

func TestDistributeFee_SumsToTotal(t *testing.T) {
	rules := config.DefaultMiningRules()
	tests := []uint64{0, 1, 7, 100, 12345, 1_000_000}
	for _, total := range tests {
		burn, treasury, miner := DistributeFee(total, rules)
		if sum := burn + treasury + miner; sum != total {
			t.Errorf("DistributeFee(%d): shares sum to %d, want %d", total, sum, total)
		}
	}
}

func TestDistributeFee_ExactSplit(t *testing.T) {
	rules := config.DefaultMiningRules()
	burn, treasury, miner := DistributeFee(1000, rules)
	if burn != 700 {
		t.Errorf("burn = %d, want 700", burn)
	}
	if treasury != 200 {
		t.Errorf("treasury = %d, want 200", treasury)
	}
	if miner != 100 {
		t.Errorf("miner = %d, want 100", miner)
	}
}

func TestDistributeFee_MinerAbsorbsRounding(t *testing.T) {
	rules := config.DefaultMiningRules()
	// 1 microunit: burn=0 (1*70/100=0), treasury=0 (1*20/100=0), miner gets all of it.
	burn, treasury, miner := DistributeFee(1, rules)
	if burn != 0 || treasury != 0 || miner != 1 {
		t.Errorf("DistributeFee(1) = (%d, %d, %d), want (0, 0, 1)", burn, treasury, miner)
	}
}
