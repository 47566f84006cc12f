package config

import "math"

// ExpectedReward computes the total block reward (microunits) at height h,
// per the annually-decaying, early-adopter-boosted, usage-adjusted schedule.
// feeSum1000 is the sum of fees collected over the last min(1000, h) blocks,
// used for the bootstrap-phase usage multiplier.
func (m MiningRules) ExpectedReward(h uint64, feeSum1000 uint64) uint64 {
	year := float64(h / m.BlocksPerYear)
	decay := math.Pow(1.0-m.AnnualReductionPercent/100.0, year)
	base := float64(m.Year1RewardMicrounits) * decay
	if base < float64(m.MinRewardMicrounits) {
		base = float64(m.MinRewardMicrounits)
	}

	if h < m.EarlyAdopterBonusBlocks {
		base *= m.EarlyAdopterMultiplier
	}
	if h < m.BootstrapPhaseBlocks {
		usage := float64(feeSum1000) / 1e7
		if usage > 1.0 {
			usage = 1.0
		}
		base *= 1.0 + usage
	}

	return roundHalfEven(base)
}

// SplitReward divides a total reward into its immediately spendable and
// time-locked portions.
func (m MiningRules) SplitReward(total uint64) (immediate, locked uint64) {
	locked = total * m.MiningRewardLockPercent / 100
	immediate = total - locked
	return immediate, locked
}

// roundHalfEven rounds x to the nearest integer, breaking exact .5 ties to
// the nearest even integer (banker's rounding), matching the reward
// function's round_half_even requirement.
func roundHalfEven(x float64) uint64 {
	floor := math.Floor(x)
	diff := x - floor
	switch {
	case diff < 0.5:
		return uint64(floor)
	case diff > 0.5:
		return uint64(floor) + 1
	default:
		if uint64(floor)%2 == 0 {
			return uint64(floor)
		}
		return uint64(floor) + 1
	}
}
