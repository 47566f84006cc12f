package tx

import "github.com/quantachain/quanta/config"

// MinFee returns the minimum accepted fee, in microunits, for any
// non-coinbase transaction.
func MinFee() uint64 {
	return config.MinTxFeeMicro
}

// DistributeFee splits a block's total collected fees between the burn
// total, the treasury address, and the miner's immediate balance, per the
// network's fee-split percentages. The burn and treasury shares are rounded
// down, and the miner receives the exact remainder — so the three shares
// always sum to totalFees with no dust lost.
func DistributeFee(totalFees uint64, rules config.MiningRules) (burn, treasury, miner uint64) {
	burn = totalFees * rules.FeeBurnPercent / 100
	treasury = totalFees * rules.FeeTreasuryPercent / 100
	miner = totalFees - burn - treasury
	return burn, treasury, miner
}
