package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants. 1 QUA = 1,000,000 microunits. All on-chain values
// are carried as microunits.
const (
	MicroQUA = 1
	MilliQUA = 1_000
	QUA      = 1_000_000
)

// Block and transaction size limits (consensus-critical).
const (
	MaxBlockTxs      = 2_000     // Max transactions per block (including coinbase)
	MaxBlockSize     = 1_048_576 // 1 MiB max serialized block size
	MinTxFeeMicro    = 100       // Minimum transaction fee, in microunits
	MaxFrameSize     = 2 * 1024 * 1024 // P2P wire frame cap
)

// Reward schedule constants (spec.md §4.H / §6 [mining]).
const (
	Year1RewardMicrounits   uint64  = 100_000_000 // 100 QUA
	AnnualReductionPercent  float64 = 15
	MinRewardMicrounits     uint64  = 5_000_000 // 5 QUA floor
	BlocksPerYear           uint64  = 3_153_600
	EarlyAdopterBonusBlocks uint64  = 100_000
	EarlyAdopterMultiplier  float64 = 1.5
	BootstrapPhaseBlocks    uint64  = 315_360
	MiningRewardLockPercent uint64  = 50
	MiningRewardLockBlocks  uint64  = 157_680
	FeeBurnPercent          uint64  = 70
	FeeTreasuryPercent      uint64  = 20
	FeeMinerPercent         uint64  = 10
)

// Difficulty controller constants (spec.md §4.I).
const (
	TargetBlockTimeSeconds         int64  = 10
	DifficultyAdjustmentInterval   uint64 = 10
	MinDifficultyBits              uint32 = 1
)

// Mempool and transaction-expiry constants (spec.md §4.E / §6 [security]).
const (
	MempoolCapacity              = 5_000
	TransactionExpirySeconds     = 86_400 // 24 hours
	TransactionFutureToleranceSeconds = 2 * 60 * 60 // 2 hours
	DefaultCoinbaseMaturity      = 0 // immediate reward spendable at once; see DESIGN.md Open Question 3
	DefaultTransactionExpiryBlocks = 0 // unused: expiry is timestamp-based, not height-based
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"` // Native coin symbol (e.g., "QUA")

	// Genesis block
	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// TreasuryAddress receives the treasury share of every block's
	// transaction fees (spec.md §4.H fee distribution).
	TreasuryAddress string `json:"treasury_address"`

	// Initial allocations (address -> balance in microunits).
	Alloc map[string]uint64 `json:"alloc"`

	// Protocol rules
	Protocol ProtocolConfig `json:"protocol"`
}

// ProtocolConfig holds consensus-critical rules. All nodes MUST agree on
// these values.
type ProtocolConfig struct {
	Consensus ConsensusRules `json:"consensus"`
	Mining    MiningRules    `json:"mining"`
}

// ConsensusRules defines structural and difficulty-controller limits.
type ConsensusRules struct {
	MaxBlockTransactions    int    `json:"max_block_transactions"`
	MaxBlockSizeBytes       int    `json:"max_block_size_bytes"`
	MinTransactionFeeMicro  uint64 `json:"min_transaction_fee_microunits"`
	TransactionExpiryBlocks uint64 `json:"transaction_expiry_blocks,omitempty"`
	CoinbaseMaturity        uint64 `json:"coinbase_maturity"`

	InitialDifficultyBits         uint32 `json:"initial_difficulty_bits"`
	TargetBlockTimeSeconds        int64  `json:"target_block_time_seconds"`
	DifficultyAdjustmentInterval  uint64 `json:"difficulty_adjustment_interval"`
}

// MiningRules defines the reward schedule and fee split (spec.md §4.H).
type MiningRules struct {
	Year1RewardMicrounits   uint64  `json:"year_1_reward_microunits"`
	AnnualReductionPercent  float64 `json:"annual_reduction_percent"`
	MinRewardMicrounits     uint64  `json:"min_reward_microunits"`
	BlocksPerYear           uint64  `json:"blocks_per_year"`
	EarlyAdopterBonusBlocks uint64  `json:"early_adopter_bonus_blocks"`
	EarlyAdopterMultiplier  float64 `json:"early_adopter_multiplier"`
	BootstrapPhaseBlocks    uint64  `json:"bootstrap_phase_blocks"`
	MiningRewardLockPercent uint64  `json:"mining_reward_lock_percent"`
	MiningRewardLockBlocks  uint64  `json:"mining_reward_lock_blocks"`
	FeeBurnPercent          uint64  `json:"fee_burn_percent"`
	FeeTreasuryPercent      uint64  `json:"fee_treasury_percent"`
	FeeMinerPercent         uint64  `json:"fee_validator_percent"`
}

// DefaultConsensusRules returns the rule set shared by mainnet and testnet.
func DefaultConsensusRules() ConsensusRules {
	return ConsensusRules{
		MaxBlockTransactions:          MaxBlockTxs,
		MaxBlockSizeBytes:             MaxBlockSize,
		MinTransactionFeeMicro:        MinTxFeeMicro,
		CoinbaseMaturity:              DefaultCoinbaseMaturity,
		InitialDifficultyBits:         1,
		TargetBlockTimeSeconds:        TargetBlockTimeSeconds,
		DifficultyAdjustmentInterval:  DifficultyAdjustmentInterval,
	}
}

// DefaultMiningRules returns the reward schedule shared by mainnet and testnet.
func DefaultMiningRules() MiningRules {
	return MiningRules{
		Year1RewardMicrounits:   Year1RewardMicrounits,
		AnnualReductionPercent:  AnnualReductionPercent,
		MinRewardMicrounits:     MinRewardMicrounits,
		BlocksPerYear:           BlocksPerYear,
		EarlyAdopterBonusBlocks: EarlyAdopterBonusBlocks,
		EarlyAdopterMultiplier:  EarlyAdopterMultiplier,
		BootstrapPhaseBlocks:    BootstrapPhaseBlocks,
		MiningRewardLockPercent: MiningRewardLockPercent,
		MiningRewardLockBlocks:  MiningRewardLockBlocks,
		FeeBurnPercent:          FeeBurnPercent,
		FeeTreasuryPercent:      FeeTreasuryPercent,
		FeeMinerPercent:         FeeMinerPercent,
	}
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation path: m/44'/9999'/0'/0/0 (no passphrase)
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet faucet account.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetAddress is the fixed testnet faucet address that receives the
	// genesis allocation. It is a placeholder value, not an address derived
	// from TestnetMnemonic.
	TestnetAddress = "0x000000000000000000000000000000000000fa17"

	// TestnetTreasuryAddress is the fixed treasury address on testnet.
	TestnetTreasuryAddress = "0x00000000000000000000000000000000000007ea"

	// MainnetTreasuryAddress is the fixed treasury address on mainnet.
	MainnetTreasuryAddress = "0x00000000000000000000000000000000000007ea"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:         "quanta-mainnet-1",
		ChainName:       "QUANTA Mainnet",
		Symbol:          "QUA",
		Timestamp:       1770734103, // 2026-02-10
		ExtraData:       "QUANTA Genesis",
		TreasuryAddress: MainnetTreasuryAddress,
		Alloc:           map[string]uint64{},
		Protocol: ProtocolConfig{
			Consensus: DefaultConsensusRules(),
			Mining:    DefaultMiningRules(),
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "quanta-testnet-1"
	g.ChainName = "QUANTA Testnet"
	g.ExtraData = "QUANTA Testnet Genesis"
	g.TreasuryAddress = TestnetTreasuryAddress

	// Testnet allocation: 1,000,000 QUA to the well-known faucet address.
	g.Alloc = map[string]uint64{
		TestnetAddress: 1_000_000 * QUA,
	}

	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}

	if _, err := types.ParseAddress(g.TreasuryAddress); err != nil {
		return fmt.Errorf("invalid treasury_address: %w", err)
	}

	if g.Protocol.Consensus.TargetBlockTimeSeconds <= 0 {
		return fmt.Errorf("target_block_time_seconds must be positive")
	}

	if g.Protocol.Mining.Year1RewardMicrounits == 0 {
		return fmt.Errorf("year_1_reward_microunits must be positive")
	}

	if g.Protocol.Mining.FeeBurnPercent+g.Protocol.Mining.FeeTreasuryPercent+g.Protocol.Mining.FeeMinerPercent != 100 {
		return fmt.Errorf("fee split percentages must sum to 100")
	}

	for addrStr := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
	}

	return nil
}

// Hash returns a SHA3-256 hash of the genesis configuration, used to
// identify the chain and detect genesis mismatches between peers.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
