// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: defined in genesis.go, immutable, must match across all nodes
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
// These settings can vary between nodes without breaking consensus.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// P2P networking
	P2P P2PConfig

	// RPC server
	RPC RPCConfig

	// Wallet
	Wallet WalletConfig

	// Mining (operational, not consensus rules)
	Mining MiningConfig

	// Consensus mirrors the subset of protocol rules an operator commonly
	// needs to read or override for private/test networks. The values that
	// actually bind consensus live in the network's Genesis.
	Consensus ConsensusConfig

	// Security holds node-local anti-DoS knobs.
	Security SecurityConfig

	// Metrics exposes a Prometheus scrape endpoint.
	Metrics MetricsConfig

	// Logging
	Log LogConfig

	// Maintenance (not persisted in config file)
	RebuildIndexes bool
}

// ConsensusConfig mirrors spec.md §6's [consensus] section.
type ConsensusConfig struct {
	MaxBlockTransactions    int    `conf:"consensus.max_block_transactions"`
	MaxBlockSizeBytes       int    `conf:"consensus.max_block_size_bytes"`
	MinTransactionFeeMicro  uint64 `conf:"consensus.min_transaction_fee_microunits"`
	TransactionExpiryBlocks uint64 `conf:"consensus.transaction_expiry_blocks"`
	CoinbaseMaturity        uint64 `conf:"consensus.coinbase_maturity"`
}

// SecurityConfig mirrors spec.md §6's [security] section.
type SecurityConfig struct {
	MaxMempoolSize           int   `conf:"security.max_mempool_size"`
	TransactionExpirySeconds int64 `conf:"security.transaction_expiry_seconds"`
	EnableRateLimiting       bool  `conf:"security.enable_rate_limiting"`
}

// MetricsConfig holds Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
	Port    int  `conf:"metrics.port"`
}

// P2PConfig holds peer-to-peer network settings.
type P2PConfig struct {
	Enabled    bool     `conf:"p2p.enabled"`
	ListenAddr string   `conf:"p2p.listen"`
	Port       int      `conf:"p2p.port"`
	Seeds      []string `conf:"p2p.seeds"`
	MaxPeers   int      `conf:"p2p.maxpeers"`
	NoDiscover bool     `conf:"p2p.nodiscover"`
	DHTServer  bool     `conf:"p2p.dhtserver"` // Run DHT in server mode (for seed nodes).
	ClearBans  bool     // Clear all peer bans on startup (not persisted in config file).
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// WalletConfig holds wallet settings.
type WalletConfig struct {
	Enabled  bool   `conf:"wallet.enabled"`
	FilePath string `conf:"wallet.file"`
}

// MiningConfig holds block production settings.
// Note: whether to mine is a node choice; HOW a block is validated is protocol.
type MiningConfig struct {
	Enabled  bool   `conf:"mining.enabled"`
	Coinbase string `conf:"mining.coinbase"` // Address credited with block rewards.
	Threads  int    `conf:"mining.threads"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.quanta
//	macOS:   ~/Library/Application Support/Quanta
//	Windows: %APPDATA%\Quanta
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quanta"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Quanta")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Quanta")
		}
		return filepath.Join(home, "AppData", "Roaming", "Quanta")
	default:
		return filepath.Join(home, ".quanta")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// BlocksDir returns the block storage directory.
func (c *Config) BlocksDir() string {
	return filepath.Join(c.ChainDataDir(), "blocks")
}

// StateDir returns the account-state database directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.ChainDataDir(), "state")
}

// WalletDir returns the wallet storage directory.
func (c *Config) WalletDir() string {
	return filepath.Join(c.ChainDataDir(), "wallet")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.ChainDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "quanta.conf")
}
