package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.P2P.Port < 0 || cfg.P2P.Port > 65535 {
		return fmt.Errorf("p2p.port must be in range [0, 65535]")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.P2P.MaxPeers < 0 {
		return fmt.Errorf("p2p.maxpeers must not be negative")
	}
	if cfg.Consensus.MaxBlockTransactions <= 0 {
		return fmt.Errorf("consensus.max_block_transactions must be positive")
	}
	if cfg.Consensus.MaxBlockSizeBytes <= 0 {
		return fmt.Errorf("consensus.max_block_size_bytes must be positive")
	}
	if cfg.Security.MaxMempoolSize <= 0 {
		return fmt.Errorf("security.max_mempool_size must be positive")
	}
	if cfg.Security.TransactionExpirySeconds <= 0 {
		return fmt.Errorf("security.transaction_expiry_seconds must be positive")
	}
	if cfg.Mining.Enabled && cfg.Mining.Coinbase == "" {
		return fmt.Errorf("mining.enabled requires mining.coinbase")
	}
	return nil
}
