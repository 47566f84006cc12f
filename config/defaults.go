package config

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		P2P: P2PConfig{
			Enabled:    true,
			ListenAddr: "0.0.0.0",
			Port:       30403,
			MaxPeers:   125, // spec.md §4.J DoS defenses: max concurrent peers
			// Seeds are bootstrap peer multiaddrs, e.g.:
			//   "/ip4/203.0.113.1/tcp/30403/p2p/12D3KooW..."
			//   "/dns4/seed1.quantachain.io/tcp/30403/p2p/12D3KooW..."
			// Real addresses will be filled when seed servers are provisioned.
			Seeds: []string{},
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8645,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Wallet: WalletConfig{
			Enabled: false,
		},
		Mining: MiningConfig{
			Enabled: false,
			Threads: 1,
		},
		Consensus: ConsensusConfig{
			MaxBlockTransactions:    MaxBlockTxs,
			MaxBlockSizeBytes:       MaxBlockSize,
			MinTransactionFeeMicro:  MinTxFeeMicro,
			TransactionExpiryBlocks: 0,
			CoinbaseMaturity:        DefaultCoinbaseMaturity,
		},
		Security: SecurityConfig{
			MaxMempoolSize:           MempoolCapacity,
			TransactionExpirySeconds: TransactionExpirySeconds,
			EnableRateLimiting:       true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9400,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.P2P.Port = 30404
	cfg.RPC.Port = 8646
	cfg.Security.EnableRateLimiting = false
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
