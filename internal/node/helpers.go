package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantachain/quanta/pkg/types"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// resolveCoinbase parses the coinbase address a miner credits block rewards
// to. PoW mining has no validator identity to fall back on — the address
// must be supplied explicitly.
func resolveCoinbase(coinbaseStr string) (types.Address, error) {
	if coinbaseStr == "" {
		return types.Address{}, fmt.Errorf("mining requires a coinbase address (use 'quanta-cli new_wallet' to generate one)")
	}
	addr, err := types.ParseAddress(coinbaseStr)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid coinbase address: %w", err)
	}
	return addr, nil
}
