package node

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantachain/quanta/config"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.quanta/data", filepath.Join(home, ".quanta/data")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestResolveCoinbase_FromString(t *testing.T) {
	addrHex := "aabbccddee00aabbccddee00aabbccddee00aabb"
	addr, err := resolveCoinbase(addrHex)
	if err != nil {
		t.Fatalf("resolveCoinbase: %v", err)
	}
	if addr[0] != 0xaa || addr[19] != 0xbb {
		t.Errorf("unexpected address: %x", addr)
	}
}

func TestResolveCoinbase_Empty(t *testing.T) {
	_, err := resolveCoinbase("")
	if err == nil {
		t.Fatal("expected error when no coinbase address given")
	}
}

func TestResolveCoinbase_Invalid(t *testing.T) {
	_, err := resolveCoinbase("not-an-address")
	if err == nil {
		t.Fatal("expected error for malformed coinbase address")
	}
}

func TestNodeLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tmpDir := t.TempDir()

	cfg := config.Default(config.Testnet)
	cfg.DataDir = tmpDir
	cfg.P2P.Port = 0 // Use a random port to avoid conflicts.
	cfg.P2P.NoDiscover = true
	cfg.P2P.Seeds = nil
	cfg.RPC.Port = 0 // Use a random port.
	cfg.Mining.Enabled = false

	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if n.Height() != 0 {
		t.Errorf("expected height 0, got %d", n.Height())
	}
	if n.RPCAddr() == "" {
		t.Error("RPCAddr should not be empty")
	}
	if n.IsMining() {
		t.Error("node should not be mining before Start")
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	n.Stop()
}

func TestNodeLifecycle_Mining(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tmpDir := t.TempDir()

	cfg := config.Default(config.Testnet)
	cfg.DataDir = tmpDir
	cfg.P2P.Enabled = false
	cfg.RPC.Enabled = false
	cfg.Mining.Enabled = true
	cfg.Mining.Coinbase = "aabbccddee00aabbccddee00aabbccddee00aabb"
	cfg.Mining.Threads = 1

	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !n.IsMining() {
		t.Error("expected node to be mining after Start with mining.enabled=true")
	}

	n.StopMining()
	if n.IsMining() {
		t.Error("expected node not to be mining after StopMining")
	}

	n.Stop()
}

func TestNodeNew_MiningRequiresCoinbase(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.Default(config.Testnet)
	cfg.DataDir = tmpDir
	cfg.P2P.Enabled = false
	cfg.RPC.Enabled = false
	cfg.Mining.Enabled = true
	cfg.Mining.Coinbase = ""

	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error when mining is enabled without a coinbase address")
	}
}
