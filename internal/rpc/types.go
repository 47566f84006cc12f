package rpc

import (
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// AddressParam is used by get_balance and the balance REST endpoint.
type AddressParam struct {
	Address string `json:"address"`
}

// HeightParam is used by get_block.
type HeightParam struct {
	Height uint64 `json:"height"`
}

// MiningControlParam is used by start_mining.
type MiningControlParam struct {
	Address string `json:"address"`
}

// MerkleProofParam is used by the merkle proof REST endpoint.
type MerkleProofParam struct {
	TxHash string `json:"tx_hash"`
}

// ── Result types ────────────────────────────────────────────────────────

// NodeStatusResult is returned by node_status and GET /api/stats.
type NodeStatusResult struct {
	ChainID    string `json:"chain_id"`
	ChainName  string `json:"chain_name"`
	Height     uint64 `json:"height"`
	TipHash    string `json:"tip_hash"`
	Difficulty uint32 `json:"difficulty"`
	Supply     uint64 `json:"supply"`
	Burned     uint64 `json:"burned"`
	Treasury   uint64 `json:"treasury"`
	MempoolLen int    `json:"mempool_len"`
	PeerCount  int    `json:"peer_count"`
}

// MiningStatusResult is returned by mining_status.
type MiningStatusResult struct {
	Mining   bool   `json:"mining"`
	Coinbase string `json:"coinbase,omitempty"`
}

// BalanceResult is returned by get_balance and POST /api/balance.
type BalanceResult struct {
	Address        string `json:"address"`
	Balance        uint64 `json:"balance"`
	LockedBalance  uint64 `json:"locked_balance"`
	SpendableBalance uint64 `json:"spendable_balance"`
	Nonce          uint64 `json:"nonce"`
}

// BlockResult wraps a block with its precomputed hash for RPC responses.
type BlockResult struct {
	Hash         string        `json:"hash"`
	Header       *block.Header `json:"header"`
	Transactions []*TxResult   `json:"transactions"`
}

// NewBlockResult creates a BlockResult from a block, precomputing all hashes.
func NewBlockResult(b *block.Block) *BlockResult {
	txResults := make([]*TxResult, len(b.Transactions))
	for i, t := range b.Transactions {
		txResults[i] = NewTxResult(t)
	}
	return &BlockResult{
		Hash:         b.Hash().String(),
		Header:       b.Header,
		Transactions: txResults,
	}
}

// TxResult wraps a transaction with its precomputed hash for RPC responses.
type TxResult struct {
	Hash      string `json:"hash"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

// NewTxResult creates a TxResult from a transaction, precomputing its hash.
func NewTxResult(t *tx.Transaction) *TxResult {
	return &TxResult{
		Hash:      t.Hash().String(),
		Sender:    t.Sender.String(),
		Recipient: t.Recipient.String(),
		Amount:    t.Amount,
		Fee:       t.Fee,
		Nonce:     t.Nonce,
		Timestamp: t.Timestamp,
	}
}

// MempoolResult is returned by GET /api/mempool.
type MempoolResult struct {
	Count        int      `json:"count"`
	Transactions []string `json:"transactions"`
}

// PeerResult describes one connected peer.
type PeerResult struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// PeersResult is returned by get_peers and GET /api/peers.
type PeersResult struct {
	Count int          `json:"count"`
	Peers []PeerResult `json:"peers"`
}

// MerkleProofResult is returned by POST /api/merkle/proof.
type MerkleProofResult struct {
	TxHash string                  `json:"tx_hash"`
	Root   string                  `json:"merkle_root"`
	Proof  []block.MerkleProofStep `json:"proof"`
}
