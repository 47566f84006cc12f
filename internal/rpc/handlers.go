package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
)

// txEnvelope wraps a submitted transaction under an explicit field name so
// the REST and JSON-RPC submit paths share one decode shape.
type txEnvelope struct {
	Transaction *tx.Transaction `json:"transaction"`
}

func nowUnix() int64 { return time.Now().Unix() }

// ── REST handlers ──────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONBody(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSONBody(w, http.StatusOK, s.nodeStatus())
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	var p AddressParam
	if err := json.Unmarshal(body, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.balance(p.Address)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONBody(w, http.StatusOK, result)
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := s.submitTransaction(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONBody(w, http.StatusOK, map[string]string{"tx_hash": hash})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	height, err := pathHeight(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid height")
		return
	}
	blk, err := s.chain.GetBlock(height)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("block %d not found", height))
		return
	}
	writeJSONBody(w, http.StatusOK, NewBlockResult(blk))
}

func (s *Server) handleGetMempool(w http.ResponseWriter, r *http.Request) {
	writeJSONBody(w, http.StatusOK, s.mempoolInfo())
}

func (s *Server) handleGetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSONBody(w, http.StatusOK, s.peers())
}

func (s *Server) handleMerkleProof(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	var p MerkleProofParam
	if err := json.Unmarshal(body, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.merkleProof(p.TxHash)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONBody(w, http.StatusOK, result)
}

// ── JSON-RPC dispatch ───────────────────────────────────────────────────

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeRPCError(w, nil, CodeInvalidRequest, err.Error())
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, CodeInvalidRequest, `jsonrpc must be "2.0"`)
		return
	}

	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		writeRPC(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}
	writeRPC(w, Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

// dispatch routes a JSON-RPC request to the matching method.
func (s *Server) dispatch(req *Request) (interface{}, *Error) {
	switch req.Method {
	case "node_status":
		return s.nodeStatus(), nil
	case "mining_status":
		return s.miningStatus(), nil
	case "start_mining":
		return s.handleStartMining(req)
	case "stop_mining":
		if s.mining == nil {
			return nil, &Error{Code: CodeInternalError, Message: "mining control not available"}
		}
		s.mining.StopMining()
		return s.miningStatus(), nil
	case "get_block":
		return s.handleGetBlockRPC(req)
	case "get_balance":
		return s.handleGetBalanceRPC(req)
	case "submit_transaction":
		return s.handleSubmitTransactionRPC(req)
	case "get_peers":
		return s.peers(), nil
	case "stop":
		go func() {
			_ = s.Stop()
		}()
		return map[string]string{"status": "stopping"}, nil
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func (s *Server) handleStartMining(req *Request) (interface{}, *Error) {
	if s.mining == nil {
		return nil, &Error{Code: CodeInternalError, Message: "mining control not available"}
	}
	var p MiningControlParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.mining.StartMining(p.Address); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return s.miningStatus(), nil
}

func (s *Server) handleGetBlockRPC(req *Request) (interface{}, *Error) {
	var p HeightParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	blk, err := s.chain.GetBlock(p.Height)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block %d not found", p.Height)}
	}
	return NewBlockResult(blk), nil
}

func (s *Server) handleGetBalanceRPC(req *Request) (interface{}, *Error) {
	var p AddressParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	result, err := s.balance(p.Address)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return result, nil
}

func (s *Server) handleSubmitTransactionRPC(req *Request) (interface{}, *Error) {
	var env txEnvelope
	if rpcErr := parseParams(req, &env); rpcErr != nil {
		return nil, rpcErr
	}
	if env.Transaction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "missing transaction field"}
	}
	if err := s.pool.Add(env.Transaction, nowUnix()); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	if s.p2pNode != nil {
		_ = s.p2pNode.BroadcastTx(env.Transaction)
	}
	return map[string]string{"tx_hash": env.Transaction.Hash().String()}, nil
}

// ── Shared business logic (used by both REST and JSON-RPC) ─────────────

func (s *Server) nodeStatus() NodeStatusResult {
	peerCount := 0
	if s.p2pNode != nil {
		peerCount = s.p2pNode.PeerCount()
	}
	tip, _ := s.chain.GetBlock(s.chain.Height())
	var difficulty uint32
	if tip != nil {
		difficulty = tip.Header.Difficulty
	}
	return NodeStatusResult{
		ChainID:    s.genesis.ChainID,
		ChainName:  s.genesis.ChainName,
		Height:     s.chain.Height(),
		TipHash:    s.chain.TipHash().String(),
		Difficulty: difficulty,
		Supply:     s.chain.Supply(),
		Burned:     s.chain.Burned(),
		Treasury:   s.chain.Treasury(),
		MempoolLen: s.pool.Count(),
		PeerCount:  peerCount,
	}
}

func (s *Server) miningStatus() MiningStatusResult {
	if s.mining == nil {
		return MiningStatusResult{Mining: false}
	}
	return MiningStatusResult{Mining: s.mining.IsMining()}
}

func (s *Server) balance(addrStr string) (*BalanceResult, error) {
	addr, err := types.ParseAddress(addrStr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	acc, err := s.chain.Account(addr)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	acc.ReleaseMatured(s.chain.Height())
	return &BalanceResult{
		Address:          addr.String(),
		Balance:          acc.Balance,
		LockedBalance:    acc.LockedBalance(),
		SpendableBalance: acc.SpendableBalance(),
		Nonce:            acc.Nonce,
	}, nil
}

func (s *Server) submitTransaction(body []byte) (string, error) {
	var env txEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("invalid transaction JSON: %w", err)
	}
	if env.Transaction == nil {
		return "", fmt.Errorf("missing transaction field")
	}
	if err := s.pool.Add(env.Transaction, nowUnix()); err != nil {
		return "", err
	}
	if s.p2pNode != nil {
		_ = s.p2pNode.BroadcastTx(env.Transaction)
	}
	return env.Transaction.Hash().String(), nil
}

func (s *Server) mempoolInfo() MempoolResult {
	hashes := s.pool.Hashes()
	ids := make([]string, len(hashes))
	for i, h := range hashes {
		ids[i] = h.String()
	}
	return MempoolResult{Count: len(ids), Transactions: ids}
}

func (s *Server) peers() PeersResult {
	if s.p2pNode == nil {
		return PeersResult{}
	}
	peerList := s.p2pNode.PeerList()
	out := make([]PeerResult, len(peerList))
	for i, p := range peerList {
		out[i] = PeerResult{ID: p.ID.String(), Source: p.Source}
	}
	return PeersResult{Count: len(out), Peers: out}
}

func (s *Server) merkleProof(txHashHex string) (*MerkleProofResult, error) {
	hash, err := types.HexToHash(txHashHex)
	if err != nil {
		return nil, fmt.Errorf("invalid tx hash: %w", err)
	}
	blk, index, err := s.chain.GetTxBlock(hash)
	if err != nil {
		return nil, fmt.Errorf("transaction not found: %w", err)
	}

	txHashes := make([]types.Hash, len(blk.Transactions))
	for i, t := range blk.Transactions {
		txHashes[i] = t.Hash()
	}

	proof, err := block.ComputeMerkleProof(txHashes, index)
	if err != nil {
		return nil, err
	}

	return &MerkleProofResult{
		TxHash: hash.String(),
		Root:   blk.Header.MerkleRoot.String(),
		Proof:  proof,
	}, nil
}

// parseParams unmarshals JSON-RPC request params into the given target.
func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

// writeRPC writes a JSON-RPC response.
func writeRPC(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeRPCError writes a JSON-RPC error response.
func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeRPC(w, Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message}, ID: id})
}
