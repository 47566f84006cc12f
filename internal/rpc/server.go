// Package rpc implements the node's REST and JSON-RPC 2.0 API surface.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/internal/chain"
	qlog "github.com/quantachain/quanta/internal/log"
	"github.com/quantachain/quanta/internal/mempool"
	"github.com/quantachain/quanta/internal/p2p"
	"github.com/rs/zerolog"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// MiningController is the subset of node.Node the RPC server needs to
// expose start_mining/stop_mining/mining_status.
type MiningController interface {
	StartMining(coinbaseAddr string) error
	StopMining()
	IsMining() bool
}

// Server serves the REST and JSON-RPC API over HTTP.
type Server struct {
	addr    string
	chain   *chain.Chain
	pool    *mempool.Pool
	p2pNode *p2p.Node
	genesis *config.Genesis
	mining  MiningController

	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
}

// New creates a new RPC server. The rpcCfg parameter controls IP filtering
// and CORS; a zero-value RPCConfig allows all IPs and disables CORS.
// p2pNode may be nil when P2P is disabled.
func New(addr string, ch *chain.Chain, pool *mempool.Pool, p2pNode *p2p.Node, genesis *config.Genesis, rpcCfg ...config.RPCConfig) *Server {
	s := &Server{
		addr:    addr,
		chain:   ch,
		pool:    pool,
		p2pNode: p2pNode,
		genesis: genesis,
		logger:  qlog.WithComponent("rpc"),
	}

	if len(rpcCfg) > 0 {
		s.allowedNets = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.withMiddleware(s.handleHealth))
	mux.HandleFunc("GET /api/stats", s.withMiddleware(s.handleStats))
	mux.HandleFunc("POST /api/balance", s.withMiddleware(s.handleBalance))
	mux.HandleFunc("POST /api/transaction", s.withMiddleware(s.handleSubmitTransaction))
	mux.HandleFunc("GET /api/block/{height}", s.withMiddleware(s.handleGetBlock))
	mux.HandleFunc("GET /api/mempool", s.withMiddleware(s.handleGetMempool))
	mux.HandleFunc("GET /api/peers", s.withMiddleware(s.handleGetPeers))
	mux.HandleFunc("POST /api/merkle/proof", s.withMiddleware(s.handleMerkleProof))
	mux.HandleFunc("POST /", s.withMiddleware(s.handleJSONRPC))

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// SetMiningControl wires in the mining start/stop/status surface. Called
// once after the server's owner (the node's mining controller) exists.
func (s *Server) SetMiningControl(m MiningController) {
	s.mining = m
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine. It returns
// immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// withMiddleware wraps a handler with IP filtering and CORS header
// injection, common to both the REST and JSON-RPC surfaces.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			break
		}
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// readBody reads and size-limits an HTTP request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("request body too large")
	}
	return body, nil
}

// writeJSONBody writes an arbitrary value as a REST JSON response.
func writeJSONBody(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a REST error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSONBody(w, status, map[string]string{"error": msg})
}

// pathHeight extracts the {height} path parameter as a uint64.
func pathHeight(r *http.Request) (uint64, error) {
	return strconv.ParseUint(r.PathValue("height"), 10, 64)
}
