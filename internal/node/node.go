// Package node wires storage, consensus, chain state, mempool, P2P, and RPC
// into a single runnable process (spec §4.K orchestrator).
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/internal/chain"
	"github.com/quantachain/quanta/internal/consensus"
	qlog "github.com/quantachain/quanta/internal/log"
	"github.com/quantachain/quanta/internal/mempool"
	"github.com/quantachain/quanta/internal/miner"
	"github.com/quantachain/quanta/internal/p2p"
	"github.com/quantachain/quanta/internal/rpc"
	"github.com/quantachain/quanta/internal/storage"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized blockchain node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db     storage.DB
	engine *consensus.PoW
	ch     *chain.Chain
	pool   *mempool.Pool

	p2pNode *p2p.Node
	syncer  *p2p.Syncer

	rpcServer *rpc.Server

	miner *miner.Miner

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node: logger, genesis, storage,
// consensus, chain, mempool, P2P, and RPC. It does NOT start background
// goroutines (mining, sync) — call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	cfg.DataDir = expandHome(cfg.DataDir)

	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/quanta.log"
	}
	if err := qlog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := qlog.WithComponent("node")

	genesis := config.GenesisFor(cfg.Network)
	treasuryAddr, err := types.ParseAddress(genesis.TreasuryAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid treasury address in genesis: %w", err)
	}

	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Int64("block_time", genesis.Protocol.Consensus.TargetBlockTimeSeconds).
		Msg("Starting QUANTA node")

	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.ChainDataDir(), err)
	}
	logger.Info().Str("path", cfg.ChainDataDir()).Msg("Database opened")

	if cfg.Mining.Enabled && cfg.Mining.Coinbase == "" {
		db.Close()
		return nil, fmt.Errorf("mining requires --coinbase address")
	}

	engine, err := consensus.NewPoW(
		genesis.Protocol.Consensus.InitialDifficultyBits,
		genesis.Protocol.Consensus.DifficultyAdjustmentInterval,
		genesis.Protocol.Consensus.TargetBlockTimeSeconds,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create consensus engine: %w", err)
	}
	engine.Threads = cfg.Mining.Threads

	ch, err := chain.New(db, genesis.Protocol.Mining, treasuryAddr, engine)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create chain: %w", err)
	}

	if ch.State().IsGenesis() {
		if err := ch.InitFromGenesis(genesis); err != nil {
			db.Close()
			return nil, fmt.Errorf("init from genesis: %w", err)
		}
		logger.Info().Msg("Chain initialized from genesis")
	} else {
		logger.Info().
			Uint64("height", ch.Height()).
			Str("tip", ch.TipHash().String()[:16]+"...").
			Msg("Chain resumed from database")
	}

	engine.DifficultyFn = func(height uint64) uint32 {
		if height <= 1 {
			return engine.InitialDifficulty
		}
		prevBlk, err := ch.GetBlock(height - 1)
		if err != nil {
			return engine.InitialDifficulty
		}
		return engine.ExpectedDifficulty(height, prevBlk.Header.Difficulty, func(h uint64) (int64, error) {
			b, e := ch.GetBlock(h)
			if e != nil {
				return 0, e
			}
			return b.Header.Timestamp, nil
		})
	}

	pool := mempool.New(ch, ch, cfg.Security.MaxMempoolSize, ch.Height)
	logger.Info().Int("capacity", cfg.Security.MaxMempoolSize).Msg("Mempool ready")

	ch.SetRevertedTxHandler(func(txs []*tx.Transaction) {
		reinserted := 0
		for _, t := range txs {
			if err := pool.Add(t, time.Now().Unix()); err == nil {
				reinserted++
			}
		}
		if reinserted > 0 {
			logger.Info().
				Int("reverted", len(txs)).
				Int("reinserted", reinserted).
				Msg("Reverted transactions returned to mempool")
		}
	})

	var p2pNode *p2p.Node
	var syncer *p2p.Syncer
	if cfg.P2P.Enabled {
		p2pNode = p2p.New(p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Port:       cfg.P2P.Port,
			Seeds:      cfg.P2P.Seeds,
			MaxPeers:   cfg.P2P.MaxPeers,
			NoDiscover: cfg.P2P.NoDiscover,
			DB:         db,
			DHTServer:  cfg.P2P.DHTServer,
			NetworkID:  genesis.ChainID,
			DataDir:    cfg.ChainDataDir(),
		})

		genesisHash, _ := genesis.Hash()
		p2pNode.SetGenesisHash(genesisHash)
		p2pNode.SetHeightFn(func() uint64 { return ch.Height() })

		p2pNode.SetBlockHandler(func(from peer.ID, data []byte) {
			var blk block.Block
			if err := json.Unmarshal(data, &blk); err != nil {
				logger.Debug().Err(err).Msg("Failed to unmarshal block")
				p2pNode.BanManager.RecordOffense(from, p2p.PenaltyInvalidBlock, "unmarshal: "+err.Error())
				return
			}
			if err := ch.ProcessBlock(&blk, time.Now().Unix()); err != nil {
				if !errors.Is(err, chain.ErrBlockKnown) && !errors.Is(err, chain.ErrNotTipExtension) {
					p2pNode.BanManager.RecordOffense(from, p2p.PenaltyInvalidBlock, err.Error())
				}
				if !errors.Is(err, chain.ErrBlockKnown) {
					logger.Debug().Err(err).Uint64("height", blk.Header.Height).Msg("Failed to process block")
				}
				return
			}
			pool.RemoveIncluded(blk.Transactions)

			logger.Info().
				Uint64("height", blk.Header.Height).
				Str("hash", blk.Hash().String()[:16]+"...").
				Int("txs", len(blk.Transactions)).
				Msg("Block received and applied")
		})

		p2pNode.SetTxHandler(func(from peer.ID, data []byte) {
			var t tx.Transaction
			if err := json.Unmarshal(data, &t); err != nil {
				logger.Debug().Err(err).Msg("Failed to unmarshal transaction")
				p2pNode.BanManager.RecordOffense(from, p2p.PenaltyInvalidTx, "unmarshal: "+err.Error())
				return
			}
			if err := pool.Add(&t, time.Now().Unix()); err != nil {
				logger.Debug().Err(err).Msg("Rejected transaction")
				p2pNode.BanManager.RecordOffense(from, p2p.PenaltyInvalidTx, err.Error())
				return
			}
			logger.Info().Str("tx", t.Hash().String()[:16]+"...").Msg("Transaction added to mempool")
		})

		if err := p2pNode.Start(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start P2P: %w", err)
		}

		logger.Info().
			Str("id", p2pNode.ID().String()).
			Int("port", cfg.P2P.Port).
			Bool("discovery", !cfg.P2P.NoDiscover).
			Msg("P2P node started")

		syncer = p2p.NewSyncer(p2pNode)
		syncer.RegisterHandler(func(fromHeight uint64, max uint32) []*block.Block {
			var blocks []*block.Block
			for h := fromHeight; h < fromHeight+uint64(max); h++ {
				blk, err := ch.GetBlock(h)
				if err != nil {
					break
				}
				blocks = append(blocks, blk)
			}
			return blocks
		})
		syncer.RegisterHeightHandler(func() (uint64, string) {
			return ch.Height(), ch.TipHash().String()
		})
		logger.Info().Msg("Chain sync protocol registered")
	} else {
		logger.Warn().Msg("P2P disabled by config; node will run offline")
	}

	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		rpcServer = rpc.New(rpcAddr, ch, pool, p2pNode, genesis, cfg.RPC)
		if err := rpcServer.Start(); err != nil {
			if p2pNode != nil {
				p2pNode.Stop()
			}
			db.Close()
			return nil, fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server started")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		cfg:          cfg,
		genesis:      genesis,
		logger:       logger,
		db:           db,
		engine:       engine,
		ch:           ch,
		pool:         pool,
		p2pNode:      p2pNode,
		syncer:       syncer,
		rpcServer:    rpcServer,
		ctx:          ctx,
		cancel:       cancel,
	}

	if rpcServer != nil {
		rpcServer.SetMiningControl(n)
	}

	return n, nil
}

// Start launches background goroutines: startup sync, sync loop, and miner.
func (n *Node) Start() error {
	if n.p2pNode != nil && n.syncer != nil {
		n.runStartupSync()
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runSyncLoop()
		}()
	}

	if n.cfg.Mining.Enabled {
		if err := n.StartMining(n.cfg.Mining.Coinbase); err != nil {
			return err
		}
	}

	n.logger.Info().
		Uint64("height", n.ch.Height()).
		Str("tip", n.ch.TipHash().String()[:16]+"...").
		Bool("mining", n.IsMining()).
		Msg("Node started successfully")

	return nil
}

// StartMining resolves the coinbase address and begins block production.
// Safe to call again after StopMining.
func (n *Node) StartMining(coinbaseStr string) error {
	if n.miner != nil {
		return fmt.Errorf("mining already running")
	}

	coinbaseAddr, err := resolveCoinbase(coinbaseStr)
	if err != nil {
		return fmt.Errorf("resolve coinbase: %w", err)
	}

	m := miner.New(n.ch, n.engine, n.pool, coinbaseAddr, n.ch.Rules())
	n.miner = m

	blockTime := time.Duration(n.genesis.Protocol.Consensus.TargetBlockTimeSeconds) * time.Second
	n.logger.Info().
		Str("coinbase", coinbaseAddr.String()).
		Dur("interval", blockTime).
		Msg("Block production enabled")

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runMiner(m, blockTime)
	}()

	return nil
}

// StopMining halts block production. Safe to call when not mining.
func (n *Node) StopMining() {
	n.miner = nil
}

// IsMining reports whether block production is currently active.
func (n *Node) IsMining() bool {
	return n.miner != nil
}

// Stop performs graceful shutdown: background goroutines are cancelled and
// drained first, then RPC and P2P stop, and the store closes last.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.p2pNode != nil {
		n.p2pNode.Stop()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	return n.ch.Height()
}

// ── Sync ────────────────────────────────────────────────────────────

func (n *Node) runSyncLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if len(n.p2pNode.PeerList()) == 0 {
				continue
			}
			n.runStartupSync()
		}
	}
}

func (n *Node) runStartupSync() {
	peers := n.p2pNode.PeerList()
	if len(peers) == 0 {
		n.logger.Info().Msg("No peers for startup sync")
		return
	}

	var bestPeer peer.ID
	var bestHeight uint64
	limit := 3
	if len(peers) < limit {
		limit = len(peers)
	}
	for _, p := range peers[:limit] {
		reqCtx, cancel := context.WithTimeout(n.ctx, 5*time.Second)
		resp, err := n.syncer.RequestHeight(reqCtx, p.ID)
		cancel()
		if err != nil {
			continue
		}
		if resp.Height > bestHeight {
			bestHeight = resp.Height
			bestPeer = p.ID
		}
	}

	localHeight := n.ch.Height()
	if bestHeight <= localHeight {
		n.logger.Info().Uint64("height", localHeight).Msg("Chain is up to date")
		return
	}

	total := bestHeight - localHeight
	n.logger.Info().
		Uint64("local", localHeight).
		Uint64("remote", bestHeight).
		Uint64("blocks", total).
		Msg("Syncing chain")

	syncStart := time.Now()

	for from := localHeight + 1; from <= bestHeight; {
		max := uint32(500)
		if from+uint64(max)-1 > bestHeight {
			max = uint32(bestHeight - from + 1)
		}

		reqCtx, cancel := context.WithTimeout(n.ctx, 30*time.Second)
		blocks, err := n.syncer.RequestBlocks(reqCtx, bestPeer, from, max)
		cancel()
		if err != nil {
			n.logger.Warn().Err(err).Uint64("from", from).Msg("Sync request failed")
			return
		}
		if len(blocks) == 0 {
			return
		}

		// Apply the run extending our current tip directly; anything beyond
		// a gap or a competing branch is handed to ReorgTo as one candidate.
		var branch []*block.Block
		for _, blk := range blocks {
			err := n.ch.ProcessBlock(blk, time.Now().Unix())
			switch {
			case err == nil:
				n.pool.RemoveIncluded(blk.Transactions)
			case errors.Is(err, chain.ErrBlockKnown):
				continue
			case errors.Is(err, chain.ErrNotTipExtension):
				branch = append(branch, blk)
			default:
				n.logger.Warn().Err(err).Uint64("height", blk.Header.Height).Msg("Sync block failed")
				return
			}
		}

		if len(branch) > 0 {
			if err := n.ch.ReorgTo(branch); err != nil {
				n.logger.Warn().Err(err).Msg("Reorg to peer branch failed")
				return
			}
			for _, blk := range branch {
				n.pool.RemoveIncluded(blk.Transactions)
			}
			n.logger.Info().
				Uint64("height", n.ch.Height()).
				Str("tip", n.ch.TipHash().String()[:16]+"...").
				Msg("Reorganized onto peer branch")
		}

		from += uint64(len(blocks))

		synced := n.ch.Height() - localHeight
		pct := float64(synced) / float64(total) * 100
		n.logger.Info().
			Uint64("height", n.ch.Height()).
			Uint64("target", bestHeight).
			Str("progress", fmt.Sprintf("%.1f%%", pct)).
			Msg("Syncing")
	}

	n.logger.Info().
		Uint64("height", n.ch.Height()).
		Dur("elapsed", time.Since(syncStart)).
		Msg("Sync complete")
}

// ── Mining ──────────────────────────────────────────────────────────

func (n *Node) runMiner(m *miner.Miner, blockTime time.Duration) {
	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			n.logger.Info().Msg("Block production stopped")
			return
		case <-ticker.C:
			if n.miner != m {
				return // StopMining was called.
			}

			blk, err := m.ProduceBlockCtx(n.ctx)
			if err != nil {
				n.logger.Error().Err(err).Msg("Failed to produce block")
				continue
			}

			if err := n.ch.ProcessBlock(blk, time.Now().Unix()); err != nil {
				n.logger.Error().Err(err).Msg("Failed to process own block")
				continue
			}
			n.pool.RemoveIncluded(blk.Transactions)

			if n.p2pNode != nil {
				if err := n.p2pNode.BroadcastBlock(blk); err != nil {
					n.logger.Error().Err(err).Msg("Failed to broadcast block")
				}
			}

			n.logger.Info().
				Uint64("height", blk.Header.Height).
				Str("hash", blk.Hash().String()[:16]+"...").
				Int("txs", len(blk.Transactions)).
				Uint64("reward", blk.Transactions[0].Amount).
				Msg("Block produced")
		}
	}
}
