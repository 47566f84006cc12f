// Package mempool holds unconfirmed transactions awaiting block inclusion:
// a bounded set keyed by tx_hash with a secondary (sender, nonce) index,
// fee-rate-descending selection, and state-conditional admission.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/internal/state"
	"github.com/quantachain/quanta/pkg/tx"
	"github.com/quantachain/quanta/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists     = errors.New("transaction already in mempool")
	ErrAlreadyOnChain    = errors.New("transaction already committed on chain")
	ErrPoolFull          = errors.New("mempool is full and new transaction does not pay more than the lowest entry")
	ErrNonceMismatch     = errors.New("transaction nonce does not match account nonce")
	ErrInsufficientFunds = errors.New("sender spendable balance (minus already-pending mempool spend) is too low")
)

// AccountReader resolves the current (committed) state of an address.
// Satisfied by *internal/state.View.
type AccountReader interface {
	Account(addr types.Address) (*state.Account, error)
}

// ChainTxChecker reports whether a transaction hash is already recorded on
// chain. Satisfied by *internal/chain.BlockStore.
type ChainTxChecker interface {
	HasTx(txHash types.Hash) (bool, error)
}

// entry wraps an admitted transaction with its mempool bookkeeping.
type entry struct {
	tx        *tx.Transaction
	txHash    types.Hash
	total     uint64 // amount + fee
	timestamp int64
}

// Pool holds unconfirmed transactions.
type Pool struct {
	mu       sync.RWMutex
	txs      map[types.Hash]*entry
	byNonce  map[types.Address]map[uint64]types.Hash // (sender, nonce) -> txHash
	pending  map[types.Address]uint64                // sender -> sum of pending amount+fee
	maxSize  int
	heightFn func() uint64

	accounts AccountReader
	chainTxs ChainTxChecker
}

// New creates a mempool backed by the given account and chain-tx readers.
// maxSize <= 0 uses the protocol default capacity.
func New(accounts AccountReader, chainTxs ChainTxChecker, maxSize int, heightFn func() uint64) *Pool {
	if maxSize <= 0 {
		maxSize = config.MempoolCapacity
	}
	return &Pool{
		txs:      make(map[types.Hash]*entry),
		byNonce:  make(map[types.Address]map[uint64]types.Hash),
		pending:  make(map[types.Address]uint64),
		maxSize:  maxSize,
		heightFn: heightFn,
		accounts: accounts,
		chainTxs: chainTxs,
	}
}

// Add validates and admits a transaction. nowUnix is used for the
// timestamp-bounds and expiry checks.
func (p *Pool) Add(t *tx.Transaction, nowUnix int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := t.Hash()
	if _, exists := p.txs[txHash]; exists {
		return ErrAlreadyExists
	}
	if p.chainTxs != nil {
		if has, err := p.chainTxs.HasTx(txHash); err == nil && has {
			return ErrAlreadyOnChain
		}
	}

	if err := admit(t, nowUnix); err != nil {
		return err
	}

	account, err := p.accounts.Account(t.Sender)
	if err != nil {
		return fmt.Errorf("load sender account: %w", err)
	}
	if t.Nonce != account.Nonce {
		return fmt.Errorf("%w: account has %d, tx has %d", ErrNonceMismatch, account.Nonce, t.Nonce)
	}

	total, err := t.Total()
	if err != nil {
		return err
	}
	alreadyPending := p.pending[t.Sender]
	if account.SpendableBalance() < alreadyPending+total {
		return fmt.Errorf("%w: balance %d, pending %d, needs %d",
			ErrInsufficientFunds, account.SpendableBalance(), alreadyPending, total)
	}

	if len(p.txs) >= p.maxSize {
		lowestHash, lowestFee, ok := p.lowestFee()
		if !ok || t.Fee <= lowestFee {
			return ErrPoolFull
		}
		p.removeLocked(lowestHash)
	}

	p.txs[txHash] = &entry{tx: t, txHash: txHash, total: total, timestamp: t.Timestamp}
	if p.byNonce[t.Sender] == nil {
		p.byNonce[t.Sender] = make(map[uint64]types.Hash)
	}
	p.byNonce[t.Sender][t.Nonce] = txHash
	p.pending[t.Sender] += total

	return nil
}

// Remove removes a transaction from the pool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	delete(p.txs, txHash)
	if byNonce, ok := p.byNonce[e.tx.Sender]; ok {
		delete(byNonce, e.tx.Nonce)
		if len(byNonce) == 0 {
			delete(p.byNonce, e.tx.Sender)
		}
	}
	p.pending[e.tx.Sender] -= e.total
	if p.pending[e.tx.Sender] == 0 {
		delete(p.pending, e.tx.Sender)
	}
}

// RemoveIncluded drops every transaction that was just included in a block.
func (p *Pool) RemoveIncluded(txs []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range txs {
		p.removeLocked(t.Hash())
	}
}

// Reap drops transactions that became invalid (bad nonce, insufficient
// balance against current state) or expired (older than the transaction
// expiry window), per the block-application removal policy.
func (p *Pool) Reap(nowUnix int64) (removed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	oldest := nowUnix - config.TransactionExpirySeconds
	for hash, e := range p.txs {
		if e.timestamp < oldest {
			p.removeLocked(hash)
			removed++
			continue
		}
		account, err := p.accounts.Account(e.tx.Sender)
		if err != nil {
			continue
		}
		if e.tx.Nonce != account.Nonce || account.SpendableBalance() < e.total {
			p.removeLocked(hash)
			removed++
		}
	}
	return removed
}

// Has reports whether a transaction hash is currently pooled.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get returns a pooled transaction, or nil if absent.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns every pooled transaction hash.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// lowestFee returns the pooled transaction that sorts last in block-template
// selection order: the lowest fee, ties broken by the latest timestamp then
// the lexicographically largest hash. Must be called with p.mu held.
func (p *Pool) lowestFee() (types.Hash, uint64, bool) {
	if len(p.txs) == 0 {
		return types.Hash{}, 0, false
	}
	entries := p.sortedLocked()
	worst := entries[len(entries)-1]
	return worst.txHash, worst.tx.Fee, true
}

// SelectForBlock returns up to limit pooled transactions ordered by the
// block-template selection policy: fee descending, ties broken by earlier
// timestamp, then by ascending tx_hash.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := p.sortedLocked()
	if limit < 0 || limit > len(entries) {
		limit = len(entries)
	}
	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}

// sortedLocked returns every pooled entry in selection order (best first).
// Must be called with p.mu held (read or write).
func (p *Pool) sortedLocked() []*entry {
	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.tx.Fee != b.tx.Fee {
			return a.tx.Fee > b.tx.Fee
		}
		if a.timestamp != b.timestamp {
			return a.timestamp < b.timestamp
		}
		return lessHash(a.txHash, b.txHash)
	})
	return entries
}

func lessHash(a, b types.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
