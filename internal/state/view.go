package state

import (
	"errors"
	"fmt"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/internal/chainstore"
	"github.com/quantachain/quanta/internal/storage"
	"github.com/quantachain/quanta/pkg/block"
	"github.com/quantachain/quanta/pkg/types"
)

// Errors returned by View.apply_block's per-transaction checks.
var (
	ErrBadParent         = errors.New("block previous_hash does not match view tip")
	ErrBadHeight         = errors.New("block height is not tip+1")
	ErrBadCoinbaseAmount = errors.New("coinbase amount does not match expected reward plus fee share")
	ErrBadNonce          = errors.New("transaction nonce does not match sender account nonce")
	ErrInsufficientFunds = errors.New("sender spendable balance insufficient for amount plus fee")
	ErrDuplicateChainTx  = errors.New("transaction hash already recorded on chain")
	ErrNothingToRollback = errors.New("rollback target is at or above the current view tip")
)

// Result summarizes the effect of a single apply_block call.
type Result struct {
	Height          uint64
	Hash            types.Hash
	Reward          uint64
	RewardImmediate uint64
	RewardLocked    uint64
	FeesCollected   uint64
	FeeBurned       uint64
	FeeTreasury     uint64
	FeeMiner        uint64
}

// appliedEntry records exactly what a block did to the ledger, so
// rollback_to can reverse it without recomputing external inputs (like the
// fee-sum used for the usage multiplier) that may no longer be available.
type appliedEntry struct {
	blk    *block.Block
	result Result
}

// View is a transactional handle on the account ledger: changes accumulate
// in memory across one or more apply_block calls and only reach the
// persistent store on commit. rollback_to lets a caller discard the tail of
// an in-progress view (e.g. an uncommitted candidate chain found shorter
// than hoped) without touching the database.
type View struct {
	db           storage.DB
	blocks       *chainstore.BlockStore
	rules        config.MiningRules
	treasuryAddr types.Address

	parentTip chainstore.Tip
	tip       chainstore.Tip

	accounts map[types.Address]*Account
	applied  []appliedEntry

	burnedDelta   uint64
	treasuryDelta uint64

	committed bool
}

// Begin opens a new view rooted at parentTip.
func Begin(db storage.DB, blocks *chainstore.BlockStore, rules config.MiningRules, treasuryAddr types.Address, parentTip chainstore.Tip) *View {
	return &View{
		db:           db,
		blocks:       blocks,
		rules:        rules,
		treasuryAddr: treasuryAddr,
		parentTip:    parentTip,
		tip:          parentTip,
		accounts:     make(map[types.Address]*Account),
	}
}

// Tip returns the view's current (possibly uncommitted) tip.
func (v *View) Tip() chainstore.Tip { return v.tip }

// Account returns the current (possibly dirty, uncommitted) state of addr.
func (v *View) Account(addr types.Address) (*Account, error) {
	return v.getAccount(addr)
}

func (v *View) getAccount(addr types.Address) (*Account, error) {
	if acc, ok := v.accounts[addr]; ok {
		return acc, nil
	}
	data, err := v.db.Get(addressKey(addr))
	if err != nil {
		acc := &Account{}
		v.accounts[addr] = acc
		return acc, nil
	}
	acc, err := unmarshalAccount(data)
	if err != nil {
		return nil, fmt.Errorf("account unmarshal %s: %w", addr, err)
	}
	v.accounts[addr] = acc
	return acc, nil
}

// workForDifficulty returns the proof-of-work "units" a block of the given
// difficulty contributes to cumulative chain work: 2^difficulty, saturating
// to the maximum uint64 for difficulty values of 63 and above.
func workForDifficulty(difficulty uint32) uint64 {
	if difficulty >= 63 {
		return ^uint64(0)
	}
	return uint64(1) << difficulty
}

// ApplyBlock is the single mutation entry point: it validates the block
// against the view's current tip and account state, then folds its effects
// into the view's in-memory ledger. feeSum1000 is the sum of fees collected
// over the last min(1000, height) blocks, needed for the bootstrap usage
// multiplier; callers derive it from chain history before calling.
func (v *View) ApplyBlock(blk *block.Block, feeSum1000 uint64) (*Result, error) {
	if blk == nil || blk.Header == nil {
		return nil, errors.New("nil block or header")
	}
	header := blk.Header

	if !v.tip.Hash.IsZero() || v.tip.Height != 0 {
		if header.PreviousHash != v.tip.Hash {
			return nil, ErrBadParent
		}
		if header.Height != v.tip.Height+1 {
			return nil, ErrBadHeight
		}
	} else if header.Height != 0 {
		// Genesis: no prior tip recorded yet, must be height 0.
		return nil, ErrBadHeight
	}

	if len(blk.Transactions) == 0 {
		return nil, errors.New("block has no transactions")
	}
	coinbase := blk.Transactions[0]
	rest := blk.Transactions[1:]

	var totalFees uint64
	for _, t := range rest {
		if has, err := v.blocks.HasTx(t.Hash()); err == nil && has {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChainTx, t.Hash())
		}
		if _, err := t.Total(); err != nil {
			return nil, err
		}
		totalFees += t.Fee
	}

	feeBurn := totalFees * v.rules.FeeBurnPercent / 100
	feeTreasury := totalFees * v.rules.FeeTreasuryPercent / 100
	feeMiner := totalFees - feeBurn - feeTreasury

	reward := v.rules.ExpectedReward(header.Height, feeSum1000)
	immediate, locked := v.rules.SplitReward(reward)

	expectedCoinbase := reward + feeMiner
	if coinbase.Amount != expectedCoinbase {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadCoinbaseAmount, coinbase.Amount, expectedCoinbase)
	}

	// Apply non-coinbase transactions first so a failure leaves no partial
	// mutation of the miner or treasury accounts behind.
	for _, t := range rest {
		sender, err := v.getAccount(t.Sender)
		if err != nil {
			return nil, err
		}
		sender.ReleaseMatured(header.Height)

		if t.Nonce != sender.Nonce {
			return nil, fmt.Errorf("%w: sender %s has nonce %d, tx has %d", ErrBadNonce, t.Sender, sender.Nonce, t.Nonce)
		}
		total := t.Amount + t.Fee
		if sender.SpendableBalance() < total {
			return nil, fmt.Errorf("%w: sender %s has %d, needs %d", ErrInsufficientFunds, t.Sender, sender.SpendableBalance(), total)
		}

		sender.Balance -= total
		sender.Nonce++

		recipient, err := v.getAccount(t.Recipient)
		if err != nil {
			return nil, err
		}
		recipient.ReleaseMatured(header.Height)
		recipient.Balance += t.Amount
	}

	minerAcc, err := v.getAccount(coinbase.Recipient)
	if err != nil {
		return nil, err
	}
	minerAcc.ReleaseMatured(header.Height)
	minerAcc.Balance += immediate + feeMiner
	if locked > 0 {
		minerAcc.Locks = append(minerAcc.Locks, Lock{
			Amount:        locked,
			ReleaseHeight: header.Height + v.rules.MiningRewardLockBlocks,
		})
	}

	if feeTreasury > 0 {
		treasuryAcc, err := v.getAccount(v.treasuryAddr)
		if err != nil {
			return nil, err
		}
		treasuryAcc.ReleaseMatured(header.Height)
		treasuryAcc.Balance += feeTreasury
	}

	v.burnedDelta += feeBurn
	v.treasuryDelta += feeTreasury

	newTip := chainstore.Tip{
		Hash:           blk.Hash(),
		Height:         header.Height,
		CumulativeWork: v.tip.CumulativeWork + workForDifficulty(header.Difficulty),
	}
	v.tip = newTip

	result := Result{
		Height:          header.Height,
		Hash:            newTip.Hash,
		Reward:          reward,
		RewardImmediate: immediate,
		RewardLocked:    locked,
		FeesCollected:   totalFees,
		FeeBurned:       feeBurn,
		FeeTreasury:     feeTreasury,
		FeeMiner:        feeMiner,
	}
	v.applied = append(v.applied, appliedEntry{blk: blk, result: result})
	return &result, nil
}

// RollbackTo discards every applied block above height, reversing each
// one's ledger effects in reverse order using the block's own transaction
// list. The view's tip moves back to the block at height (or parentTip if
// height is at or below it). Only in-memory, uncommitted state is touched.
func (v *View) RollbackTo(height uint64) error {
	if len(v.applied) == 0 || v.tip.Height <= height {
		if v.tip.Height == height {
			return nil
		}
		return ErrNothingToRollback
	}

	for len(v.applied) > 0 && v.applied[len(v.applied)-1].result.Height > height {
		entry := v.applied[len(v.applied)-1]
		v.applied = v.applied[:len(v.applied)-1]
		if err := v.reverseBlock(entry); err != nil {
			return err
		}
		v.tip.CumulativeWork -= workForDifficulty(entry.blk.Header.Difficulty)
	}

	if len(v.applied) > 0 {
		last := v.applied[len(v.applied)-1]
		v.tip = chainstore.Tip{Hash: last.result.Hash, Height: last.result.Height, CumulativeWork: v.tip.CumulativeWork}
	} else {
		v.tip = v.parentTip
	}
	return nil
}

func (v *View) reverseBlock(entry appliedEntry) error {
	blk := entry.blk
	res := entry.result
	header := blk.Header
	coinbase := blk.Transactions[0]
	rest := blk.Transactions[1:]

	minerAcc, err := v.getAccount(coinbase.Recipient)
	if err != nil {
		return err
	}
	minerAcc.Balance -= res.RewardImmediate + res.FeeMiner
	if res.RewardLocked > 0 {
		target := header.Height + v.rules.MiningRewardLockBlocks
		for i := len(minerAcc.Locks) - 1; i >= 0; i-- {
			if minerAcc.Locks[i].Amount == res.RewardLocked && minerAcc.Locks[i].ReleaseHeight == target {
				minerAcc.Locks = append(minerAcc.Locks[:i], minerAcc.Locks[i+1:]...)
				break
			}
		}
	}

	if res.FeeTreasury > 0 {
		treasuryAcc, err := v.getAccount(v.treasuryAddr)
		if err != nil {
			return err
		}
		treasuryAcc.Balance -= res.FeeTreasury
	}

	for i := len(rest) - 1; i >= 0; i-- {
		t := rest[i]
		recipient, err := v.getAccount(t.Recipient)
		if err != nil {
			return err
		}
		recipient.Balance -= t.Amount

		sender, err := v.getAccount(t.Sender)
		if err != nil {
			return err
		}
		sender.Balance += t.Amount + t.Fee
		sender.Nonce--
	}

	v.burnedDelta -= res.FeeBurned
	v.treasuryDelta -= res.FeeTreasury
	return nil
}

// Commit persists every dirty account, every applied block (with its
// indexes), the updated burned/treasury counters, and the new tip in one
// atomic store batch.
func (v *View) Commit() error {
	if v.committed {
		return errors.New("view already committed")
	}

	b := v.newBatch()
	for addr, acc := range v.accounts {
		data, err := marshalAccount(acc)
		if err != nil {
			return fmt.Errorf("account marshal %s: %w", addr, err)
		}
		if err := b.Put(addressKey(addr), data); err != nil {
			return fmt.Errorf("account put %s: %w", addr, err)
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("account batch commit: %w", err)
	}

	for _, entry := range v.applied {
		if err := v.blocks.PutBlock(entry.blk); err != nil {
			return fmt.Errorf("put block %d: %w", entry.result.Height, err)
		}
	}

	if v.burnedDelta > 0 {
		if err := v.blocks.AddBurned(v.burnedDelta); err != nil {
			return err
		}
	}
	if v.treasuryDelta > 0 {
		if err := v.blocks.AddTreasury(v.treasuryDelta); err != nil {
			return err
		}
	}
	if err := v.blocks.SetTip(v.tip); err != nil {
		return err
	}

	v.committed = true
	return nil
}

func (v *View) newBatch() storage.Batch {
	if batcher, ok := v.db.(storage.Batcher); ok {
		return batcher.NewBatch()
	}
	return &directAccountBatch{db: v.db}
}

// directAccountBatch applies writes immediately when the backing DB offers
// no atomic batch (mirrors internal/chain's directBatch fallback).
type directAccountBatch struct{ db storage.DB }

func (d *directAccountBatch) Put(key, value []byte) error { return d.db.Put(key, value) }
func (d *directAccountBatch) Delete(key []byte) error      { return d.db.Delete(key) }
func (d *directAccountBatch) Commit() error                { return nil }
