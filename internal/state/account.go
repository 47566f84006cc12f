// Package state implements the account-based ledger: balances, nonces,
// time-locked coinbase escrow, and the atomic block-application entry point.
package state

import (
	"encoding/json"

	"github.com/quantachain/quanta/internal/storage"
	"github.com/quantachain/quanta/pkg/types"
)

// addressPrefix is the store key prefix for every account record.
const addressPrefix = "a/"

// Lock is a portion of a reward still held until a future height. Locks are
// carried as an ordered, independent list rather than coalesced into a
// single balance+release-height pair, since multiple coinbase rewards with
// different release heights can be outstanding for the same miner at once.
type Lock struct {
	Amount        uint64 `json:"amount"`
	ReleaseHeight uint64 `json:"release_height"`
}

// Account is the persisted state of a single address.
type Account struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
	Locks   []Lock `json:"locks,omitempty"`
}

// ReleaseMatured moves every lock with ReleaseHeight <= height into Balance,
// per the rule that locks are checked and released before any balance read.
func (a *Account) ReleaseMatured(height uint64) {
	if len(a.Locks) == 0 {
		return
	}
	remaining := a.Locks[:0]
	for _, l := range a.Locks {
		if l.ReleaseHeight <= height {
			a.Balance += l.Amount
		} else {
			remaining = append(remaining, l)
		}
	}
	a.Locks = remaining
}

// LockedBalance returns the sum of all still-locked amounts.
func (a *Account) LockedBalance() uint64 {
	var total uint64
	for _, l := range a.Locks {
		total += l.Amount
	}
	return total
}

// SpendableBalance returns Balance as is: still-locked amounts are held in
// Locks and never counted in Balance, so nothing is subtracted. Call
// ReleaseMatured first for the caller's current height so that matured locks
// have moved into Balance.
func (a *Account) SpendableBalance() uint64 {
	return a.Balance
}

func marshalAccount(a *Account) ([]byte, error) {
	return json.Marshal(a)
}

func unmarshalAccount(data []byte) (*Account, error) {
	var a Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// addressKey builds the a/<address> store key.
func addressKey(addr types.Address) []byte {
	key := make([]byte, len(addressPrefix)+types.AddressSize)
	copy(key, addressPrefix)
	copy(key[len(addressPrefix):], addr[:])
	return key
}

// GetAccount reads an address's account record directly from the store,
// bypassing any in-progress View. A missing record is a zero-value account,
// matching View.getAccount's lazy-create semantics.
func GetAccount(db storage.DB, addr types.Address) (*Account, error) {
	data, err := db.Get(addressKey(addr))
	if err != nil {
		return &Account{}, nil
	}
	return unmarshalAccount(data)
}

// PutAccount writes an address's account record directly to the store.
// Used outside the normal apply_block flow: genesis allocation and reorg
// rebuild, where there is no block to attribute the mutation to.
func PutAccount(db storage.DB, addr types.Address, acc *Account) error {
	data, err := marshalAccount(acc)
	if err != nil {
		return err
	}
	return db.Put(addressKey(addr), data)
}

// ClearAllAccounts deletes every account record from the store. Used by
// chain reorg's full-rebuild path: rather than attempt an in-place undo of
// however many blocks the old branch applied, the rebuild clears the ledger
// and replays every block from genesis through the new tip.
func ClearAllAccounts(db storage.DB) error {
	var keys [][]byte
	if err := db.ForEach([]byte(addressPrefix), func(key, value []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		keys = append(keys, k)
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := db.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
