// Package tx defines transaction types and validation for the account model.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

// MicroQUA is the number of microunits in one QUA.
const MicroQUA = 1_000_000

// Transaction represents a value transfer between two accounts.
type Transaction struct {
	Sender    types.Address `json:"sender"`
	Recipient types.Address `json:"recipient"`
	Amount    uint64        `json:"amount"`    // microunits
	Fee       uint64        `json:"fee"`       // microunits
	Nonce     uint64        `json:"nonce"`     // must equal sender.nonce at inclusion
	Timestamp int64         `json:"timestamp"` // unix seconds
	PublicKey []byte        `json:"public_key"`
	Signature []byte        `json:"signature"`
}

// txJSON hex-encodes the variable-length lattice key/signature fields.
type txJSON struct {
	Sender    types.Address `json:"sender"`
	Recipient types.Address `json:"recipient"`
	Amount    uint64        `json:"amount"`
	Fee       uint64        `json:"fee"`
	Nonce     uint64        `json:"nonce"`
	Timestamp int64         `json:"timestamp"`
	PublicKey string        `json:"public_key,omitempty"`
	Signature string        `json:"signature,omitempty"`
}

// MarshalJSON encodes the transaction with hex-encoded key/signature bytes.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	j := txJSON{
		Sender:    t.Sender,
		Recipient: t.Recipient,
		Amount:    t.Amount,
		Fee:       t.Fee,
		Nonce:     t.Nonce,
		Timestamp: t.Timestamp,
	}
	if t.PublicKey != nil {
		j.PublicKey = hex.EncodeToString(t.PublicKey)
	}
	if t.Signature != nil {
		j.Signature = hex.EncodeToString(t.Signature)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a transaction with hex-encoded key/signature bytes.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var j txJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	t.Sender = j.Sender
	t.Recipient = j.Recipient
	t.Amount = j.Amount
	t.Fee = j.Fee
	t.Nonce = j.Nonce
	t.Timestamp = j.Timestamp
	if j.PublicKey != "" {
		b, err := hex.DecodeString(j.PublicKey)
		if err != nil {
			return err
		}
		t.PublicKey = b
	}
	if j.Signature != "" {
		b, err := hex.DecodeString(j.Signature)
		if err != nil {
			return err
		}
		t.Signature = b
	}
	return nil
}

// IsCoinbase reports whether this is a block's reward-creating first
// transaction: sender is the burn address and it carries no signature.
func (t *Transaction) IsCoinbase() bool {
	return t.Sender.IsZero() && len(t.Signature) == 0
}

// SigningBytes returns the canonical bytes signed by the sender: every
// field up to and including the public key, in field-declaration order,
// length-prefixing the variable-length public key.
//
// Format: sender(20) | recipient(20) | amount(8) | fee(8) | nonce(8) | timestamp(8) | pubkey_len(4) | pubkey
func (t *Transaction) SigningBytes() []byte {
	buf := make([]byte, 0, 20+20+8+8+8+8+4+len(t.PublicKey))
	buf = append(buf, t.Sender[:]...)
	buf = append(buf, t.Recipient[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, t.Amount)
	buf = binary.LittleEndian.AppendUint64(buf, t.Fee)
	buf = binary.LittleEndian.AppendUint64(buf, t.Nonce)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.Timestamp))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.PublicKey)))
	buf = append(buf, t.PublicKey...)
	return buf
}

// CanonicalBytes returns the full canonical serialization including the
// signature; tx_hash = SHA3-256(CanonicalBytes()).
func (t *Transaction) CanonicalBytes() []byte {
	buf := t.SigningBytes()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Signature)))
	buf = append(buf, t.Signature...)
	return buf
}

// Hash computes the transaction identifier.
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.CanonicalBytes())
}

// SigningHash returns the digest the sender's signature is computed over.
func (t *Transaction) SigningHash() types.Hash {
	return crypto.Hash(t.SigningBytes())
}

// Total returns amount+fee, erroring on overflow.
func (t *Transaction) Total() (uint64, error) {
	if t.Amount > math.MaxUint64-t.Fee {
		return 0, ErrAmountOverflow
	}
	return t.Amount + t.Fee, nil
}

// NewCoinbase builds the reward-creating first transaction of a block.
func NewCoinbase(miner types.Address, amount uint64) *Transaction {
	return &Transaction{
		Sender:    types.BurnAddress,
		Recipient: miner,
		Amount:    amount,
	}
}
