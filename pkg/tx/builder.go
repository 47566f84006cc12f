package tx

import (
	"fmt"

	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

// Builder constructs a single-sender transaction incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder for a transfer from sender
// to recipient of the given amount and fee, at the given nonce.
func NewBuilder(sender, recipient types.Address, amount, fee, nonce uint64) *Builder {
	return &Builder{
		tx: &Transaction{
			Sender:    sender,
			Recipient: recipient,
			Amount:    amount,
			Fee:       fee,
			Nonce:     nonce,
		},
	}
}

// WithTimestamp overrides the transaction timestamp (unix seconds).
func (b *Builder) WithTimestamp(unix int64) *Builder {
	b.tx.Timestamp = unix
	return b
}

// Sign computes the signing hash and populates the public key and
// signature fields. The caller must have already set a timestamp, since
// the signature covers it.
func (b *Builder) Sign(key *crypto.PrivateKey) error {
	hash := b.tx.SigningHash()
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	b.tx.PublicKey = key.PublicKey()
	b.tx.Signature = sig
	return nil
}

// Build returns the constructed transaction. Does NOT validate — call
// tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
