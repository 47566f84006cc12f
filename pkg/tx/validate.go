package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/pkg/crypto"
)

// Stateless ("context-free") validation errors. Contextual errors (bad
// nonce, insufficient balance, duplicate-against-chain) belong to the
// state/mempool packages, which validate against a state view.
var (
	ErrAmountOverflow    = errors.New("amount+fee overflows")
	ErrZeroAmount        = errors.New("transaction amount must be positive")
	ErrFeeTooLow         = errors.New("fee below minimum")
	ErrMissingPublicKey  = errors.New("transaction missing public key")
	ErrMissingSignature  = errors.New("transaction missing signature")
	ErrAddressMismatch   = errors.New("sender address does not match public key")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrTimestampTooOld   = errors.New("transaction timestamp too old")
	ErrTimestampTooNew   = errors.New("transaction timestamp too far in the future")
)

// Validate checks a transaction's stateless (context-free) rules per the
// spec's transaction validation contract: structural integrity, sender
// address derived from the public key, a non-empty signature, a positive
// amount, a fee at or above the network minimum, and a timestamp within
// the accepted window. It does NOT verify the signature (VerifySignature
// does that), nor check nonce ordering or sender balance, which require a
// state view.
func (t *Transaction) Validate(nowUnix int64) error {
	if t.IsCoinbase() {
		return t.validateCoinbase()
	}

	if t.Amount == 0 {
		return ErrZeroAmount
	}
	if t.Fee < config.MinTxFeeMicro {
		return fmt.Errorf("%w: %d, min %d", ErrFeeTooLow, t.Fee, config.MinTxFeeMicro)
	}
	if _, err := t.Total(); err != nil {
		return err
	}
	if len(t.PublicKey) == 0 {
		return ErrMissingPublicKey
	}
	if len(t.Signature) == 0 {
		return ErrMissingSignature
	}
	if want := crypto.AddressFromPubKey(t.PublicKey); want != t.Sender {
		return fmt.Errorf("%w: derived %s, claimed %s", ErrAddressMismatch, want, t.Sender)
	}

	oldest := nowUnix - config.TransactionExpirySeconds
	newest := nowUnix + config.TransactionFutureToleranceSeconds
	if t.Timestamp < oldest {
		return fmt.Errorf("%w: %d before %d", ErrTimestampTooOld, t.Timestamp, oldest)
	}
	if t.Timestamp > newest {
		return fmt.Errorf("%w: %d after %d", ErrTimestampTooNew, t.Timestamp, newest)
	}

	return nil
}

// validateCoinbase applies the minimal structural rules for a block's
// reward-creating first transaction: it carries no signature and its
// amount must not overflow when combined with its (always-zero) fee.
func (t *Transaction) validateCoinbase() error {
	if len(t.Signature) != 0 {
		return fmt.Errorf("coinbase must not carry a signature")
	}
	if t.Fee != 0 {
		return fmt.Errorf("coinbase must not carry a fee")
	}
	if t.Amount > math.MaxUint64 {
		return ErrAmountOverflow
	}
	return nil
}

// VerifySignature checks that the transaction's signature is valid over
// its signing hash for a non-coinbase transaction.
func (t *Transaction) VerifySignature() error {
	if t.IsCoinbase() {
		return nil
	}
	hash := t.SigningHash()
	if !crypto.VerifySignature(hash[:], t.Signature, t.PublicKey) {
		return ErrInvalidSignature
	}
	return nil
}
