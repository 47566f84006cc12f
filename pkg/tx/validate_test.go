package tx

import (
	"errors"
	"testing"
	"time"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

// validTx creates a minimal valid signed transfer for testing.
func validTx(t *testing.T) *Transaction {
	t.Helper()
	key, _ := crypto.GenerateKey()
	sender := crypto.AddressFromPubKey(key.PublicKey())
	b := NewBuilder(sender, types.Address{0x02}, 1000, config.MinTxFeeMicro, 0).
		WithTimestamp(time.Now().Unix())
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	return b.Build()
}

func TestValidate_Valid(t *testing.T) {
	transaction := validTx(t)
	if err := transaction.Validate(time.Now().Unix()); err != nil {
		t.Errorf("valid tx should pass: %v", err)
	}
}

func TestValidate_ZeroAmount(t *testing.T) {
	transaction := validTx(t)
	transaction.Amount = 0
	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrZeroAmount) {
		t.Errorf("expected ErrZeroAmount, got: %v", err)
	}
}

func TestValidate_FeeTooLow(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sender := crypto.AddressFromPubKey(key.PublicKey())
	b := NewBuilder(sender, types.Address{0x02}, 1000, config.MinTxFeeMicro-1, 0).
		WithTimestamp(time.Now().Unix())
	b.Sign(key)
	transaction := b.Build()

	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrFeeTooLow) {
		t.Errorf("expected ErrFeeTooLow, got: %v", err)
	}
}

func TestValidate_MissingPublicKey(t *testing.T) {
	transaction := validTx(t)
	transaction.PublicKey = nil
	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrMissingPublicKey) {
		t.Errorf("expected ErrMissingPublicKey, got: %v", err)
	}
}

func TestValidate_MissingSignature(t *testing.T) {
	transaction := validTx(t)
	transaction.Signature = nil
	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrMissingSignature) {
		t.Errorf("expected ErrMissingSignature, got: %v", err)
	}
}

func TestValidate_AddressMismatch(t *testing.T) {
	transaction := validTx(t)
	transaction.Sender = types.Address{0xff}
	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrAddressMismatch) {
		t.Errorf("expected ErrAddressMismatch, got: %v", err)
	}
}

func TestValidate_AmountOverflow(t *testing.T) {
	transaction := validTx(t)
	transaction.Amount = ^uint64(0)
	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("expected ErrAmountOverflow, got: %v", err)
	}
}

func TestValidate_TimestampTooOld(t *testing.T) {
	transaction := validTx(t)
	transaction.Timestamp = time.Now().Unix() - config.TransactionExpirySeconds - 10
	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrTimestampTooOld) {
		t.Errorf("expected ErrTimestampTooOld, got: %v", err)
	}
}

func TestValidate_TimestampTooNew(t *testing.T) {
	transaction := validTx(t)
	transaction.Timestamp = time.Now().Unix() + config.TransactionFutureToleranceSeconds + 10
	err := transaction.Validate(time.Now().Unix())
	if !errors.Is(err, ErrTimestampTooNew) {
		t.Errorf("expected ErrTimestampTooNew, got: %v", err)
	}
}

func TestValidate_Coinbase(t *testing.T) {
	coinbase := NewCoinbase(types.Address{0x01}, 50_000_000)
	if err := coinbase.Validate(time.Now().Unix()); err != nil {
		t.Errorf("coinbase tx should pass Validate: %v", err)
	}
}

func TestVerifySignature_Coinbase(t *testing.T) {
	coinbase := NewCoinbase(types.Address{0x01}, 50_000_000)
	if err := coinbase.VerifySignature(); err != nil {
		t.Errorf("coinbase tx should pass VerifySignature: %v", err)
	}
}

func TestVerifySignature_Valid(t *testing.T) {
	transaction := validTx(t)
	if err := transaction.VerifySignature(); err != nil {
		t.Errorf("valid signature should verify: %v", err)
	}
}

func TestVerifySignature_WrongKey(t *testing.T) {
	key1, _ := crypto.GenerateKey()
	key2, _ := crypto.GenerateKey()
	sender := crypto.AddressFromPubKey(key1.PublicKey())

	b := NewBuilder(sender, types.Address{0x02}, 1000, config.MinTxFeeMicro, 0).
		WithTimestamp(time.Now().Unix())
	b.Sign(key1)
	transaction := b.Build()

	// Replace public key with wrong one.
	transaction.PublicKey = key2.PublicKey()

	err := transaction.VerifySignature()
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestVerifySignature_TamperedAmount(t *testing.T) {
	transaction := validTx(t)
	transaction.Amount = 9999999

	err := transaction.VerifySignature()
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered tx should fail verification: %v", err)
	}
}

func TestVerifySignature_CorruptedSignature(t *testing.T) {
	transaction := validTx(t)
	transaction.Signature[0] ^= 0xFF

	err := transaction.VerifySignature()
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("corrupted signature should fail: %v", err)
	}
}
