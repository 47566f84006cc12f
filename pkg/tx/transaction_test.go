package tx

import (
	"testing"
	"time"

	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

func newSignedTx(t *testing.T, key *crypto.PrivateKey, recipient types.Address, amount, fee, nonce uint64) *Transaction {
	t.Helper()
	sender := crypto.AddressFromPubKey(key.PublicKey())
	b := NewBuilder(sender, recipient, amount, fee, nonce).WithTimestamp(time.Now().Unix())
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	return b.Build()
}

func TestTransaction_Hash_Deterministic(t *testing.T) {
	key, _ := crypto.GenerateKey()
	transaction := newSignedTx(t, key, types.Address{0x02}, 1000, 100, 0)

	h1 := transaction.Hash()
	h2 := transaction.Hash()
	if h1 != h2 {
		t.Error("Hash() should be deterministic")
	}
	if h1.IsZero() {
		t.Error("Hash() should not be zero")
	}
}

func TestTransaction_Hash_ChangesWithContent(t *testing.T) {
	key, _ := crypto.GenerateKey()
	tx1 := newSignedTx(t, key, types.Address{0x02}, 1000, 100, 0)
	tx2 := newSignedTx(t, key, types.Address{0x02}, 2000, 100, 0)

	if tx1.Hash() == tx2.Hash() {
		t.Error("different transactions should have different hashes")
	}
}

func TestTransaction_Hash_ChangesWithSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	transaction := newSignedTx(t, key, types.Address{0x02}, 1000, 100, 0)

	h1 := transaction.Hash()
	transaction.Signature = append([]byte(nil), transaction.Signature...)
	transaction.Signature[0] ^= 0x01
	h2 := transaction.Hash()

	if h1 == h2 {
		t.Error("Hash() should change when the signature changes (unlike the signing hash)")
	}
}

func TestTransaction_SigningHash_IgnoresSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	transaction := newSignedTx(t, key, types.Address{0x02}, 1000, 100, 0)

	h1 := transaction.SigningHash()
	transaction.Signature = []byte("replaced signature")
	h2 := transaction.SigningHash()

	if h1 != h2 {
		t.Error("SigningHash() should not change when the signature changes")
	}
}

func TestTransaction_Total(t *testing.T) {
	transaction := &Transaction{Amount: 1000, Fee: 250}
	got, err := transaction.Total()
	if err != nil {
		t.Fatalf("Total() error: %v", err)
	}
	if got != 1250 {
		t.Errorf("Total() = %d, want 1250", got)
	}
}

func TestTransaction_Total_Overflow(t *testing.T) {
	transaction := &Transaction{Amount: ^uint64(0), Fee: 1}
	if _, err := transaction.Total(); err == nil {
		t.Error("Total() should return error on overflow")
	}
}

func TestTransaction_IsCoinbase(t *testing.T) {
	cb := NewCoinbase(types.Address{0x01}, 1000)
	if !cb.IsCoinbase() {
		t.Error("NewCoinbase() result should report IsCoinbase() true")
	}

	key, _ := crypto.GenerateKey()
	normal := newSignedTx(t, key, types.Address{0x02}, 1000, 100, 0)
	if normal.IsCoinbase() {
		t.Error("a signed transfer should not report IsCoinbase() true")
	}
}

func TestTransaction_JSON_RoundTrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	transaction := newSignedTx(t, key, types.Address{0x02}, 1000, 100, 5)

	data, err := transaction.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}

	var decoded Transaction
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}

	if decoded.Hash() != transaction.Hash() {
		t.Error("round-tripped transaction should hash identically")
	}
	if decoded.Sender != transaction.Sender || decoded.Recipient != transaction.Recipient {
		t.Error("round-tripped transaction should preserve sender/recipient")
	}
}

func TestBuilder_BuildAndSign(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sender := crypto.AddressFromPubKey(key.PublicKey())
	recipient := types.Address{0x02}

	b := NewBuilder(sender, recipient, 5000, 100, 0).WithTimestamp(time.Now().Unix())
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	transaction := b.Build()

	if transaction.Sender != sender {
		t.Errorf("sender = %s, want %s", transaction.Sender, sender)
	}
	if transaction.Amount != 5000 {
		t.Errorf("amount = %d, want 5000", transaction.Amount)
	}

	if err := transaction.Validate(time.Now().Unix()); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if err := transaction.VerifySignature(); err != nil {
		t.Errorf("VerifySignature() error: %v", err)
	}
}
