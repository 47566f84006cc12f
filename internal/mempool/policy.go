package mempool

import (
	"fmt"

	"github.com/quantachain/quanta/config"
	"github.com/quantachain/quanta/pkg/tx"
)

// admit runs the stateless admission checks: structural validity (which
// covers signature, address-from-pubkey, positive amount, minimum fee, and
// timestamp bounds) plus the minimum-fee floor the spec calls out
// explicitly for mempool acceptance, defense-in-depth against a future
// change to the protocol minimum.
func admit(t *tx.Transaction, nowUnix int64) error {
	if t.IsCoinbase() {
		return fmt.Errorf("coinbase transactions are not relayed through the mempool")
	}
	if err := t.Validate(nowUnix); err != nil {
		return fmt.Errorf("stateless validation: %w", err)
	}
	if t.Fee < config.MinTxFeeMicro {
		return fmt.Errorf("%w: %d, min %d", tx.ErrFeeTooLow, t.Fee, config.MinTxFeeMicro)
	}
	if err := t.VerifySignature(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	return nil
}
