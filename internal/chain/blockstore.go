package chain

import (
	"github.com/quantachain/quanta/internal/chainstore"
	"github.com/quantachain/quanta/internal/storage"
)

// BlockStore and Tip are re-exported from internal/chainstore so callers of
// this package never need to import chainstore directly. The type lives in
// its own package because internal/state and internal/consensus both need
// it too, and neither may import internal/chain (which depends on both of
// them to compose the chain state machine).
type BlockStore = chainstore.BlockStore
type Tip = chainstore.Tip

// NewBlockStore creates a block store backed by the given database.
func NewBlockStore(db storage.DB) *BlockStore {
	return chainstore.NewBlockStore(db)
}
