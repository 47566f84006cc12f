package wallet

// Balance reports an account's spendable and time-locked coinbase balance,
// as returned by the node's get_balance RPC method.
type Balance struct {
	Total     uint64
	Locked    uint64
	Spendable uint64
}
