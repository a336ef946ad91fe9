package bank

import (
	"math/big"
	"sync"

	"lendingpool/crypto"
)

// ShareToken is the in-memory claim-share issuer of a pool. Shares held by a
// locked account, such as the pool's stake escrow, cannot be transferred out
// and leave only through Burn.
type ShareToken struct {
	mu     sync.Mutex
	symbol string
	book   *book
	locked map[crypto.Address]bool
}

// NewShareToken constructs an empty share token. Balances of the locked
// accounts may only be burned.
func NewShareToken(symbol string, locked ...crypto.Address) *ShareToken {
	t := &ShareToken{symbol: symbol, book: newBook(), locked: make(map[crypto.Address]bool)}
	for _, addr := range locked {
		t.locked[addr] = true
	}
	return t
}

// Symbol returns the share ticker.
func (t *ShareToken) Symbol() string { return t.symbol }

// Mint implements pool.ShareIssuer.
func (t *ShareToken) Mint(to crypto.Address, shares *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.mint(to, shares)
}

// Burn implements pool.ShareIssuer.
func (t *ShareToken) Burn(from crypto.Address, shares *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.burn(from, shares)
}

// BalanceOf implements pool.ShareIssuer.
func (t *ShareToken) BalanceOf(addr crypto.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.balanceOf(addr)
}

// TotalSupply implements pool.ShareIssuer.
func (t *ShareToken) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.book.supply)
}

// Transfer moves shares between holders.
func (t *ShareToken) Transfer(from, to crypto.Address, shares *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locked[from] {
		return ErrAccountLocked
	}
	return t.book.transfer(from, to, shares)
}

// Snapshot implements pool.Journal.
func (t *ShareToken) Snapshot() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.snapshot()
}

// RevertToSnapshot implements pool.Journal.
func (t *ShareToken) RevertToSnapshot(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.book.revertToSnapshot(id)
}

// DiscardSnapshot implements pool.Committer.
func (t *ShareToken) DiscardSnapshot(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.book.discardSnapshot(id)
}

// Export encodes every share balance.
func (t *ShareToken) Export() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.encode()
}

// Import replaces the share balances with an Export result.
func (t *ShareToken) Import(data []byte) error {
	restored, err := decodeBook(data)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.book = restored
	t.mu.Unlock()
	return nil
}
