package bank

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"lendingpool/crypto"
)

// TransferHook observes a committed transfer. It runs after the ledger lock is
// released, so it may call back into the ledger or into a pool.
type TransferHook func(from, to crypto.Address, amount *big.Int)

// Ledger is an in-memory fungible asset with ERC-20 style allowances. It backs
// pool custody in the daemon and in tests, and journals every change so a
// failed pool operation can revert it.
type Ledger struct {
	mu       sync.Mutex
	symbol   string
	decimals uint8
	book     *book
	hook     TransferHook
}

// NewLedger constructs an empty asset ledger.
func NewLedger(symbol string, decimals uint8) *Ledger {
	return &Ledger{
		symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		decimals: decimals,
		book:     newBook(),
	}
}

// Symbol returns the asset ticker.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the number of decimal places of the smallest unit.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// SetTransferHook installs fn to observe committed transfers.
func (l *Ledger) SetTransferHook(fn TransferHook) {
	l.mu.Lock()
	l.hook = fn
	l.mu.Unlock()
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr crypto.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.book.balanceOf(addr)
}

// TotalSupply returns the sum of every balance.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.book.supply)
}

// Allowance returns what spender may still move out of owner's balance.
func (l *Ledger) Allowance(owner, spender crypto.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.book.allowance(owner, spender)
}

// Approve sets the allowance of spender over owner's balance. A zero amount
// revokes it.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender.IsZero() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.book.setAllowance(owner, spender, new(big.Int).Set(amount))
	return nil
}

// Mint credits new units to addr. The daemon uses it as a development faucet.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.book.mint(to, amount)
}

// Transfer moves amount from from's own balance to to.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	l.mu.Lock()
	err := l.book.transfer(from, to, amount)
	hook := l.hook
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(from, to, amount)
	}
	return nil
}

// TransferFrom moves amount from from to to, consuming spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	l.mu.Lock()
	err := l.transferFromLocked(spender, from, to, amount)
	hook := l.hook
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(from, to, amount)
	}
	return nil
}

func (l *Ledger) transferFromLocked(spender, from, to crypto.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	allowed := l.book.allowance(from, spender)
	if spender != from && allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s may move %s of %s, needs %s", ErrInsufficientAllowance, spender, allowed, from, amount)
	}
	if err := l.book.transfer(from, to, amount); err != nil {
		return err
	}
	if spender != from {
		l.book.setAllowance(from, spender, allowed.Sub(allowed, amount))
	}
	return nil
}

// Snapshot implements pool.Journal.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.book.snapshot()
}

// RevertToSnapshot implements pool.Journal. Unknown ids are ignored.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.book.revertToSnapshot(id)
}

// DiscardSnapshot implements pool.Committer.
func (l *Ledger) DiscardSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.book.discardSnapshot(id)
}

// Export encodes every balance and allowance.
func (l *Ledger) Export() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.book.encode()
}

// Import replaces the ledger contents with an Export result and drops any open
// snapshots.
func (l *Ledger) Import(data []byte) error {
	restored, err := decodeBook(data)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.book = restored
	l.mu.Unlock()
	return nil
}
