package bank

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"lendingpool/crypto"
)

var (
	ErrInvalidAmount         = errors.New("bank: amount must be positive")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrZeroAddress           = errors.New("bank: zero address")
	ErrAccountLocked         = errors.New("bank: account may not send")
	ErrUnknownSnapshot       = errors.New("bank: unknown snapshot")
)

type allowanceKey struct {
	owner   crypto.Address
	spender crypto.Address
}

// journalEntry undoes one change to a book.
type journalEntry interface {
	revert(b *book)
}

type balanceChange struct {
	addr crypto.Address
	prev *big.Int
}

func (c balanceChange) revert(b *book) {
	if c.prev == nil {
		delete(b.balances, c.addr)
		return
	}
	b.balances[c.addr] = c.prev
}

type allowanceChange struct {
	key  allowanceKey
	prev *big.Int
}

func (c allowanceChange) revert(b *book) {
	if c.prev == nil {
		delete(b.allowances, c.key)
		return
	}
	b.allowances[c.key] = c.prev
}

type supplyChange struct {
	prev *big.Int
}

func (c supplyChange) revert(b *book) { b.supply = c.prev }

type revision struct {
	id           int
	journalIndex int
}

// book is the balance sheet shared by the asset ledger and the share token.
// Every change is journaled so callers can revert to a snapshot.
type book struct {
	balances   map[crypto.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	supply     *big.Int

	journal      []journalEntry
	revisions    []revision
	nextRevision int
}

func newBook() *book {
	return &book{
		balances:   make(map[crypto.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		supply:     big.NewInt(0),
	}
}

func (b *book) balanceOf(addr crypto.Address) *big.Int {
	if v, ok := b.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (b *book) setBalance(addr crypto.Address, amount *big.Int) {
	b.journal = append(b.journal, balanceChange{addr: addr, prev: b.balances[addr]})
	if amount.Sign() == 0 {
		delete(b.balances, addr)
		return
	}
	b.balances[addr] = amount
}

func (b *book) allowance(owner, spender crypto.Address) *big.Int {
	if v, ok := b.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (b *book) setAllowance(owner, spender crypto.Address, amount *big.Int) {
	key := allowanceKey{owner, spender}
	b.journal = append(b.journal, allowanceChange{key: key, prev: b.allowances[key]})
	if amount.Sign() == 0 {
		delete(b.allowances, key)
		return
	}
	b.allowances[key] = amount
}

func (b *book) setSupply(amount *big.Int) {
	b.journal = append(b.journal, supplyChange{prev: b.supply})
	b.supply = amount
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b *book) transfer(from, to crypto.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	balance := b.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, balance, amount)
	}
	if from == to {
		return nil
	}
	b.setBalance(from, balance.Sub(balance, amount))
	received := b.balanceOf(to)
	b.setBalance(to, received.Add(received, amount))
	return nil
}

func (b *book) mint(to crypto.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	b.setBalance(to, new(big.Int).Add(b.balanceOf(to), amount))
	b.setSupply(new(big.Int).Add(b.supply, amount))
	return nil
}

func (b *book) burn(from crypto.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance := b.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, burning %s", ErrInsufficientBalance, from, balance, amount)
	}
	b.setBalance(from, balance.Sub(balance, amount))
	b.setSupply(new(big.Int).Sub(b.supply, amount))
	return nil
}

func (b *book) snapshot() int {
	id := b.nextRevision
	b.nextRevision++
	b.revisions = append(b.revisions, revision{id: id, journalIndex: len(b.journal)})
	return id
}

func (b *book) revisionIndex(id int) int {
	idx := sort.Search(len(b.revisions), func(i int) bool { return b.revisions[i].id >= id })
	if idx == len(b.revisions) || b.revisions[idx].id != id {
		return -1
	}
	return idx
}

func (b *book) revertToSnapshot(id int) error {
	idx := b.revisionIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownSnapshot, id)
	}
	target := b.revisions[idx].journalIndex
	for i := len(b.journal) - 1; i >= target; i-- {
		b.journal[i].revert(b)
	}
	b.journal = b.journal[:target]
	b.revisions = b.revisions[:idx]
	return nil
}

// discardSnapshot forgets a committed snapshot. The journal is released once no
// snapshot remains open.
func (b *book) discardSnapshot(id int) {
	idx := b.revisionIndex(id)
	if idx < 0 {
		return
	}
	b.revisions = append(b.revisions[:idx], b.revisions[idx+1:]...)
	if len(b.revisions) == 0 {
		b.journal = b.journal[:0]
	}
}

type storedBalance struct {
	Address []byte
	Amount  *big.Int
}

type storedAllowance struct {
	Owner   []byte
	Spender []byte
	Amount  *big.Int
}

type storedBook struct {
	Supply     *big.Int
	Balances   []storedBalance
	Allowances []storedAllowance
}

func (b *book) encode() ([]byte, error) {
	stored := storedBook{Supply: new(big.Int).Set(b.supply)}
	for addr, amount := range b.balances {
		stored.Balances = append(stored.Balances, storedBalance{Address: addr.Bytes(), Amount: new(big.Int).Set(amount)})
	}
	sort.Slice(stored.Balances, func(i, j int) bool {
		return bytes.Compare(stored.Balances[i].Address, stored.Balances[j].Address) < 0
	})
	for key, amount := range b.allowances {
		stored.Allowances = append(stored.Allowances, storedAllowance{
			Owner:   key.owner.Bytes(),
			Spender: key.spender.Bytes(),
			Amount:  new(big.Int).Set(amount),
		})
	}
	sort.Slice(stored.Allowances, func(i, j int) bool {
		if c := bytes.Compare(stored.Allowances[i].Owner, stored.Allowances[j].Owner); c != 0 {
			return c < 0
		}
		return bytes.Compare(stored.Allowances[i].Spender, stored.Allowances[j].Spender) < 0
	})
	return rlp.EncodeToBytes(stored)
}

func decodeBook(data []byte) (*book, error) {
	var stored storedBook
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("bank: decode: %w", err)
	}
	b := newBook()
	sum := big.NewInt(0)
	for _, entry := range stored.Balances {
		if entry.Amount == nil || entry.Amount.Sign() <= 0 {
			continue
		}
		b.balances[crypto.BytesToAddress(entry.Address)] = new(big.Int).Set(entry.Amount)
		sum.Add(sum, entry.Amount)
	}
	for _, entry := range stored.Allowances {
		if entry.Amount == nil || entry.Amount.Sign() <= 0 {
			continue
		}
		key := allowanceKey{owner: crypto.BytesToAddress(entry.Owner), spender: crypto.BytesToAddress(entry.Spender)}
		b.allowances[key] = new(big.Int).Set(entry.Amount)
	}
	if stored.Supply == nil || stored.Supply.Cmp(sum) != 0 {
		return nil, fmt.Errorf("bank: decode: supply %v does not match balances %s", stored.Supply, sum)
	}
	b.supply = new(big.Int).Set(stored.Supply)
	return b, nil
}
