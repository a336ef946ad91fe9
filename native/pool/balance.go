package pool

import (
	"fmt"
	"math/big"
	"sort"

	"lendingpool/crypto"
)

// Balance captures the value buckets of a pool. Amounts are denominated in the
// smallest unit of the custody asset.
type Balance struct {
	// Custody is the asset amount the pool's account actually holds.
	Custody *big.Int
	// Liquid is value immediately available for offers and withdrawals.
	Liquid *big.Int
	// Allocated is value reserved against loan offers not yet drawn.
	Allocated *big.Int
	// Strategized is value currently out on funded loans.
	Strategized *big.Int
	// TotalFund is the nominal fund value; always Liquid+Allocated+Strategized.
	TotalFund *big.Int
	// ManagerRevenue is accrued manager interest not yet withdrawn. It is
	// spent as first-loss capital before the manager's stake.
	ManagerRevenue *big.Int
	// ProtocolRevenue maps beneficiaries to their accrued protocol earnings.
	ProtocolRevenue map[crypto.Address]*big.Int
}

func newBalance() *Balance {
	return &Balance{
		Custody:         big.NewInt(0),
		Liquid:          big.NewInt(0),
		Allocated:       big.NewInt(0),
		Strategized:     big.NewInt(0),
		TotalFund:       big.NewInt(0),
		ManagerRevenue:  big.NewInt(0),
		ProtocolRevenue: make(map[crypto.Address]*big.Int),
	}
}

// Clone returns a deep copy of the balance.
func (b *Balance) Clone() *Balance {
	if b == nil {
		return nil
	}
	clone := &Balance{
		Custody:         newBigInt(b.Custody),
		Liquid:          newBigInt(b.Liquid),
		Allocated:       newBigInt(b.Allocated),
		Strategized:     newBigInt(b.Strategized),
		TotalFund:       newBigInt(b.TotalFund),
		ManagerRevenue:  newBigInt(b.ManagerRevenue),
		ProtocolRevenue: make(map[crypto.Address]*big.Int, len(b.ProtocolRevenue)),
	}
	for addr, amount := range b.ProtocolRevenue {
		clone.ProtocolRevenue[addr] = newBigInt(amount)
	}
	return clone
}

// ProtocolRevenueTotal sums the protocol revenue owed to every beneficiary.
func (b *Balance) ProtocolRevenueTotal() *big.Int {
	total := big.NewInt(0)
	for _, amount := range b.ProtocolRevenue {
		total.Add(total, amount)
	}
	return total
}

func (b *Balance) protocolRevenueOf(addr crypto.Address) *big.Int {
	return newBigInt(b.ProtocolRevenue[addr])
}

func (b *Balance) beneficiaries() []crypto.Address {
	out := make([]crypto.Address, 0, len(b.ProtocolRevenue))
	for addr := range b.ProtocolRevenue {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}

// addFunds records value entering custody as fresh liquidity.
func (b *Balance) addFunds(value *big.Int) {
	b.Custody = increase(b.Custody, value)
	b.Liquid = increase(b.Liquid, value)
	b.TotalFund = increase(b.TotalFund, value)
}

// removeFunds records value leaving custody out of liquidity.
func (b *Balance) removeFunds(value *big.Int) error {
	liquid, err := decrease(b.Liquid, value, "liquid")
	if err != nil {
		return err
	}
	fund, err := decrease(b.TotalFund, value, "total fund")
	if err != nil {
		return err
	}
	custody, err := decrease(b.Custody, value, "custody")
	if err != nil {
		return err
	}
	b.Liquid, b.TotalFund, b.Custody = liquid, fund, custody
	return nil
}

// allocate reserves liquidity for a loan offer.
func (b *Balance) allocate(amount *big.Int) error {
	liquid, err := decrease(b.Liquid, amount, "liquid")
	if err != nil {
		return err
	}
	b.Liquid = liquid
	b.Allocated = increase(b.Allocated, amount)
	return nil
}

// deallocate returns reserved value back to liquidity.
func (b *Balance) deallocate(amount *big.Int) error {
	allocated, err := decrease(b.Allocated, amount, "allocated")
	if err != nil {
		return err
	}
	b.Allocated = allocated
	b.Liquid = increase(b.Liquid, amount)
	return nil
}

// release moves allocated value onto a funded loan; the value leaves custody.
func (b *Balance) release(amount *big.Int) error {
	allocated, err := decrease(b.Allocated, amount, "allocated")
	if err != nil {
		return err
	}
	custody, err := decrease(b.Custody, amount, "custody")
	if err != nil {
		return err
	}
	b.Allocated, b.Custody = allocated, custody
	b.Strategized = increase(b.Strategized, amount)
	return nil
}

// reclaim moves strategized value back into liquidity without changing the
// fund value.
func (b *Balance) reclaim(amount *big.Int) error {
	strategized, err := decrease(b.Strategized, amount, "strategized")
	if err != nil {
		return err
	}
	b.Strategized = strategized
	b.Liquid = increase(b.Liquid, amount)
	return nil
}

// writeDown removes strategized value from the fund. Shares are untouched, so
// the share price drops for every holder.
func (b *Balance) writeDown(loss *big.Int) error {
	strategized, err := decrease(b.Strategized, loss, "strategized")
	if err != nil {
		return err
	}
	fund, err := decrease(b.TotalFund, loss, "total fund")
	if err != nil {
		return err
	}
	b.Strategized, b.TotalFund = strategized, fund
	return nil
}

func (b *Balance) checkInvariant() error {
	for name, v := range map[string]*big.Int{
		"custody":         b.Custody,
		"liquid":          b.Liquid,
		"allocated":       b.Allocated,
		"strategized":     b.Strategized,
		"total fund":      b.TotalFund,
		"manager revenue": b.ManagerRevenue,
	} {
		if v == nil || v.Sign() < 0 {
			return fmt.Errorf("%w: %s bucket negative or unset", ErrInvariantViolation, name)
		}
	}
	sum := new(big.Int).Add(b.Liquid, b.Allocated)
	sum.Add(sum, b.Strategized)
	if sum.Cmp(b.TotalFund) != 0 {
		return fmt.Errorf("%w: total fund %s != liquid+allocated+strategized %s", ErrInvariantViolation, b.TotalFund, sum)
	}
	return nil
}

// receive records cash entering custody outside the fund buckets.
func (b *Balance) receive(amount *big.Int) {
	b.Custody = increase(b.Custody, amount)
}

// pay records cash leaving custody outside the fund buckets.
func (b *Balance) pay(amount *big.Int) error {
	custody, err := decrease(b.Custody, amount, "custody")
	if err != nil {
		return err
	}
	b.Custody = custody
	return nil
}

// realizeYield grows the fund by lender interest that arrived as liquidity.
func (b *Balance) realizeYield(amount *big.Int) {
	b.Liquid = increase(b.Liquid, amount)
	b.TotalFund = increase(b.TotalFund, amount)
}
