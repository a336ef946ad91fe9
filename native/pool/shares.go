package pool

import (
	"fmt"
	"math/big"
)

// ShareLedger tracks the claim-share counters of a pool and converts between
// value and shares at the current fund/share ratio.
type ShareLedger struct {
	// Total is every claim-share outstanding, staked shares included.
	Total *big.Int
	// Staked is the subset held by the pool on the manager's behalf as
	// first-loss capital. Staked <= Total always.
	Staked *big.Int
}

func newShareLedger() *ShareLedger {
	return &ShareLedger{Total: big.NewInt(0), Staked: big.NewInt(0)}
}

// Clone returns a deep copy of the share ledger.
func (s *ShareLedger) Clone() *ShareLedger {
	if s == nil {
		return nil
	}
	return &ShareLedger{Total: newBigInt(s.Total), Staked: newBigInt(s.Staked)}
}

// Lender returns the shares held outside the manager's stake.
func (s *ShareLedger) Lender() *big.Int {
	return saturatingSub(s.Total, s.Staked)
}

// ValueOf converts shares to value: floor(shares*fund/total).
func (s *ShareLedger) ValueOf(shares, fund *big.Int) *big.Int {
	if !isPositive(shares) || !isPositive(fund) || !isPositive(s.Total) {
		return big.NewInt(0)
	}
	return mulDiv(shares, fund, s.Total)
}

// SharesFor converts value to shares. An empty ledger issues shares 1:1; a
// ledger whose fund has been written down to zero prices existing shares at
// the smallest unit so new entrants are not diluted to nothing.
func (s *ShareLedger) SharesFor(value, fund *big.Int) *big.Int {
	if !isPositive(value) {
		return big.NewInt(0)
	}
	if !isPositive(s.Total) {
		return newBigInt(value)
	}
	if !isPositive(fund) {
		return new(big.Int).Mul(value, s.Total)
	}
	return mulDiv(value, s.Total, fund)
}

// enter issues shares for value using the pre-mutation fund. Staked entries
// are escrowed on the manager's behalf.
func (s *ShareLedger) enter(value, fund *big.Int, staked bool) (*big.Int, error) {
	if !isPositive(value) {
		return nil, ErrInvalidAmount
	}
	shares := s.SharesFor(value, fund)
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s buys no shares", ErrInvalidAmount, value)
	}
	s.Total = increase(s.Total, shares)
	if staked {
		s.Staked = increase(s.Staked, shares)
	}
	return shares, nil
}

// exit burns the shares worth value. holdable bounds the burn: a wallet balance
// for lenders, the staked counter for the manager.
func (s *ShareLedger) exit(value, fund, holdable *big.Int, staked bool) (*big.Int, error) {
	if !isPositive(value) {
		return nil, ErrInvalidAmount
	}
	shares := s.SharesFor(value, fund)
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s redeems no shares", ErrInvalidAmount, value)
	}
	if staked && holdable.Cmp(s.Staked) > 0 {
		holdable = s.Staked
	}
	if shares.Cmp(holdable) > 0 {
		return nil, fmt.Errorf("%w: need %s, hold %s", ErrInsufficientShares, shares, holdable)
	}
	if err := s.burn(shares, staked); err != nil {
		return nil, err
	}
	return shares, nil
}

// burnStaked removes escrowed stake shares without paying anything out.
func (s *ShareLedger) burnStaked(shares *big.Int) error {
	return s.burn(shares, true)
}

func (s *ShareLedger) burn(shares *big.Int, staked bool) error {
	total, err := decrease(s.Total, shares, "total shares")
	if err != nil {
		return err
	}
	if staked {
		stakedLeft, err := decrease(s.Staked, shares, "staked shares")
		if err != nil {
			return err
		}
		s.Staked = stakedLeft
	}
	s.Total = total
	return nil
}

func (s *ShareLedger) checkInvariant() error {
	if s.Total == nil || s.Staked == nil || s.Total.Sign() < 0 || s.Staked.Sign() < 0 {
		return fmt.Errorf("%w: share counters negative or unset", ErrInvariantViolation)
	}
	if s.Staked.Cmp(s.Total) > 0 {
		return fmt.Errorf("%w: staked shares %s exceed total %s", ErrInvariantViolation, s.Staked, s.Total)
	}
	return nil
}
