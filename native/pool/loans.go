package pool

import (
	"fmt"

	"lendingpool/crypto"
)

// LoanKey identifies a loan by the originator that reported it and the
// originator's own loan identifier.
type LoanKey struct {
	Originator crypto.Address
	LoanID     uint64
}

func (k LoanKey) String() string {
	return fmt.Sprintf("%s/%d", k.Originator, k.LoanID)
}

// LoanStatus is the bookkeeping state of a loan as observed by the pool.
// Offers are tracked in aggregate only, so an unknown loan reads as
// LoanStatusNone.
type LoanStatus uint8

const (
	LoanStatusNone LoanStatus = iota
	// LoanStatusFunded means the funds were released to the borrower.
	LoanStatusFunded
	// LoanStatusClosed is terminal: closed with the shortfall absorbed.
	LoanStatusClosed
	// LoanStatusDefaulted is terminal: the loss was written down.
	LoanStatusDefaulted
)

func (s LoanStatus) String() string {
	switch s {
	case LoanStatusFunded:
		return "funded"
	case LoanStatusClosed:
		return "closed"
	case LoanStatusDefaulted:
		return "defaulted"
	default:
		return "none"
	}
}

// Released reports whether the loan's funds have left the pool.
func (s LoanStatus) Released() bool { return s != LoanStatusNone }

// Terminal reports whether no further settlement hook may touch the loan.
func (s LoanStatus) Terminal() bool {
	return s == LoanStatusClosed || s == LoanStatusDefaulted
}

// requireOpenLoan enforces the guard shared by repay, close and default.
func requireOpenLoan(status LoanStatus, key LoanKey) error {
	if !status.Released() {
		return fmt.Errorf("%w: %s", ErrLoanNotFunded, key)
	}
	if status.Terminal() {
		return fmt.Errorf("%w: %s", ErrLoanClosed, key)
	}
	return nil
}
