package pool

import (
	"fmt"
	"math/big"

	"lendingpool/crypto"
)

// OnOffer reserves amount of strategy liquidity for a new loan offer.
func (e *Engine) OnOffer(originator crypto.Address, amount *big.Int) error {
	return e.transact(func(tx *txn) error {
		if err := e.requireOriginator(tx.ledger, originator); err != nil {
			return err
		}
		if err := e.guardOpen(tx.ledger); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		if available := tx.strategyLiquidity(); available.Cmp(amount) < 0 {
			return fmt.Errorf("%w: offer %s > strategy liquidity %s", ErrInsufficientLiquidity, amount, available)
		}
		if err := tx.balance.allocate(amount); err != nil {
			return err
		}
		tx.emit(OfferAllocatedEvent(originator, amount))
		return nil
	})
}

// OnOfferUpdate moves an offer's reservation from previous to next. A next of
// zero releases a cancelled offer entirely.
func (e *Engine) OnOfferUpdate(originator crypto.Address, previous, next *big.Int) error {
	return e.transact(func(tx *txn) error {
		if err := e.requireOriginator(tx.ledger, originator); err != nil {
			return err
		}
		previous, next := newBigInt(previous), newBigInt(next)
		if previous.Sign() < 0 || next.Sign() < 0 {
			return ErrInvalidAmount
		}
		switch next.Cmp(previous) {
		case 1:
			if err := e.guardOpen(tx.ledger); err != nil {
				return err
			}
			delta := new(big.Int).Sub(next, previous)
			if available := tx.strategyLiquidity(); available.Cmp(delta) < 0 {
				return fmt.Errorf("%w: offer increase %s > strategy liquidity %s", ErrInsufficientLiquidity, delta, available)
			}
			if err := tx.balance.allocate(delta); err != nil {
				return err
			}
		case -1:
			if err := tx.balance.deallocate(new(big.Int).Sub(previous, next)); err != nil {
				return err
			}
		}
		tx.emit(OfferUpdatedEvent(originator, previous, next))
		return nil
	})
}

// OnBorrow releases amount of an allocated offer to the borrower. Each loan
// may be funded once.
func (e *Engine) OnBorrow(originator crypto.Address, loanID uint64, borrower crypto.Address, amount *big.Int, apr Percent) error {
	return e.transact(func(tx *txn) error {
		if err := e.requireOriginator(tx.ledger, originator); err != nil {
			return err
		}
		if err := e.guardActive(tx.ledger); err != nil {
			return err
		}
		key := LoanKey{Originator: originator, LoanID: loanID}
		if tx.loans[key].Released() {
			return fmt.Errorf("%w: %s", ErrLoanAlreadyFunded, key)
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		if err := e.requireNotPool(borrower); err != nil {
			return err
		}
		if amount.Cmp(tx.balance.Allocated) > 0 {
			return fmt.Errorf("%w: borrow %s > allocated %s", ErrInsufficientLiquidity, amount, tx.balance.Allocated)
		}
		if err := tx.balance.release(amount); err != nil {
			return err
		}
		tx.addStrategyAPR(amount, apr)
		tx.loans[key] = LoanStatusFunded

		if err := e.assets.Transfer(e.poolAddress, borrower, amount); err != nil {
			return fmt.Errorf("pool engine: fund loan %s: %w", key, err)
		}
		tx.emit(LoanFundedEvent(key, borrower, amount, apr))
		return nil
	})
}

// Repayment describes one loan payment as settled by the originator.
type Repayment struct {
	LoanID   uint64
	Borrower crypto.Address
	// Payer is the account the transfer is pulled from.
	Payer crypto.Address
	APR   Percent
	// TransferAmount is the cash pulled from the payer. It may differ from
	// PaymentAmount when part of the payment was carried elsewhere.
	TransferAmount *big.Int
	// PaymentAmount is the principal plus interest being settled.
	PaymentAmount *big.Int
	// InterestPayable is the interest part of PaymentAmount.
	InterestPayable *big.Int
}

// OnRepay settles a repayment: the principal returns to liquidity and the
// interest is split between the protocol, the manager and the lenders.
func (e *Engine) OnRepay(originator crypto.Address, r Repayment) (YieldSplit, error) {
	var split YieldSplit
	err := e.transact(func(tx *txn) error {
		if err := e.requireOriginator(tx.ledger, originator); err != nil {
			return err
		}
		key := LoanKey{Originator: originator, LoanID: r.LoanID}
		if err := requireOpenLoan(tx.loans[key], key); err != nil {
			return err
		}
		if err := e.requireNotPool(r.Payer); err != nil {
			return err
		}
		payment := newBigInt(r.PaymentAmount)
		interest := newBigInt(r.InterestPayable)
		transfer := newBigInt(r.TransferAmount)
		if payment.Sign() <= 0 || interest.Sign() < 0 || transfer.Sign() < 0 {
			return ErrInvalidAmount
		}
		if interest.Cmp(payment) > 0 {
			return fmt.Errorf("%w: interest %s exceeds payment %s", ErrInvalidAmount, interest, payment)
		}
		principal := new(big.Int).Sub(payment, interest)

		split = splitYield(interest, tx.rates.ProtocolEarningPercent, tx.rates.ManagerEarnFactor, tx.shares)
		if err := tx.balance.reclaim(principal); err != nil {
			return err
		}
		tx.removeStrategyAPR(principal, r.APR)
		tx.balance.realizeYield(split.Lender)
		if split.Protocol.Sign() > 0 {
			tx.balance.ProtocolRevenue[tx.treasury] = increase(tx.balance.protocolRevenueOf(tx.treasury), split.Protocol)
		}
		tx.balance.ManagerRevenue = increase(tx.balance.ManagerRevenue, split.Manager)
		tx.balance.receive(transfer)

		if transfer.Sign() > 0 {
			if err := e.assets.TransferFrom(e.poolAddress, r.Payer, e.poolAddress, transfer); err != nil {
				return fmt.Errorf("pool engine: collect repayment %s: %w", key, err)
			}
		}
		tx.emit(LoanRepaidEvent(key, r.Payer, principal, split))
		return nil
	})
	if err != nil {
		return YieldSplit{}, err
	}
	return split, nil
}

// OnCloseLoan closes a funded loan and runs the loss waterfall against the
// part of the loan that will never be repaid. amountRepaid is the principal
// already settled through OnRepay; it is reported, not moved again. The
// value reimbursed by the manager's revenue and stake is returned.
func (e *Engine) OnCloseLoan(originator crypto.Address, loanID uint64, apr Percent, amountRepaid, remainingDifference *big.Int) (*big.Int, error) {
	var outcome ShortfallOutcome
	err := e.transact(func(tx *txn) error {
		if err := e.requireOriginator(tx.ledger, originator); err != nil {
			return err
		}
		key := LoanKey{Originator: originator, LoanID: loanID}
		if err := requireOpenLoan(tx.loans[key], key); err != nil {
			return err
		}
		shortfall := newBigInt(remainingDifference)
		if shortfall.Sign() < 0 || newBigInt(amountRepaid).Sign() < 0 {
			return ErrInvalidAmount
		}
		hadStake := tx.shares.Staked.Sign() > 0
		out, err := tx.absorbShortfall(shortfall)
		if err != nil {
			return err
		}
		tx.removeStrategyAPR(shortfall, apr)
		tx.loans[key] = LoanStatusClosed

		if out.StakeSharesBurned.Sign() > 0 {
			if err := e.shares.Burn(e.poolAddress, out.StakeSharesBurned); err != nil {
				return fmt.Errorf("pool engine: burn stake shares: %w", err)
			}
		}
		outcome = out
		tx.emit(LoanClosedEvent(key, newBigInt(amountRepaid), out))
		if out.Socialized.Sign() > 0 {
			tx.emit(LossSocializedEvent(key, out.Socialized))
		}
		if hadStake && tx.shares.Staked.Sign() == 0 {
			tx.emit(StakeDepletedEvent(key))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome.Reimbursed(), nil
}

// OnDefault writes off a defaulted loan. carryAmountUsed was already collected
// and returns to liquidity; loss is written down with the manager's stake
// absorbing it first. The loss attributed to the manager and to lenders is
// returned.
func (e *Engine) OnDefault(originator crypto.Address, loanID uint64, apr Percent, carryAmountUsed, loss *big.Int) (managerLoss, lenderLoss *big.Int, err error) {
	var outcome DefaultOutcome
	err = e.transact(func(tx *txn) error {
		if err := e.requireOriginator(tx.ledger, originator); err != nil {
			return err
		}
		key := LoanKey{Originator: originator, LoanID: loanID}
		if err := requireOpenLoan(tx.loans[key], key); err != nil {
			return err
		}
		carry, written := newBigInt(carryAmountUsed), newBigInt(loss)
		if carry.Sign() < 0 || written.Sign() < 0 {
			return ErrInvalidAmount
		}
		if err := tx.balance.reclaim(carry); err != nil {
			return err
		}
		out, err := tx.absorbDefault(written)
		if err != nil {
			return err
		}
		tx.removeStrategyAPR(new(big.Int).Add(carry, written), apr)
		tx.loans[key] = LoanStatusDefaulted

		if out.StakeSharesBurned.Sign() > 0 {
			if err := e.shares.Burn(e.poolAddress, out.StakeSharesBurned); err != nil {
				return fmt.Errorf("pool engine: burn stake shares: %w", err)
			}
		}
		outcome = out
		tx.emit(LoanDefaultedEvent(key, carry, out))
		if out.LenderLoss.Sign() > 0 {
			tx.emit(LossSocializedEvent(key, out.LenderLoss))
		}
		if out.StakeDepleted {
			tx.emit(StakeDepletedEvent(key))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outcome.ManagerLoss, outcome.LenderLoss, nil
}
