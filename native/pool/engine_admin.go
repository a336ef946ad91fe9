package pool

import (
	"fmt"

	"lendingpool/crypto"
)

// Status values carried by StatusChangedEvent.
const (
	StatusPaused   = "paused"
	StatusUnpaused = "unpaused"
	StatusClosed   = "closed"
	StatusOpened   = "opened"
)

func (e *Engine) setRate(caller crypto.Address, field string, value Percent, authorize func(tx *txn) error, apply func(rates *RateConfig, value Percent) error) error {
	return e.transact(func(tx *txn) error {
		if err := authorize(tx); err != nil {
			return err
		}
		if err := apply(&tx.rates, value); err != nil {
			return err
		}
		tx.touchManager(caller)
		tx.emit(RatesUpdatedEvent(caller, field, value))
		return nil
	})
}

func (e *Engine) governanceOnly(caller crypto.Address) func(*txn) error {
	return func(*txn) error { return e.requireGovernance(caller) }
}

func (e *Engine) managerOrDelegate(caller crypto.Address) func(*txn) error {
	return func(tx *txn) error { return e.requireManagerOrDelegate(tx, caller) }
}

// SetTargetStakePercent changes the stake target. Governance only.
func (e *Engine) SetTargetStakePercent(caller crypto.Address, p Percent) error {
	return e.setRate(caller, "targetStakePercent", p, e.governanceOnly(caller), (*RateConfig).setTargetStakePercent)
}

// SetProtocolEarningPercent changes the protocol cut of interest. Governance
// only.
func (e *Engine) SetProtocolEarningPercent(caller crypto.Address, p Percent) error {
	return e.setRate(caller, "protocolEarningPercent", p, e.governanceOnly(caller), (*RateConfig).setProtocolEarningPercent)
}

// SetManagerEarnFactorMax changes the earn factor ceiling and clamps the
// current factor to it. Governance only.
func (e *Engine) SetManagerEarnFactorMax(caller crypto.Address, p Percent) error {
	return e.setRate(caller, "managerEarnFactorMax", p, e.governanceOnly(caller), (*RateConfig).setManagerEarnFactorMax)
}

// SetTargetLiquidityPercent changes the liquidity reserve kept out of offers.
func (e *Engine) SetTargetLiquidityPercent(caller crypto.Address, p Percent) error {
	return e.setRate(caller, "targetLiquidityPercent", p, e.managerOrDelegate(caller), (*RateConfig).setTargetLiquidityPercent)
}

// SetManagerEarnFactor changes the leverage applied to the manager's stake
// ratio.
func (e *Engine) SetManagerEarnFactor(caller crypto.Address, p Percent) error {
	return e.setRate(caller, "managerEarnFactor", p, e.managerOrDelegate(caller), (*RateConfig).setManagerEarnFactor)
}

// Pause stops deposits, withdrawals, stake changes and new loans. Settlement
// hooks keep working so outstanding loans can be accounted for.
func (e *Engine) Pause(caller crypto.Address) error {
	return e.setStatus(caller, StatusPaused, e.governanceOnly(caller), func(tx *txn) error {
		tx.paused = true
		return nil
	})
}

// Unpause lifts Pause.
func (e *Engine) Unpause(caller crypto.Address) error {
	return e.setStatus(caller, StatusUnpaused, e.governanceOnly(caller), func(tx *txn) error {
		tx.paused = false
		return nil
	})
}

// Close stops new deposits, stake and offers. It requires the policy's
// consent, which by default means no value is allocated or out on loans.
func (e *Engine) Close(caller crypto.Address) error {
	return e.setStatus(caller, StatusClosed, e.managerOrDelegate(caller), func(tx *txn) error {
		if tx.closed {
			return ErrPoolClosed
		}
		if !e.policy.CanClose(tx.view()) {
			return ErrPoolNotClosable
		}
		tx.closed = true
		return nil
	})
}

// Open reopens a closed pool.
func (e *Engine) Open(caller crypto.Address) error {
	return e.setStatus(caller, StatusOpened, e.managerOrDelegate(caller), func(tx *txn) error {
		if !tx.closed {
			return fmt.Errorf("%w: pool is already open", ErrInvalidConfig)
		}
		tx.closed = false
		return nil
	})
}

func (e *Engine) setStatus(caller crypto.Address, status string, authorize, apply func(tx *txn) error) error {
	return e.transact(func(tx *txn) error {
		if err := authorize(tx); err != nil {
			return err
		}
		if err := apply(tx); err != nil {
			return err
		}
		tx.touchManager(caller)
		tx.emit(StatusChangedEvent(caller, status))
		return nil
	})
}

// SetTreasury redirects future protocol earnings. Earnings already accrued
// stay claimable by the previous beneficiary. Governance only.
func (e *Engine) SetTreasury(caller, treasury crypto.Address) error {
	return e.transact(func(tx *txn) error {
		if err := e.requireGovernance(caller); err != nil {
			return err
		}
		if treasury.IsZero() {
			return fmt.Errorf("%w: treasury required", ErrInvalidConfig)
		}
		if treasury == e.poolAddress {
			return fmt.Errorf("%w: treasury must differ from the pool account", ErrInvalidConfig)
		}
		tx.treasury = treasury
		tx.emit(TreasuryUpdatedEvent(treasury))
		return nil
	})
}

// AuthorizeOriginator admits a loan originator to the settlement hooks.
func (e *Engine) AuthorizeOriginator(caller, originator crypto.Address) error {
	return e.setOriginator(caller, originator, true)
}

// RevokeOriginator removes a loan originator. Loans it already funded keep
// their status but can no longer be settled by it.
func (e *Engine) RevokeOriginator(caller, originator crypto.Address) error {
	return e.setOriginator(caller, originator, false)
}

func (e *Engine) setOriginator(caller, originator crypto.Address, authorized bool) error {
	return e.transact(func(tx *txn) error {
		if err := e.requireGovernance(caller); err != nil {
			return err
		}
		if originator.IsZero() {
			return fmt.Errorf("%w: zero originator", ErrInvalidConfig)
		}
		if authorized && originator == e.poolAddress {
			return fmt.Errorf("%w: originator must differ from the pool account", ErrInvalidConfig)
		}
		if authorized {
			tx.originators[originator] = true
		} else {
			delete(tx.originators, originator)
		}
		tx.emit(OriginatorUpdatedEvent(originator, authorized))
		return nil
	})
}
