package pool

import (
	"fmt"
	"math/big"

	"lendingpool/crypto"
	nativecommon "lendingpool/native/common"
)

// Deposit pulls value from a lender and mints the shares it buys at the current
// price. The manager must use Stake instead. The minted share count is
// returned.
func (e *Engine) Deposit(caller crypto.Address, value *big.Int) (*big.Int, error) {
	var minted *big.Int
	err := e.transact(func(tx *txn) error {
		if err := e.requireExternal(caller); err != nil {
			return err
		}
		if err := e.guardOpen(tx.ledger); err != nil {
			return err
		}
		if err := requirePositive(value); err != nil {
			return err
		}
		if limit := e.depositable(tx.ledger); value.Cmp(limit) > 0 {
			return fmt.Errorf("%w: %s > %s", ErrDepositLimit, value, limit)
		}
		shares, err := tx.shares.enter(value, tx.balance.TotalFund, false)
		if err != nil {
			return err
		}
		tx.balance.addFunds(value)

		if err := e.assets.TransferFrom(e.poolAddress, caller, e.poolAddress, value); err != nil {
			return fmt.Errorf("pool engine: pull deposit: %w", err)
		}
		if err := e.shares.Mint(caller, shares); err != nil {
			return fmt.Errorf("pool engine: mint shares: %w", err)
		}
		minted = shares
		tx.emit(DepositedEvent(caller, value, shares))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Withdraw redeems value worth of the lender's shares. The exit fee stays in
// the fund; value minus the fee is paid out and returned.
func (e *Engine) Withdraw(caller crypto.Address, value *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := e.transact(func(tx *txn) error {
		if err := e.requireExternal(caller); err != nil {
			return err
		}
		if err := e.guardActive(tx.ledger); err != nil {
			return err
		}
		if err := requirePositive(value); err != nil {
			return err
		}
		held := e.sharesOf(caller)
		if value.Cmp(tx.balance.Liquid) > 0 {
			return fmt.Errorf("%w: %s > liquid %s", ErrInsufficientLiquidity, value, tx.balance.Liquid)
		}
		if worth := tx.valueOf(held); value.Cmp(worth) > 0 {
			return fmt.Errorf("%w: %s > holding worth %s", ErrInsufficientShares, value, worth)
		}
		burned, fee, payout, err := tx.exitFund(value, held, false)
		if err != nil {
			return err
		}

		if err := e.shares.Burn(caller, burned); err != nil {
			return fmt.Errorf("pool engine: burn shares: %w", err)
		}
		if err := e.assets.Transfer(e.poolAddress, caller, payout); err != nil {
			return fmt.Errorf("pool engine: pay withdrawal: %w", err)
		}
		paid = payout
		tx.emit(WithdrawnEvent(caller, payout, burned, fee))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// Stake pulls value from the manager as first-loss capital. The shares are
// escrowed by the pool and raise the pool funds limit.
func (e *Engine) Stake(caller crypto.Address, value *big.Int) (*big.Int, error) {
	var minted *big.Int
	err := e.transact(func(tx *txn) error {
		if err := e.requireManager(caller); err != nil {
			return err
		}
		if err := e.guardOpen(tx.ledger); err != nil {
			return err
		}
		if err := requirePositive(value); err != nil {
			return err
		}
		shares, err := tx.shares.enter(value, tx.balance.TotalFund, true)
		if err != nil {
			return err
		}
		tx.balance.addFunds(value)
		tx.touchManager(caller)

		if err := e.assets.TransferFrom(e.poolAddress, caller, e.poolAddress, value); err != nil {
			return fmt.Errorf("pool engine: pull stake: %w", err)
		}
		if err := e.shares.Mint(e.poolAddress, shares); err != nil {
			return fmt.Errorf("pool engine: mint stake shares: %w", err)
		}
		minted = shares
		tx.emit(StakedEvent(caller, value, shares))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Unstake returns up to Unstakable of the manager's stake. The exit fee
// applies as it does for lenders.
func (e *Engine) Unstake(caller crypto.Address, value *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := e.transact(func(tx *txn) error {
		if err := e.requireManager(caller); err != nil {
			return err
		}
		if err := e.guardActive(tx.ledger); err != nil {
			return err
		}
		if err := requirePositive(value); err != nil {
			return err
		}
		if limit := e.unstakable(tx.ledger); value.Cmp(limit) > 0 {
			return fmt.Errorf("%w: %s > unstakable %s", ErrInsufficientLiquidity, value, limit)
		}
		burned, fee, payout, err := tx.exitFund(value, tx.shares.Staked, true)
		if err != nil {
			return err
		}
		tx.touchManager(caller)

		if err := e.shares.Burn(e.poolAddress, burned); err != nil {
			return fmt.Errorf("pool engine: burn stake shares: %w", err)
		}
		if err := e.assets.Transfer(e.poolAddress, caller, payout); err != nil {
			return fmt.Errorf("pool engine: pay unstake: %w", err)
		}
		paid = payout
		tx.emit(UnstakedEvent(caller, payout, burned, fee))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// exitFund burns the shares worth value and releases value minus the exit fee
// from liquidity. The fee is retained in the fund.
func (l *ledger) exitFund(value, holdable *big.Int, staked bool) (burned, fee, payout *big.Int, err error) {
	burned, err = l.shares.exit(value, l.balance.TotalFund, holdable, staked)
	if err != nil {
		return nil, nil, nil, err
	}
	fee = l.rates.ExitFeePercent.Of(value)
	payout = new(big.Int).Sub(value, fee)
	if err := l.balance.removeFunds(payout); err != nil {
		return nil, nil, nil, err
	}
	return burned, fee, payout, nil
}

// WithdrawProtocolEarnings pays the caller's whole protocol earnings entry.
func (e *Engine) WithdrawProtocolEarnings(caller crypto.Address) (*big.Int, error) {
	var paid *big.Int
	err := e.transact(func(tx *txn) error {
		if err := e.requireNotPool(caller); err != nil {
			return err
		}
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		amount := tx.balance.protocolRevenueOf(caller)
		if amount.Sign() == 0 {
			return fmt.Errorf("%w: no protocol earnings for %s", ErrNothingToWithdraw, caller)
		}
		delete(tx.balance.ProtocolRevenue, caller)
		if err := tx.balance.pay(amount); err != nil {
			return err
		}

		if err := e.assets.Transfer(e.poolAddress, caller, amount); err != nil {
			return fmt.Errorf("pool engine: pay protocol earnings: %w", err)
		}
		paid = amount
		tx.emit(ProtocolEarningsWithdrawnEvent(caller, amount))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// WithdrawManagerRevenue pays the whole manager revenue buffer to the manager.
func (e *Engine) WithdrawManagerRevenue(caller crypto.Address) (*big.Int, error) {
	var paid *big.Int
	err := e.transact(func(tx *txn) error {
		if err := e.requireManager(caller); err != nil {
			return err
		}
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		amount := newBigInt(tx.balance.ManagerRevenue)
		if amount.Sign() == 0 {
			return fmt.Errorf("%w: manager revenue empty", ErrNothingToWithdraw)
		}
		tx.balance.ManagerRevenue = big.NewInt(0)
		if err := tx.balance.pay(amount); err != nil {
			return err
		}
		tx.touchManager(caller)

		if err := e.assets.Transfer(e.poolAddress, caller, amount); err != nil {
			return fmt.Errorf("pool engine: pay manager revenue: %w", err)
		}
		paid = amount
		tx.emit(ManagerRevenueWithdrawnEvent(caller, amount))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
