package pool

import (
	"fmt"
	"math/big"

	"lendingpool/crypto"
	nativecommon "lendingpool/native/common"
)

// Stats returns a copy of the committed accounting state.
func (e *Engine) Stats() Stats { return statsOf(e.state) }

// SharesOf returns the claim-shares held by addr on the share issuer.
func (e *Engine) SharesOf(addr crypto.Address) *big.Int { return e.sharesOf(addr) }

// IsManagerInactive reports whether the manager has been idle for longer than
// the inactivity grace period.
func (e *Engine) IsManagerInactive() bool { return e.managerInactive(e.state) }

var _ View = (*Engine)(nil)

func (e *Engine) depositable(st *ledger) *big.Int {
	if e.isPaused(st) || st.closed {
		return big.NewInt(0)
	}
	return saturatingSub(st.poolFundsLimit, st.balance.TotalFund)
}

// Depositable is the value lenders may still deposit before the pool funds
// limit is reached.
func (e *Engine) Depositable() *big.Int { return e.depositable(e.state) }

// Withdrawable is the value wallet may withdraw right now, before the exit fee.
func (e *Engine) Withdrawable(wallet crypto.Address) *big.Int {
	if e.isPaused(e.state) {
		return big.NewInt(0)
	}
	return minBig(e.state.balance.Liquid, e.state.valueOf(e.sharesOf(wallet)))
}

// Stakable is the value the manager could stake from its wallet.
func (e *Engine) Stakable() *big.Int {
	if e.isPaused(e.state) || e.state.closed {
		return big.NewInt(0)
	}
	return newBigInt(e.assets.BalanceOf(e.manager))
}

func (e *Engine) unstakable(st *ledger) *big.Int {
	target := st.rates.TargetStakePercent
	lenderShares := st.shares.Lender()
	if e.isPaused(st) || (target >= OneHundredPercent && lenderShares.Sign() > 0) {
		return big.NewInt(0)
	}
	if st.closed || lenderShares.Sign() == 0 {
		return minBig(st.balance.Liquid, st.valueOf(st.shares.Staked))
	}
	locked := mulDiv(lenderShares, target.Big(), (OneHundredPercent - target).Big())
	free := saturatingSub(st.shares.Staked, locked)
	return minBig(st.balance.Liquid, st.valueOf(free))
}

// Unstakable is the stake value the manager may withdraw without pushing the
// staked fraction of the remaining shares below target.
func (e *Engine) Unstakable() *big.Int { return e.unstakable(e.state) }

// StrategyLiquidity is the liquid value available for new loan offers.
func (e *Engine) StrategyLiquidity() *big.Int { return e.state.strategyLiquidity() }

// CurrentLenderAPY is the lender yield at the current strategized fraction and
// weighted strategy APR.
func (e *Engine) CurrentLenderAPY() Percent {
	st := e.state
	return projectedLenderAPY(ratioPercent(st.balance.Strategized, st.balance.TotalFund), st.avgStrategyAPR, st.rates, st.shares)
}

// ProjectedLenderAPY is the lender yield for a hypothetical strategized
// fraction deployed at avgAPR.
func (e *Engine) ProjectedLenderAPY(strategyRate, avgAPR Percent) Percent {
	return projectedLenderAPY(strategyRate, avgAPR, e.state.rates, e.state.shares)
}

// StakedBalance is the value of the manager's stake.
func (e *Engine) StakedBalance() *big.Int { return e.state.valueOf(e.state.shares.Staked) }

// ProtocolEarnings is the claimable protocol revenue of wallet.
func (e *Engine) ProtocolEarnings(wallet crypto.Address) *big.Int {
	return e.state.balance.protocolRevenueOf(wallet)
}

// ManagerRevenue is the manager's accrued, unwithdrawn revenue.
func (e *Engine) ManagerRevenue() *big.Int { return newBigInt(e.state.balance.ManagerRevenue) }

// IsFunctional reports pool health as judged by the policy. The operator pause
// switch always renders the pool non-functional.
func (e *Engine) IsFunctional() bool {
	if nativecommon.Guard(e.pauses, moduleName) != nil {
		return false
	}
	return e.policy.IsFunctional(e)
}

// SharePrice is the value of one whole share, i.e. 10^decimals share units.
func (e *Engine) SharePrice() *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(e.assets.Decimals())), nil)
	if !isPositive(e.state.shares.Total) {
		return unit
	}
	return e.state.valueOf(unit)
}

// LoanStatus returns the bookkeeping status of a loan.
func (e *Engine) LoanStatus(originator crypto.Address, loanID uint64) LoanStatus {
	return e.state.loans[LoanKey{Originator: originator, LoanID: loanID}]
}

// IsOriginator reports whether addr may invoke the settlement hooks.
func (e *Engine) IsOriginator(addr crypto.Address) bool { return e.state.originators[addr] }

// Treasury returns the current protocol earnings beneficiary.
func (e *Engine) Treasury() crypto.Address { return e.state.treasury }

// Reconcile checks the share counters against the share issuer and the custody
// bucket against the asset ledger. Donations may leave the pool holding more
// than its custody bucket; holding less is a violation.
func (e *Engine) Reconcile() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	st := e.state
	if supply := e.shares.TotalSupply(); supply == nil || supply.Cmp(st.shares.Total) != 0 {
		return fmt.Errorf("%w: share supply %s != total shares %s", ErrInvariantViolation, formatAmount(supply), st.shares.Total)
	}
	if escrow := e.sharesOf(e.poolAddress); escrow.Cmp(st.shares.Staked) != 0 {
		return fmt.Errorf("%w: escrowed shares %s != staked shares %s", ErrInvariantViolation, escrow, st.shares.Staked)
	}
	held := newBigInt(e.assets.BalanceOf(e.poolAddress))
	if held.Cmp(st.balance.Custody) < 0 {
		return fmt.Errorf("%w: custody holds %s < recorded %s", ErrInvariantViolation, held, st.balance.Custody)
	}
	return st.checkInvariants()
}
