package pool

import "math/big"

// ShortfallOutcome describes how a closing shortfall was absorbed.
type ShortfallOutcome struct {
	// FromRevenue was taken from the manager revenue buffer.
	FromRevenue *big.Int
	// FromStake is the value of the staked shares that were burned.
	FromStake *big.Int
	// StakeSharesBurned is the share count taken from the manager's stake.
	StakeSharesBurned *big.Int
	// Socialized was written down against every shareholder.
	Socialized *big.Int
}

// Reimbursed is the value recovered from manager-controlled sources.
func (o ShortfallOutcome) Reimbursed() *big.Int {
	return new(big.Int).Add(o.FromRevenue, o.FromStake)
}

// absorbShortfall runs the closing loss waterfall against shortfall:
// manager revenue first, then the manager's stake, then every shareholder.
//
// Revenue covers the loan with cash already in custody, so it moves into
// liquidity. The stake holds no cash of its own: its share of the lost loan is
// written down together with the burn of the matching staked shares, which
// keeps the share price of everybody else unchanged.
func (l *ledger) absorbShortfall(shortfall *big.Int) (ShortfallOutcome, error) {
	out := ShortfallOutcome{
		FromRevenue:       big.NewInt(0),
		FromStake:         big.NewInt(0),
		StakeSharesBurned: big.NewInt(0),
		Socialized:        big.NewInt(0),
	}
	remaining := newBigInt(shortfall)

	if remaining.Sign() > 0 && l.balance.ManagerRevenue.Sign() > 0 {
		charge := minBig(remaining, l.balance.ManagerRevenue)
		l.balance.ManagerRevenue = new(big.Int).Sub(l.balance.ManagerRevenue, charge)
		if err := l.balance.reclaim(charge); err != nil {
			return out, err
		}
		out.FromRevenue = charge
		remaining.Sub(remaining, charge)
	}

	if remaining.Sign() > 0 && l.shares.Staked.Sign() > 0 {
		burn := l.sharesCovering(remaining)
		recovered := newBigInt(remaining)
		if burn.Cmp(l.shares.Staked) >= 0 {
			burn = newBigInt(l.shares.Staked)
			recovered = minBig(remaining, l.valueOf(burn))
		}
		if burn.Sign() > 0 {
			if err := l.shares.burnStaked(burn); err != nil {
				return out, err
			}
			if err := l.balance.writeDown(recovered); err != nil {
				return out, err
			}
			out.FromStake = recovered
			out.StakeSharesBurned = burn
			remaining.Sub(remaining, recovered)
		}
	}

	if remaining.Sign() > 0 {
		if err := l.balance.writeDown(remaining); err != nil {
			return out, err
		}
		out.Socialized = remaining
	}
	return out, nil
}

// DefaultOutcome describes how a defaulted loan's loss was attributed.
type DefaultOutcome struct {
	ManagerLoss       *big.Int
	LenderLoss        *big.Int
	StakeSharesBurned *big.Int
	// StakeDepleted is set when the loss consumed the last staked share.
	StakeDepleted bool
}

// absorbDefault writes loss off the fund and burns the manager's staked
// shares first. Loss shares priced before the write-down that the stake could
// not cover are attributed to lenders.
func (l *ledger) absorbDefault(loss *big.Int) (DefaultOutcome, error) {
	out := DefaultOutcome{
		ManagerLoss:       big.NewInt(0),
		LenderLoss:        big.NewInt(0),
		StakeSharesBurned: big.NewInt(0),
	}
	if !isPositive(loss) {
		return out, nil
	}
	fundBefore := newBigInt(l.balance.TotalFund)
	sharesBefore := newBigInt(l.shares.Total)
	lossShares := l.sharesCovering(loss)

	if err := l.balance.writeDown(loss); err != nil {
		return out, err
	}

	remainingShares := newBigInt(lossShares)
	hadStake := l.shares.Staked.Sign() > 0
	if hadStake {
		stakeLoss := minBig(lossShares, l.shares.Staked)
		if err := l.shares.burnStaked(stakeLoss); err != nil {
			return out, err
		}
		remainingShares.Sub(remainingShares, stakeLoss)
		out.StakeSharesBurned = stakeLoss
		out.StakeDepleted = l.shares.Staked.Sign() == 0
	}

	if remainingShares.Sign() > 0 {
		managerValue := mulDiv(out.StakeSharesBurned, fundBefore, sharesBefore)
		if managerValue.Cmp(loss) > 0 {
			managerValue = newBigInt(loss)
		}
		out.LenderLoss = new(big.Int).Sub(loss, managerValue)
	}
	out.ManagerLoss = new(big.Int).Sub(loss, out.LenderLoss)
	return out, nil
}
