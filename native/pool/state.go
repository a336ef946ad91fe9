package pool

import (
	"math/big"

	"lendingpool/crypto"
)

// ledger is the complete mutable state of one pool. The engine owns exactly
// one and clones it before every operation so a failure restores it whole.
type ledger struct {
	balance *Balance
	shares  *ShareLedger
	rates   RateConfig

	poolFundsLimit *big.Int
	avgStrategyAPR Percent

	treasury    crypto.Address
	originators map[crypto.Address]bool
	loans       map[LoanKey]LoanStatus

	paused            bool
	closed            bool
	managerLastActive int64
}

func newLedger(cfg Config, now int64) *ledger {
	st := &ledger{
		balance:           newBalance(),
		shares:            newShareLedger(),
		rates:             cfg.Rates,
		poolFundsLimit:    big.NewInt(0),
		treasury:          cfg.Treasury,
		originators:       make(map[crypto.Address]bool, len(cfg.Originators)),
		loans:             make(map[LoanKey]LoanStatus),
		managerLastActive: now,
	}
	for _, originator := range cfg.Originators {
		st.originators[originator] = true
	}
	return st
}

func (l *ledger) clone() *ledger {
	clone := &ledger{
		balance:           l.balance.Clone(),
		shares:            l.shares.Clone(),
		rates:             l.rates,
		poolFundsLimit:    newBigInt(l.poolFundsLimit),
		avgStrategyAPR:    l.avgStrategyAPR,
		treasury:          l.treasury,
		originators:       make(map[crypto.Address]bool, len(l.originators)),
		loans:             make(map[LoanKey]LoanStatus, len(l.loans)),
		paused:            l.paused,
		closed:            l.closed,
		managerLastActive: l.managerLastActive,
	}
	for addr, ok := range l.originators {
		clone.originators[addr] = ok
	}
	for key, status := range l.loans {
		clone.loans[key] = status
	}
	return clone
}

func (l *ledger) valueOf(shares *big.Int) *big.Int {
	return l.shares.ValueOf(shares, l.balance.TotalFund)
}

func (l *ledger) sharesFor(value *big.Int) *big.Int {
	return l.shares.SharesFor(value, l.balance.TotalFund)
}

// sharesCovering is the smallest share count worth at least value. Losses
// charged to the stake use it so rounding stays with first-loss capital.
func (l *ledger) sharesCovering(value *big.Int) *big.Int {
	if !isPositive(l.balance.TotalFund) {
		return l.sharesFor(value)
	}
	return mulDivCeil(value, l.shares.Total, l.balance.TotalFund)
}

// refreshLimit recomputes the pool funds limit from the staked shares:
// valueOf(staked*100%/targetStake).
func (l *ledger) refreshLimit() {
	if l.rates.TargetStakePercent == 0 {
		l.poolFundsLimit = big.NewInt(0)
		return
	}
	leveraged := mulDiv(l.shares.Staked, OneHundredPercent.Big(), l.rates.TargetStakePercent.Big())
	l.poolFundsLimit = l.valueOf(leveraged)
}

// strategyLiquidity is the liquid value above the target liquidity reserve.
func (l *ledger) strategyLiquidity() *big.Int {
	reserve := l.rates.TargetLiquidityPercent.Of(l.balance.TotalFund)
	return saturatingSub(l.balance.Liquid, reserve)
}

// addStrategyAPR folds newly strategized value at apr into the weighted
// average. Must run after Strategized already includes amount.
func (l *ledger) addStrategyAPR(amount *big.Int, apr Percent) {
	current := l.balance.Strategized
	if !isPositive(current) {
		l.avgStrategyAPR = 0
		return
	}
	previous := new(big.Int).Sub(current, amount)
	weighted := new(big.Int).Mul(previous, l.avgStrategyAPR.Big())
	weighted.Add(weighted, new(big.Int).Mul(amount, apr.Big()))
	l.setAvgAPR(weighted.Quo(weighted, current))
}

// removeStrategyAPR takes reduced value at apr out of the weighted average.
// Must run after Strategized was already reduced.
func (l *ledger) removeStrategyAPR(reduced *big.Int, apr Percent) {
	current := l.balance.Strategized
	if !isPositive(current) {
		l.avgStrategyAPR = 0
		return
	}
	previous := new(big.Int).Add(current, reduced)
	weighted := new(big.Int).Mul(previous, l.avgStrategyAPR.Big())
	weighted.Sub(weighted, new(big.Int).Mul(reduced, apr.Big()))
	if weighted.Sign() < 0 {
		l.avgStrategyAPR = 0
		return
	}
	l.setAvgAPR(weighted.Quo(weighted, current))
}

func (l *ledger) setAvgAPR(v *big.Int) {
	if !v.IsUint64() {
		l.avgStrategyAPR = 0
		return
	}
	l.avgStrategyAPR = Percent(v.Uint64())
}

func (l *ledger) checkInvariants() error {
	if err := l.balance.checkInvariant(); err != nil {
		return err
	}
	return l.shares.checkInvariant()
}
