package pool

import "math/big"

// YieldSplit is the distribution of one interest payment.
type YieldSplit struct {
	Protocol *big.Int
	Manager  *big.Int
	// Lender is retained in the fund and realized as share price growth.
	Lender *big.Int
}

// managerEarningsPercent scales the manager's stake ratio by the earn factor
// leverage: floor(stakeRatio*(factor-100%)/100%).
func managerEarningsPercent(staked, total *big.Int, earnFactor Percent) Percent {
	if !isPositive(total) || earnFactor <= OneHundredPercent {
		return 0
	}
	stakeRatio := ratioPercent(staked, total)
	scaled := mulDiv(new(big.Int).SetUint64(uint64(stakeRatio)), (earnFactor - OneHundredPercent).Big(), OneHundredPercent.Big())
	if !scaled.IsUint64() {
		return Percent(^uint64(0))
	}
	return Percent(scaled.Uint64())
}

// splitYield distributes interest between the protocol, the manager and the
// lenders. The three parts always sum to interest.
func splitYield(interest *big.Int, protocolPercent, earnFactor Percent, shares *ShareLedger) YieldSplit {
	if !isPositive(interest) {
		return YieldSplit{Protocol: big.NewInt(0), Manager: big.NewInt(0), Lender: big.NewInt(0)}
	}
	protocolCut := protocolPercent.Of(interest)
	remaining := new(big.Int).Sub(interest, protocolCut)
	managerCut := managerShareOf(remaining, managerEarningsPercent(shares.Staked, shares.Total, earnFactor))
	lender := new(big.Int).Sub(remaining, managerCut)
	return YieldSplit{Protocol: protocolCut, Manager: managerCut, Lender: lender}
}

// managerShareOf returns floor(amount*m/(m+100%)).
func managerShareOf(amount *big.Int, earnings Percent) *big.Int {
	if earnings == 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(earnings.Big(), OneHundredPercent.Big())
	return mulDiv(amount, earnings.Big(), denominator)
}

// projectedLenderAPY estimates the lender yield for a hypothetical strategized
// fraction of the fund deployed at avgAPR.
func projectedLenderAPY(strategyRate, avgAPR Percent, rates RateConfig, shares *ShareLedger) Percent {
	if strategyRate == 0 || avgAPR == 0 {
		return 0
	}
	poolAPY := mulDiv(avgAPR.Big(), strategyRate.Big(), OneHundredPercent.Big())
	protocolAPY := rates.ProtocolEarningPercent.Of(poolAPY)
	remaining := new(big.Int).Sub(poolAPY, protocolAPY)
	managerAPY := managerShareOf(remaining, managerEarningsPercent(shares.Staked, shares.Total, rates.ManagerEarnFactor))
	lender := remaining.Sub(remaining, managerAPY)
	if !lender.IsUint64() {
		return 0
	}
	return Percent(lender.Uint64())
}
