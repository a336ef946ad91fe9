package pool

import (
	"math/big"

	"lendingpool/crypto"
)

// View is the read-only surface a Policy may inspect.
type View interface {
	Stats() Stats
	Governance() crypto.Address
	IsManagerInactive() bool
	SharesOf(addr crypto.Address) *big.Int
}

// Policy decides pool health and the eligibility rules that differ between
// pool flavours. The engine consults it instead of hard-coding the rules.
type Policy interface {
	// IsFunctional reports whether the pool is healthy enough to operate.
	IsFunctional(view View) bool
	// CanClose reports whether the pool may stop accepting new entries.
	CanClose(view View) bool
	// AuthorizedWhenManagerInactive reports whether caller may perform a
	// manager-only action while the manager is inactive.
	AuthorizedWhenManagerInactive(view View, caller crypto.Address) bool
}

// DefaultPolicy implements the lending pool rules: the pool is functional
// while the stake target is met, closable once no loan holds funds, and an
// abandoned pool may be wound down by governance or any lender.
type DefaultPolicy struct{}

var _ Policy = DefaultPolicy{}

// IsFunctional implements Policy.
func (DefaultPolicy) IsFunctional(view View) bool {
	stats := view.Stats()
	if stats.Paused || stats.Closed || !isPositive(stats.TotalShares) {
		return false
	}
	return stats.StakeFraction() >= stats.Rates.TargetStakePercent
}

// CanClose implements Policy.
func (DefaultPolicy) CanClose(view View) bool {
	stats := view.Stats()
	return stats.Allocated.Sign() == 0 && stats.Strategized.Sign() == 0
}

// AuthorizedWhenManagerInactive implements Policy.
func (DefaultPolicy) AuthorizedWhenManagerInactive(view View, caller crypto.Address) bool {
	if !view.IsManagerInactive() {
		return false
	}
	if caller == view.Governance() {
		return true
	}
	return isPositive(view.SharesOf(caller))
}
