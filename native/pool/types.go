package pool

import (
	"math/big"

	"lendingpool/crypto"
)

// AssetLedger is the custody asset the pool accounts in. Every amount is in
// the ledger's smallest unit.
type AssetLedger interface {
	// Transfer moves amount out of from's own balance.
	Transfer(from, to crypto.Address, amount *big.Int) error
	// TransferFrom moves amount from from to to on behalf of spender, who
	// must hold a sufficient allowance.
	TransferFrom(spender, from, to crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) *big.Int
	Decimals() uint8
}

// ShareIssuer mints and burns the fungible claim-shares of the pool.
type ShareIssuer interface {
	Mint(to crypto.Address, shares *big.Int) error
	Burn(from crypto.Address, shares *big.Int) error
	BalanceOf(addr crypto.Address) *big.Int
	TotalSupply() *big.Int
}

// Journal is implemented by collaborators that can undo their own state. The
// engine reverts journaled collaborators when an operation fails after it
// already interacted with them.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Stats is a point-in-time copy of the pool's accounting state.
type Stats struct {
	Custody           *big.Int   `json:"custody"`
	Liquid            *big.Int   `json:"liquid"`
	Allocated         *big.Int   `json:"allocated"`
	Strategized       *big.Int   `json:"strategized"`
	TotalFund         *big.Int   `json:"totalFund"`
	ManagerRevenue    *big.Int   `json:"managerRevenue"`
	ProtocolRevenue   *big.Int   `json:"protocolRevenue"`
	TotalShares       *big.Int   `json:"totalShares"`
	StakedShares      *big.Int   `json:"stakedShares"`
	PoolFundsLimit    *big.Int   `json:"poolFundsLimit"`
	AvgStrategyAPR    Percent    `json:"avgStrategyApr"`
	Rates             RateConfig `json:"rates"`
	Paused            bool       `json:"paused"`
	Closed            bool       `json:"closed"`
	ManagerLastActive int64      `json:"managerLastActive"`
}

// StakeFraction is the staked share of all shares, or zero for an empty pool.
func (s Stats) StakeFraction() Percent {
	return ratioPercent(s.StakedShares, s.TotalShares)
}

// Committer is optionally implemented by a Journal that can release the undo
// history of a snapshot once the operation that took it has committed.
type Committer interface {
	DiscardSnapshot(id int)
}
