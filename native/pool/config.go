package pool

import (
	"fmt"
	"time"

	"lendingpool/crypto"
)

const (
	// MaxProtocolEarningPercent caps the protocol's cut of interest.
	MaxProtocolEarningPercent Percent = 100 // 10%
	// MaxExitFeePercent caps the fee retained on withdrawals.
	MaxExitFeePercent Percent = 50 // 5%
	// DefaultManagerInactivityGrace is how long the manager may stay idle before
	// the policy may authorize other callers for manager-only actions.
	DefaultManagerInactivityGrace = 90 * 24 * time.Hour
)

// RateConfig groups the governance and manager controlled rates of a pool.
type RateConfig struct {
	// TargetStakePercent is the staked fraction of all shares the manager must
	// maintain; it also derives the pool funds limit.
	TargetStakePercent Percent `toml:"TargetStakePercent"`
	// TargetLiquidityPercent is the share of fund value kept liquid and
	// unavailable for new loan offers.
	TargetLiquidityPercent Percent `toml:"TargetLiquidityPercent"`
	// ProtocolEarningPercent is the treasury's cut of interest.
	ProtocolEarningPercent Percent `toml:"ProtocolEarningPercent"`
	// ManagerEarnFactor is the leverage applied to the manager's stake ratio
	// when splitting interest. Never below 100%.
	ManagerEarnFactor Percent `toml:"ManagerEarnFactor"`
	// ManagerEarnFactorMax bounds ManagerEarnFactor.
	ManagerEarnFactorMax Percent `toml:"ManagerEarnFactorMax"`
	// ExitFeePercent is retained in the fund on every exit. Immutable once the
	// pool is constructed.
	ExitFeePercent Percent `toml:"ExitFeePercent"`
}

// DefaultRateConfig returns the rates a new pool starts with.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		TargetStakePercent:     Percentage(10),
		TargetLiquidityPercent: 0,
		ProtocolEarningPercent: Percentage(10),
		ManagerEarnFactor:      Percentage(150),
		ManagerEarnFactorMax:   Percentage(500),
		ExitFeePercent:         5, // 0.5%
	}
}

// Validate checks every rate against its bound.
func (c RateConfig) Validate() error {
	if c.TargetStakePercent == 0 || c.TargetStakePercent > OneHundredPercent {
		return fmt.Errorf("%w: target stake %s must be in (0%%, 100%%]", ErrInvalidPercent, c.TargetStakePercent)
	}
	if c.TargetLiquidityPercent > OneHundredPercent {
		return fmt.Errorf("%w: target liquidity %s exceeds 100%%", ErrInvalidPercent, c.TargetLiquidityPercent)
	}
	if c.ProtocolEarningPercent > MaxProtocolEarningPercent {
		return fmt.Errorf("%w: protocol earning %s exceeds %s", ErrInvalidPercent, c.ProtocolEarningPercent, MaxProtocolEarningPercent)
	}
	if c.ManagerEarnFactorMax < OneHundredPercent {
		return fmt.Errorf("%w: manager earn factor max %s below 100%%", ErrInvalidPercent, c.ManagerEarnFactorMax)
	}
	if c.ManagerEarnFactor < OneHundredPercent || c.ManagerEarnFactor > c.ManagerEarnFactorMax {
		return fmt.Errorf("%w: manager earn factor %s must be in [100%%, %s]", ErrInvalidPercent, c.ManagerEarnFactor, c.ManagerEarnFactorMax)
	}
	if c.ExitFeePercent > MaxExitFeePercent {
		return fmt.Errorf("%w: exit fee %s exceeds %s", ErrInvalidPercent, c.ExitFeePercent, MaxExitFeePercent)
	}
	return nil
}

func (c *RateConfig) setTargetStakePercent(p Percent) error {
	if p == 0 || p > OneHundredPercent {
		return fmt.Errorf("%w: target stake %s must be in (0%%, 100%%]", ErrInvalidPercent, p)
	}
	c.TargetStakePercent = p
	return nil
}

func (c *RateConfig) setTargetLiquidityPercent(p Percent) error {
	if p > OneHundredPercent {
		return fmt.Errorf("%w: target liquidity %s exceeds 100%%", ErrInvalidPercent, p)
	}
	c.TargetLiquidityPercent = p
	return nil
}

func (c *RateConfig) setProtocolEarningPercent(p Percent) error {
	if p > MaxProtocolEarningPercent {
		return fmt.Errorf("%w: protocol earning %s exceeds %s", ErrInvalidPercent, p, MaxProtocolEarningPercent)
	}
	c.ProtocolEarningPercent = p
	return nil
}

func (c *RateConfig) setManagerEarnFactor(p Percent) error {
	if p < OneHundredPercent || p > c.ManagerEarnFactorMax {
		return fmt.Errorf("%w: manager earn factor %s must be in [100%%, %s]", ErrInvalidPercent, p, c.ManagerEarnFactorMax)
	}
	c.ManagerEarnFactor = p
	return nil
}

// setManagerEarnFactorMax lowers the current factor along with the bound.
func (c *RateConfig) setManagerEarnFactorMax(p Percent) error {
	if p < OneHundredPercent {
		return fmt.Errorf("%w: manager earn factor max %s below 100%%", ErrInvalidPercent, p)
	}
	c.ManagerEarnFactorMax = p
	if c.ManagerEarnFactor > p {
		c.ManagerEarnFactor = p
	}
	return nil
}

// Config describes the identities and rates a pool is constructed with.
type Config struct {
	// PoolAddress is the custody account of the pool on the asset ledger. It
	// also holds the escrowed stake shares on the share issuer.
	PoolAddress crypto.Address
	Manager     crypto.Address
	Governance  crypto.Address
	// Treasury receives the protocol's cut of interest.
	Treasury crypto.Address
	// Originators may invoke the loan settlement hooks.
	Originators []crypto.Address
	Rates       RateConfig
	// ManagerInactivityGrace defaults to DefaultManagerInactivityGrace.
	ManagerInactivityGrace time.Duration
}

// Validate checks the identities and rates an engine is built from.
func (c Config) Validate() error {
	if c.PoolAddress.IsZero() {
		return fmt.Errorf("%w: pool address required", ErrInvalidConfig)
	}
	if c.Manager.IsZero() {
		return fmt.Errorf("%w: manager required", ErrInvalidConfig)
	}
	if c.Governance.IsZero() {
		return fmt.Errorf("%w: governance required", ErrInvalidConfig)
	}
	if c.Treasury.IsZero() {
		return fmt.Errorf("%w: treasury required", ErrInvalidConfig)
	}
	roles := []struct {
		name string
		addr crypto.Address
	}{
		{"manager", c.Manager},
		{"governance", c.Governance},
		{"treasury", c.Treasury},
	}
	for _, role := range roles {
		if role.addr == c.PoolAddress {
			return fmt.Errorf("%w: %s must differ from the pool account", ErrInvalidConfig, role.name)
		}
	}
	for _, originator := range c.Originators {
		if originator.IsZero() {
			return fmt.Errorf("%w: zero originator", ErrInvalidConfig)
		}
		if originator == c.PoolAddress {
			return fmt.Errorf("%w: originator must differ from the pool account", ErrInvalidConfig)
		}
	}
	return c.Rates.Validate()
}
