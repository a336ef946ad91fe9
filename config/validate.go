package config

import (
	"fmt"
	"time"

	"lendingpool/crypto"
	"lendingpool/native/pool"
)

// Validate checks the identities and rates without constructing an engine.
func (p *Pool) Validate() error {
	_, err := p.EngineConfig()
	return err
}

// EngineConfig converts the parameters into a pool engine configuration.
func (p *Pool) EngineConfig() (pool.Config, error) {
	var (
		cfg pool.Config
		err error
	)
	fields := []struct {
		name string
		raw  string
		dst  *crypto.Address
	}{
		{"PoolAddress", p.PoolAddress, &cfg.PoolAddress},
		{"Manager", p.Manager, &cfg.Manager},
		{"Governance", p.Governance, &cfg.Governance},
		{"Treasury", p.Treasury, &cfg.Treasury},
	}
	for _, field := range fields {
		if *field.dst, err = crypto.DecodeAddress(field.raw); err != nil {
			return pool.Config{}, fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}
	for i, raw := range p.Originators {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return pool.Config{}, fmt.Errorf("invalid Originators[%d]: %w", i, err)
		}
		cfg.Originators = append(cfg.Originators, addr)
	}
	if p.ManagerInactivityGrace != "" {
		grace, err := time.ParseDuration(p.ManagerInactivityGrace)
		if err != nil || grace <= 0 {
			return pool.Config{}, fmt.Errorf("invalid ManagerInactivityGrace %q", p.ManagerInactivityGrace)
		}
		cfg.ManagerInactivityGrace = grace
	}
	if p.AssetDecimals > 36 {
		return pool.Config{}, fmt.Errorf("AssetDecimals %d out of range", p.AssetDecimals)
	}
	cfg.Rates = p.Rates
	if err := cfg.Validate(); err != nil {
		return pool.Config{}, err
	}
	return cfg, nil
}
