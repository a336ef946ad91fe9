package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lendingpool/crypto"
	"lendingpool/native/pool"
)

// Pool is the on-disk parameter file of a single lending pool. Identities are
// bech32 addresses and rates accept values such as "10%" or "0.5".
type Pool struct {
	Name          string `toml:"Name"`
	AssetSymbol   string `toml:"AssetSymbol"`
	AssetDecimals uint8  `toml:"AssetDecimals"`
	ShareSymbol   string `toml:"ShareSymbol"`

	PoolAddress string   `toml:"PoolAddress"`
	Manager     string   `toml:"Manager"`
	Governance  string   `toml:"Governance"`
	Treasury    string   `toml:"Treasury"`
	Originators []string `toml:"Originators"`

	// ManagerInactivityGrace is a Go duration string such as "2160h".
	ManagerInactivityGrace string `toml:"ManagerInactivityGrace,omitempty"`

	Rates pool.RateConfig `toml:"Rates"`
}

// Load loads the pool parameters from path. A missing file is created with
// development defaults.
func Load(path string) (*Pool, error) {
	cfg := &Pool{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (p *Pool) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = "default"
	}
	p.AssetSymbol = strings.ToUpper(strings.TrimSpace(p.AssetSymbol))
	if p.AssetSymbol == "" {
		p.AssetSymbol = "USDC"
	}
	if strings.TrimSpace(p.ShareSymbol) == "" {
		p.ShareSymbol = "lp" + p.AssetSymbol
	}
	if p.Originators == nil {
		p.Originators = []string{}
	}
}

// Default returns development parameters whose identities are derived from
// the pool name.
func Default(name string) *Pool {
	label := func(role string) string {
		return crypto.AddressFromLabel(fmt.Sprintf("pool/%s/%s", name, role)).String()
	}
	return &Pool{
		Name:          name,
		AssetSymbol:   "USDC",
		AssetDecimals: 6,
		ShareSymbol:   "lpUSDC",
		PoolAddress:   label("custody"),
		Manager:       label("manager"),
		Governance:    label("governance"),
		Treasury:      label("treasury"),
		Originators:   []string{label("originator")},
		Rates:         pool.DefaultRateConfig(),
	}
}

// createDefault creates and saves a default parameter file.
func createDefault(path string) (*Pool, error) {
	cfg := Default("default")
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Pool) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
