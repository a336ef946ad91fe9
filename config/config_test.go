package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lendingpool/crypto"
	"lendingpool/native/pool"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pool.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Manager != cfg.Manager || reloaded.Rates != cfg.Rates {
		t.Fatalf("default did not round trip: %+v vs %+v", reloaded, cfg)
	}
	engineCfg, err := reloaded.EngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if engineCfg.Manager != crypto.AddressFromLabel("pool/default/manager") {
		t.Fatalf("unexpected manager %s", engineCfg.Manager)
	}
	if len(engineCfg.Originators) != 1 {
		t.Fatalf("expected one originator, got %d", len(engineCfg.Originators))
	}
}

func TestLoadParsesRatesAndGrace(t *testing.T) {
	def := Default("usdc")
	contents := `Name = "usdc"
AssetSymbol = "usdc"
AssetDecimals = 6
PoolAddress = "` + def.PoolAddress + `"
Manager = "` + def.Manager + `"
Governance = "` + def.Governance + `"
Treasury = "` + def.Treasury + `"
Originators = ["` + def.Originators[0] + `"]
ManagerInactivityGrace = "720h"

[Rates]
TargetStakePercent = "12.5%"
TargetLiquidityPercent = "5"
ProtocolEarningPercent = "10%"
ManagerEarnFactor = "150%"
ManagerEarnFactorMax = "500%"
ExitFeePercent = "0.5%"
`
	path := filepath.Join(t.TempDir(), "pool.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AssetSymbol != "USDC" || cfg.ShareSymbol != "lpUSDC" {
		t.Fatalf("symbols not normalized: %s %s", cfg.AssetSymbol, cfg.ShareSymbol)
	}
	if cfg.Rates.TargetStakePercent != 125 || cfg.Rates.TargetLiquidityPercent != pool.Percentage(5) || cfg.Rates.ExitFeePercent != 5 {
		t.Fatalf("unexpected rates %+v", cfg.Rates)
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if engineCfg.ManagerInactivityGrace != 720*time.Hour {
		t.Fatalf("unexpected grace %s", engineCfg.ManagerInactivityGrace)
	}
}

func TestLoadRejectsInvalidParameters(t *testing.T) {
	def := Default("usdc")
	cases := map[string]string{
		"bad address":      `Manager = "nope"`,
		"wrong prefix":     `Manager = "nhb1qyqszqgpqyqszqgpqyqszqgpqyqszqgp6z7y3c"`,
		"bad grace":        `ManagerInactivityGrace = "soon"`,
		"unknown key":      `Surprise = true`,
		"pool originator":  `Originators = ["` + def.PoolAddress + `"]`,
		"pool as treasury": `Treasury = "` + def.PoolAddress + `"`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			base := `PoolAddress = "` + def.PoolAddress + `"
Governance = "` + def.Governance + `"
`
			if !strings.HasPrefix(line, "Treasury") {
				base += `Treasury = "` + def.Treasury + `"
`
			}
			if !strings.HasPrefix(line, "Manager") {
				base += `Manager = "` + def.Manager + `"
`
			}
			base += line + "\n\n[Rates]\nTargetStakePercent = \"10%\"\nManagerEarnFactor = \"100%\"\nManagerEarnFactorMax = \"100%\"\n"
			path := filepath.Join(t.TempDir(), "pool.toml")
			if err := os.WriteFile(path, []byte(base), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestEngineConfigRejectsRates(t *testing.T) {
	cfg := Default("usdc")
	cfg.Rates.ProtocolEarningPercent = pool.Percentage(11)
	if _, err := cfg.EngineConfig(); !errors.Is(err, pool.ErrInvalidPercent) {
		t.Fatalf("expected ErrInvalidPercent, got %v", err)
	}
}
