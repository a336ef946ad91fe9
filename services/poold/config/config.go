package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Journal drivers understood by the daemon.
const (
	JournalDisabled = ""
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

const (
	defaultListen   = ":8088"
	defaultSchedule = "@every 1m"
)

// Config captures the runtime settings of the pool daemon.
type Config struct {
	ListenAddress string           `yaml:"listen"`
	DataDir       string           `yaml:"data_dir"`
	PoolFile      string           `yaml:"pool_file"`
	Auth          AuthConfig       `yaml:"auth"`
	RateLimit     RateLimitConfig  `yaml:"rate_limit"`
	Journal       JournalConfig    `yaml:"journal"`
	Checkpoint    CheckpointConfig `yaml:"checkpoint"`
	// PausedModules lists operator pause switches engaged at start-up.
	PausedModules []string `yaml:"paused_modules"`
	// Faucet enables the development mint endpoint.
	Faucet bool `yaml:"faucet"`
}

// AuthConfig configures bearer token verification. The token subject is the
// caller's bech32 address.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// RateLimitConfig bounds requests per caller.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// JournalConfig selects the event journal database.
type JournalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CheckpointConfig schedules the periodic save and reconcile job.
type CheckpointConfig struct {
	Schedule string `yaml:"schedule"`
}

// Load reads the YAML configuration from disk, applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{ListenAddress: defaultListen}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if secret := strings.TrimSpace(os.Getenv("POOLD_JWT_SECRET")); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if dsn := strings.TrimSpace(os.Getenv("POOLD_JOURNAL_DSN")); dsn != "" {
		cfg.Journal.DSN = dsn
	}
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	cfg.PoolFile = strings.TrimSpace(cfg.PoolFile)
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = strings.TrimSpace(cfg.Auth.Issuer)
	cfg.Auth.Audience = strings.TrimSpace(cfg.Auth.Audience)
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	cfg.Journal.Driver = strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	cfg.Journal.DSN = strings.TrimSpace(cfg.Journal.DSN)
	cfg.Checkpoint.Schedule = strings.TrimSpace(cfg.Checkpoint.Schedule)
	if cfg.Checkpoint.Schedule == "" {
		cfg.Checkpoint.Schedule = defaultSchedule
	}
	modules := make([]string, 0, len(cfg.PausedModules))
	for _, module := range cfg.PausedModules {
		if trimmed := strings.TrimSpace(module); trimmed != "" {
			modules = append(modules, trimmed)
		}
	}
	cfg.PausedModules = modules
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.PoolFile == "" {
		return fmt.Errorf("pool_file is required")
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth: jwt_secret must be at least 16 characters (set POOLD_JWT_SECRET)")
	}
	switch cfg.Journal.Driver {
	case JournalDisabled:
	case JournalSQLite, JournalPostgres:
		if cfg.Journal.DSN == "" {
			return fmt.Errorf("journal: dsn required for driver %s", cfg.Journal.Driver)
		}
	default:
		return fmt.Errorf("journal: unsupported driver %q", cfg.Journal.Driver)
	}
	if _, err := cron.ParseStandard(cfg.Checkpoint.Schedule); err != nil {
		return fmt.Errorf("checkpoint: invalid schedule %q: %w", cfg.Checkpoint.Schedule, err)
	}
	return nil
}
