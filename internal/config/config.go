package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration.
type Config struct {
	// Accounts are watched and, when auto claiming is enabled, claimed for. Their keys must be in
	// the local key store to claim.
	Accounts []string `yaml:"accounts"`
	// DAOs limits watching to these DAO ids. Empty means every registered DAO.
	DAOs      []uint32 `yaml:"daos"`
	AutoClaim struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
		// Restake overrides the saved auto-restake preference when set.
		Restake *bool `yaml:"restake"`
		// MinUnclaimed is the minimum unclaimed reward, in whole tokens, worth a claim.
		MinUnclaimed string `yaml:"min_unclaimed"`
		// MinEras claims only once at least this many eras are unclaimed.
		MinEras int `yaml:"min_eras"`
	} `yaml:"auto_claim"`
	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable overrides. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if v := os.Getenv("DAOSTAKE_ACCOUNTS"); v != "" {
		cfg.Accounts = nil
		for _, account := range strings.Split(v, ",") {
			if account = strings.TrimSpace(account); account != "" {
				cfg.Accounts = append(cfg.Accounts, account)
			}
		}
	}
	if v := os.Getenv("DAOSTAKE_CLAIM_CRON"); v != "" {
		cfg.AutoClaim.Cron = v
		cfg.AutoClaim.Enabled = true
	}
	if v := os.Getenv("DAOSTAKE_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DAOSTAKE_METRICS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("DAOSTAKE_METRICS_PORT: %w", err)
		}
		cfg.Metrics.Port = port
	}

	// Defaults
	if cfg.AutoClaim.Cron == "" {
		cfg.AutoClaim.Cron = "0 0 */6 * * *"
	}
	if cfg.AutoClaim.MinUnclaimed == "" {
		cfg.AutoClaim.MinUnclaimed = "0"
	}
	if cfg.AutoClaim.MinEras == 0 {
		cfg.AutoClaim.MinEras = 1
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 6260
	}

	return cfg, nil
}

// CronParser parses the six field (with seconds) schedules the daemon uses.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// MinUnclaimedAmount returns auto_claim.min_unclaimed as a whole token amount.
func (c *Config) MinUnclaimedAmount() decimal.Decimal {
	amount, err := decimal.NewFromString(c.AutoClaim.MinUnclaimed)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// ClaimRestake reports whether auto claims restake the rewards.
func (c *Config) ClaimRestake(preference bool) bool {
	if c.AutoClaim.Restake != nil {
		return *c.AutoClaim.Restake
	}
	return preference
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	if c.AutoClaim.Enabled {
		if _, err := CronParser.Parse(c.AutoClaim.Cron); err != nil {
			return fmt.Errorf("auto_claim.cron: %w", err)
		}
	}
	if amount, err := decimal.NewFromString(c.AutoClaim.MinUnclaimed); err != nil || amount.IsNegative() {
		return fmt.Errorf("auto_claim.min_unclaimed must be a non-negative number")
	}
	if c.AutoClaim.MinEras < 1 {
		return fmt.Errorf("auto_claim.min_eras must be at least 1")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be a valid port")
	}
	return nil
}
