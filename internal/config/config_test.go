package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "0 0 */6 * * *", cfg.AutoClaim.Cron)
	assert.Equal(t, 1, cfg.AutoClaim.MinEras)
	assert.Equal(t, 6260, cfg.Metrics.Port)
	assert.True(t, cfg.MinUnclaimedAmount().IsZero())
	assert.Error(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
accounts: [a, b]
daos: [1, 7]
auto_claim:
  enabled: true
  restake: true
  min_unclaimed: "2.5"
database:
  sqlite_path: /tmp/claims.db
`), 0o600))
	t.Setenv("DAOSTAKE_ACCOUNTS", "c, d,")
	t.Setenv("DAOSTAKE_METRICS_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, cfg.Accounts)
	assert.Equal(t, []uint32{1, 7}, cfg.DAOs)
	require.NotNil(t, cfg.AutoClaim.Restake)
	assert.True(t, cfg.ClaimRestake(false))
	assert.Equal(t, "2.5", cfg.MinUnclaimedAmount().String())
	assert.Equal(t, "/tmp/claims.db", cfg.Database.SQLitePath)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad cron", func(c *Config) { c.AutoClaim.Enabled = true; c.AutoClaim.Cron = "every day" }},
		{"negative minimum", func(c *Config) { c.AutoClaim.MinUnclaimed = "-1" }},
		{"zero eras", func(c *Config) { c.AutoClaim.MinEras = 0 }},
		{"port", func(c *Config) { c.Metrics.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			cfg.Accounts = []string{"a"}
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestClaimRestake(t *testing.T) {
	var cfg Config
	assert.True(t, cfg.ClaimRestake(true))
	assert.False(t, cfg.ClaimRestake(false))

	off := false
	cfg.AutoClaim.Restake = &off
	assert.False(t, cfg.ClaimRestake(true))
}
