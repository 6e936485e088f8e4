package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"
user_id = "alice"

[server]
port = 9001

[chain]
poll_attempts = 25
expiry_window = "5m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Chain.PollAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Chain.ExpiryWindow.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, 12500.0, cfg.Ledger.InitialBalance)
	assert.Len(t, cfg.Ledger.Tokens, 5)
	assert.Equal(t, "0x1::aptos_account::transfer", cfg.Chain.TransferFunction)
	assert.Equal(t, int64(2000), cfg.Chain.MaxGasAmount)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `mode = "serve"`)

	t.Setenv("LEAGUED_SERVER_PORT", "7777")
	t.Setenv("LEAGUED_WALLET_PRIVATE_KEY", "deadbeef")
	t.Setenv("LEAGUED_REDIS_ENABLED", "true")
	t.Setenv("LEAGUED_CHAIN_POLL_INTERVAL", "250ms")
	t.Setenv("LEAGUED_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Chain.PollInterval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func validServeConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Wallet.PayerAddress = "0x1"
	cfg.Wallet.PayeeAddress = "0x2"
	cfg.Auth.JWTSecret = "secret"
	return cfg
}

func TestValidateAcceptsCompleteServeConfig(t *testing.T) {
	cfg := validServeConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "turbo" },
			wantMsg: "unknown mode",
		},
		{
			name:    "missing wallet key",
			mutate:  func(c *Config) { c.Wallet.PrivateKey = "" },
			wantMsg: "private_key or encrypted_key_path",
		},
		{
			name:    "encrypted key without password",
			mutate:  func(c *Config) { c.Wallet.PrivateKey = ""; c.Wallet.EncryptedKeyPath = "key.json" },
			wantMsg: "key_password",
		},
		{
			name:    "weights must sum to 100",
			mutate:  func(c *Config) { c.Ledger.Tokens[0].Weight = 30 },
			wantMsg: "sum to 100",
		},
		{
			name:    "missing jwt secret in serve mode",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantMsg: "jwt_secret",
		},
		{
			name:    "archive mode requires s3",
			mutate:  func(c *Config) { c.Mode = "archive"; c.Postgres.Enabled = true },
			wantMsg: "s3: must be enabled",
		},
		{
			name:    "reconcile mode requires postgres",
			mutate:  func(c *Config) { c.Mode = "reconcile" },
			wantMsg: "postgres: must be enabled",
		},
		{
			name:    "rate limit without redis",
			mutate:  func(c *Config) { c.Server.RateLimit = 100 },
			wantMsg: "rate_limit requires redis",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantMsg: "port must be 1-65535",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validServeConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validServeConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Auth.JWTSecret)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Original is untouched.
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
