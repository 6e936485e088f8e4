// Package config defines the top-level configuration for the trading league
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LEAGUED_* environment variables.
type Config struct {
	Ledger    LedgerConfig    `toml:"ledger"`
	Wallet    WalletConfig    `toml:"wallet"`
	Chain     ChainConfig     `toml:"chain"`
	Auth      AuthConfig      `toml:"auth"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	UserID    string          `toml:"user_id"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// LedgerConfig holds the starting balance and portfolio allocation weights.
type LedgerConfig struct {
	InitialBalance float64       `toml:"initial_balance"`
	Tokens         []TokenConfig `toml:"tokens"`
}

// TokenConfig is one entry in the portfolio allocation. Weights across all
// tokens must sum to 100.
type TokenConfig struct {
	Symbol string  `toml:"symbol"`
	Name   string  `toml:"name"`
	Color  string  `toml:"color"`
	Weight float64 `toml:"weight"`
}

// WalletConfig holds the payer's signing key material and the transfer
// endpoints on the remote ledger.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	PayerAddress     string `toml:"payer_address"`
	PayeeAddress     string `toml:"payee_address"`
}

// ChainConfig holds remote-ledger endpoints and submission parameters.
type ChainConfig struct {
	NodeURL          string   `toml:"node_url"`
	TransferFunction string   `toml:"transfer_function"`
	CoinType         string   `toml:"coin_type"`
	MaxGasAmount     int64    `toml:"max_gas_amount"`
	GasUnitPrice     int64    `toml:"gas_unit_price"`
	ExpiryWindow     duration `toml:"expiry_window"`
	PollInterval     duration `toml:"poll_interval"`
	PollAttempts     int      `toml:"poll_attempts"`
}

// AuthConfig holds the bearer-token signing parameters for WebSocket clients.
type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	Issuer    string   `toml:"issuer"`
	TokenTTL  duration `toml:"token_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters. When Enabled is
// false the daemon runs with in-memory history only.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs the event bus
// and the HTTP rate limiter; when disabled, events stay process-local and
// rate limiting is off.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig bounds the cold-storage export of terminal transactions.
type ArchiveConfig struct {
	Retention duration `toml:"retention"`
	BatchSize int      `toml:"batch_size"`
	Prefix    string   `toml:"prefix"`
}

// ReconcileConfig bounds the reconciliation sweep for timed-out settlements.
type ReconcileConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	BatchSize int      `toml:"batch_size"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			InitialBalance: 12500.0,
			Tokens: []TokenConfig{
				{Symbol: "APT", Name: "Aptos", Color: "#0D47A1", Weight: 25.0},
				{Symbol: "USDC", Name: "USDC (on Aptos)", Color: "#B0BEC5", Weight: 20.0},
				{Symbol: "EKID", Name: "Ekiden", Color: "#FB8C00", Weight: 15.0},
				{Symbol: "PORA", Name: "Panora", Color: "#1ABC9C", Weight: 20.0},
				{Symbol: "RION", Name: "Hyperion", Color: "#8E44AD", Weight: 20.0},
			},
		},
		Chain: ChainConfig{
			NodeURL:          "https://fullnode.testnet.aptoslabs.com/v1",
			TransferFunction: "0x1::aptos_account::transfer",
			CoinType:         "0x1::aptos_coin::AptosCoin",
			MaxGasAmount:     2000,
			GasUnitPrice:     100,
			ExpiryWindow:     duration{10 * time.Minute},
			PollInterval:     duration{time.Second},
			PollAttempts:     10,
		},
		Auth: AuthConfig{
			Issuer:   "leagued",
			TokenTTL: duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "tradeleague",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "leagued-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Retention: duration{90 * 24 * time.Hour},
			BatchSize: 500,
			Prefix:    "archive/transactions",
		},
		Reconcile: ReconcileConfig{
			Enabled:   true,
			Interval:  duration{time.Minute},
			BatchSize: 50,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"transaction_failed", "reconcile_corrected", "error"},
		},
		UserID:   "demo-user",
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":     true,
	"reconcile": true,
	"archive":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, reconcile, archive)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, "user_id must not be empty")
	}

	// Ledger
	if c.Ledger.InitialBalance < 0 {
		errs = append(errs, fmt.Sprintf("ledger: initial_balance must be >= 0, got %v", c.Ledger.InitialBalance))
	}
	if len(c.Ledger.Tokens) == 0 {
		errs = append(errs, "ledger: at least one allocation token is required")
	} else {
		var sum float64
		for i, t := range c.Ledger.Tokens {
			if t.Symbol == "" {
				errs = append(errs, fmt.Sprintf("ledger: tokens[%d]: symbol must not be empty", i))
			}
			if t.Weight < 0 {
				errs = append(errs, fmt.Sprintf("ledger: tokens[%d] (%s): weight must be >= 0", i, t.Symbol))
			}
			sum += t.Weight
		}
		if sum != 100 {
			errs = append(errs, fmt.Sprintf("ledger: allocation weights must sum to 100, got %v", sum))
		}
	}

	// Wallet — a key source is needed for modes that settle or reconcile.
	needsWallet := c.Mode == "serve" || c.Mode == "reconcile"
	if needsWallet {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Wallet.PayerAddress == "" {
			errs = append(errs, "wallet: payer_address must not be empty")
		}
		if c.Wallet.PayeeAddress == "" {
			errs = append(errs, "wallet: payee_address must not be empty")
		}
	}

	// Chain
	if c.Chain.NodeURL == "" {
		errs = append(errs, "chain: node_url must not be empty")
	}
	if c.Chain.TransferFunction == "" {
		errs = append(errs, "chain: transfer_function must not be empty")
	}
	if c.Chain.MaxGasAmount <= 0 {
		errs = append(errs, "chain: max_gas_amount must be > 0")
	}
	if c.Chain.GasUnitPrice <= 0 {
		errs = append(errs, "chain: gas_unit_price must be > 0")
	}
	if c.Chain.ExpiryWindow.Duration <= 0 {
		errs = append(errs, "chain: expiry_window must be > 0")
	}
	if c.Chain.PollInterval.Duration <= 0 {
		errs = append(errs, "chain: poll_interval must be > 0")
	}
	if c.Chain.PollAttempts < 1 {
		errs = append(errs, "chain: poll_attempts must be >= 1")
	}

	// Auth — required in serve mode so WebSocket clients can authenticate.
	if c.Mode == "serve" && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth: jwt_secret must be set for mode serve")
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		errs = append(errs, "auth: token_ttl must be > 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Modes that read or prune the persistent history require the store.
	if (c.Mode == "reconcile" || c.Mode == "archive") && !c.Postgres.Enabled {
		errs = append(errs, "postgres: must be enabled for mode "+c.Mode)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}
	if c.Server.RateLimit > 0 && !c.Redis.Enabled {
		errs = append(errs, "server: rate_limit requires redis to be enabled")
	}

	// S3
	if c.Mode == "archive" && !c.S3.Enabled {
		errs = append(errs, "s3: must be enabled for mode archive")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: retention must be > 0")
		}
		if c.Archive.BatchSize < 1 {
			errs = append(errs, "archive: batch_size must be >= 1")
		}
	}

	// Reconcile
	if c.Reconcile.Enabled {
		if c.Reconcile.Interval.Duration <= 0 {
			errs = append(errs, "reconcile: interval must be > 0")
		}
		if c.Reconcile.BatchSize < 1 {
			errs = append(errs, "reconcile: batch_size must be >= 1")
		}
	}

	// Server
	if c.Mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
