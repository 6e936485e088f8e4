package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LEAGUED_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LEAGUED_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setFloat64(&cfg.Ledger.InitialBalance, "LEAGUED_LEDGER_INITIAL_BALANCE")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "LEAGUED_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "LEAGUED_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "LEAGUED_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.PayerAddress, "LEAGUED_WALLET_PAYER_ADDRESS")
	setStr(&cfg.Wallet.PayeeAddress, "LEAGUED_WALLET_PAYEE_ADDRESS")

	// ── Chain ──
	setStr(&cfg.Chain.NodeURL, "LEAGUED_CHAIN_NODE_URL")
	setStr(&cfg.Chain.TransferFunction, "LEAGUED_CHAIN_TRANSFER_FUNCTION")
	setStr(&cfg.Chain.CoinType, "LEAGUED_CHAIN_COIN_TYPE")
	setInt64(&cfg.Chain.MaxGasAmount, "LEAGUED_CHAIN_MAX_GAS_AMOUNT")
	setInt64(&cfg.Chain.GasUnitPrice, "LEAGUED_CHAIN_GAS_UNIT_PRICE")
	setDuration(&cfg.Chain.ExpiryWindow, "LEAGUED_CHAIN_EXPIRY_WINDOW")
	setDuration(&cfg.Chain.PollInterval, "LEAGUED_CHAIN_POLL_INTERVAL")
	setInt(&cfg.Chain.PollAttempts, "LEAGUED_CHAIN_POLL_ATTEMPTS")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "LEAGUED_AUTH_JWT_SECRET")
	setStr(&cfg.Auth.Issuer, "LEAGUED_AUTH_ISSUER")
	setDuration(&cfg.Auth.TokenTTL, "LEAGUED_AUTH_TOKEN_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "LEAGUED_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "LEAGUED_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "LEAGUED_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "LEAGUED_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LEAGUED_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LEAGUED_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LEAGUED_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LEAGUED_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LEAGUED_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LEAGUED_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LEAGUED_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LEAGUED_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "LEAGUED_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LEAGUED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LEAGUED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LEAGUED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LEAGUED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LEAGUED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LEAGUED_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LEAGUED_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LEAGUED_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LEAGUED_S3_REGION")
	setStr(&cfg.S3.Bucket, "LEAGUED_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LEAGUED_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LEAGUED_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LEAGUED_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LEAGUED_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setDuration(&cfg.Archive.Retention, "LEAGUED_ARCHIVE_RETENTION")
	setInt(&cfg.Archive.BatchSize, "LEAGUED_ARCHIVE_BATCH_SIZE")
	setStr(&cfg.Archive.Prefix, "LEAGUED_ARCHIVE_PREFIX")

	// ── Reconcile ──
	setBool(&cfg.Reconcile.Enabled, "LEAGUED_RECONCILE_ENABLED")
	setDuration(&cfg.Reconcile.Interval, "LEAGUED_RECONCILE_INTERVAL")
	setInt(&cfg.Reconcile.BatchSize, "LEAGUED_RECONCILE_BATCH_SIZE")

	// ── Server ──
	setInt(&cfg.Server.Port, "LEAGUED_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LEAGUED_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LEAGUED_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LEAGUED_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LEAGUED_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LEAGUED_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LEAGUED_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LEAGUED_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LEAGUED_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.UserID, "LEAGUED_USER_ID")
	setStr(&cfg.Mode, "LEAGUED_MODE")
	setStr(&cfg.LogLevel, "LEAGUED_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
