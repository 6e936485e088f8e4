package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tradeleague/internal/auth"
	s3blob "github.com/alanyoungcy/tradeleague/internal/blob/s3"
	"github.com/alanyoungcy/tradeleague/internal/cache/redis"
	"github.com/alanyoungcy/tradeleague/internal/config"
	"github.com/alanyoungcy/tradeleague/internal/crypto"
	"github.com/alanyoungcy/tradeleague/internal/domain"
	"github.com/alanyoungcy/tradeleague/internal/ledger"
	"github.com/alanyoungcy/tradeleague/internal/lifecycle"
	"github.com/alanyoungcy/tradeleague/internal/notify"
	"github.com/alanyoungcy/tradeleague/internal/platform/aptos"
	"github.com/alanyoungcy/tradeleague/internal/settlement"
	"github.com/alanyoungcy/tradeleague/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Ledger   *ledger.Ledger
	Manager  *lifecycle.Manager
	Verifier *auth.Verifier

	// Stores (nil unless Postgres is enabled)
	TransactionStore domain.TransactionStore
	LeagueStore      domain.LeagueStore
	VaultStore       domain.VaultStore
	MarketStore      domain.MarketStore

	// Redis-backed (nil unless Redis is enabled)
	Bus         domain.EventBus
	RateLimiter domain.RateLimiter

	// Settlement
	ChainClient *aptos.Client
	Reconciler  *settlement.Reconciler

	// Blob storage (nil unless S3 is enabled)
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	Notifier *notify.Notifier
}

// operatorAlerts adapts the notifier to the lifecycle manager's fire-and-forget
// contract, pinning the event type used by the allow-list filter.
type operatorAlerts struct {
	notifier *notify.Notifier
	event    string
}

func (o operatorAlerts) Notify(ctx context.Context, title, message string) {
	// Per-sender failures are already logged by the notifier.
	_ = o.notifier.Notify(ctx, o.event, title, message)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Ledger ---
	tokens := make([]domain.TokenAllocation, 0, len(cfg.Ledger.Tokens))
	for _, t := range cfg.Ledger.Tokens {
		tokens = append(tokens, domain.TokenAllocation{
			Symbol: t.Symbol,
			Name:   t.Name,
			Color:  t.Color,
			Weight: t.Weight,
		})
	}
	ldg, err := ledger.New(cfg.Ledger.InitialBalance, tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	deps.Ledger = ldg

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.TransactionStore = postgres.NewTransactionStore(pool)
		deps.LeagueStore = postgres.NewLeagueStore(pool)
		deps.VaultStore = postgres.NewVaultStore(pool)
		deps.MarketStore = postgres.NewMarketStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Bus = redis.NewEventBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// Every balance mutation fans out a fresh snapshot on the balance channel.
	if deps.Bus != nil {
		bus := deps.Bus
		ldg.SetOnChange(func(snap domain.BalanceSnapshot) {
			payload, err := json.Marshal(map[string]any{
				"event":      "balance_changed",
				"balance":    snap.Balance,
				"allocation": snap.Allocation,
			})
			if err != nil {
				return
			}
			if err := bus.Publish(context.Background(), domain.ChannelBalance, payload); err != nil {
				logger.Warn("balance publish failed", slog.String("error", err.Error()))
			}
		})
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.TransactionStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.TransactionStore,
				s3blob.ArchiverConfig{
					Retention: cfg.Archive.Retention.Duration,
					BatchSize: cfg.Archive.BatchSize,
					Prefix:    cfg.Archive.Prefix,
				}, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Settlement (serve and reconcile modes) ---
	if cfg.Mode == "serve" || cfg.Mode == "reconcile" {
		seed, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(seed)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}

		deps.ChainClient = aptos.NewClient(cfg.Chain.NodeURL)
		pipeline := settlement.NewPipeline(deps.ChainClient, signer, settlement.Config{
			TransferFunction: cfg.Chain.TransferFunction,
			CoinType:         cfg.Chain.CoinType,
			MaxGasAmount:     uint64(cfg.Chain.MaxGasAmount),
			GasUnitPrice:     uint64(cfg.Chain.GasUnitPrice),
			ExpiryWindow:     cfg.Chain.ExpiryWindow.Duration,
			PollInterval:     cfg.Chain.PollInterval.Duration,
			PollAttempts:     cfg.Chain.PollAttempts,
		}, logger)

		deps.Manager = lifecycle.New(lifecycle.Config{
			UserID: cfg.UserID,
			Payer:  cfg.Wallet.PayerAddress,
			Payee:  cfg.Wallet.PayeeAddress,
		}, ldg, pipeline, deps.TransactionStore, deps.Bus,
			operatorAlerts{notifier: deps.Notifier, event: "transaction_failed"}, logger)

		if cfg.Reconcile.Enabled && deps.TransactionStore != nil {
			deps.Reconciler = settlement.NewReconciler(
				deps.TransactionStore, deps.ChainClient, ldg, deps.Bus,
				settlement.ReconcilerConfig{
					Interval:  cfg.Reconcile.Interval.Duration,
					BatchSize: cfg.Reconcile.BatchSize,
				}, logger).
				WithNotifier(operatorAlerts{notifier: deps.Notifier, event: "reconcile_corrected"})
		}
	}

	// --- Auth (serve mode) ---
	if cfg.Mode == "serve" {
		verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: auth: %w", err)
		}
		deps.Verifier = verifier
	}

	return deps, cleanup, nil
}
