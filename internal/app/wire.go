package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alanyoungcy/solwatch/internal/alert"
	s3blob "github.com/alanyoungcy/solwatch/internal/blob/s3"
	"github.com/alanyoungcy/solwatch/internal/cache/redis"
	"github.com/alanyoungcy/solwatch/internal/config"
	"github.com/alanyoungcy/solwatch/internal/domain"
	"github.com/alanyoungcy/solwatch/internal/notify"
	"github.com/alanyoungcy/solwatch/internal/observability"
	"github.com/alanyoungcy/solwatch/internal/pipeline"
	"github.com/alanyoungcy/solwatch/internal/platform/jupiter"
	"github.com/alanyoungcy/solwatch/internal/pricing"
	"github.com/alanyoungcy/solwatch/internal/registry"
	"github.com/alanyoungcy/solwatch/internal/server/handler"
	"github.com/alanyoungcy/solwatch/internal/server/ws"
	"github.com/alanyoungcy/solwatch/internal/store/postgres"
	"github.com/alanyoungcy/solwatch/internal/valuation"
)

// Dependencies bundles everything the serve loop needs. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry    *registry.Registry
	Prices      *pricing.Cache
	Pipeline    *pipeline.Pipeline
	Notifier    *notify.Notifier
	Metrics     *observability.Metrics
	RateLimiter domain.RateLimiter
	// Hub is nil unless notify.websocket is enabled.
	Hub *ws.Hub
	// Checks are reported by GET /api/health.
	Checks map[string]handler.Check
}

// Wire constructs every dependency from cfg. Redis, Postgres, S3, and Kafka
// are only dialled when enabled. The cleanup function releases them in
// reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- Metrics ---
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		deps.Metrics = observability.NewMetrics(cfg.Metrics.Namespace, reg)
	}

	// --- Redis ---
	var priceStore domain.PriceStore
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		priceStore = redis.NewPriceStore(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- Token registry sources, lowest precedence first ---
	static := staticTokens(cfg.Tokens)
	var sources []domain.TokenSource

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
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		tokenStore := postgres.NewTokenStore(pgClient)
		if cfg.Postgres.SeedTokens && len(static) > 0 {
			if err := tokenStore.UpsertTokens(ctx, static); err != nil {
				return fail(fmt.Errorf("wire: seed tokens: %w", err))
			}
			logger.InfoContext(ctx, "seeded token table", slog.Int("tokens", len(static)))
		}
		sources = append(sources, tokenStore)
		deps.Checks["postgres"] = func(ctx context.Context) error { return pgClient.Pool().Ping(ctx) }
	}

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
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		sources = append(sources, s3blob.NewRegistryReader(s3Client, cfg.S3.RegistryKey))
		deps.Checks["s3"] = s3Client.Health
	}

	sources = append(sources, static)
	tokens, err := registry.Load(ctx, logger, sources...)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Registry = tokens

	// --- Pricing ---
	oracle := jupiter.NewClient(jupiter.Config{
		BaseURL:           cfg.Oracle.BaseURL,
		APIKey:            cfg.Oracle.APIKey,
		ReferenceID:       cfg.Reference.Mint,
		Timeout:           cfg.Oracle.Timeout.Duration,
		RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
	}, logger)

	cacheOpts := []pricing.Option{pricing.WithMetrics(deps.Metrics)}
	if priceStore != nil {
		cacheOpts = append(cacheOpts, pricing.WithStore(priceStore))
	}
	deps.Prices = pricing.NewCache(oracle, pricing.Config{
		ReferenceID:  cfg.Reference.Mint,
		ReferenceTTL: cfg.Reference.TTL.Duration,
		TokenTTL:     cfg.Reference.TokenTTL.Duration,
	}, logger, cacheOpts...)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Kafka.Enabled {
		kafka, err := notify.NewKafkaSender(strings.Join(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic)
		if err != nil {
			return fail(fmt.Errorf("wire: kafka: %w", err))
		}
		closers = append(closers, func() { _ = kafka.Close() })
		senders = append(senders, kafka)
	}
	if cfg.Notify.WebSocket {
		deps.Hub = ws.NewHub(logger)
		senders = append(senders, deps.Hub)
	}
	if len(senders) == 0 {
		logger.WarnContext(ctx, "no notification channels configured")
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Webhook pipeline ---
	deps.Pipeline = pipeline.New(pipeline.Config{
		TargetTokens:     cfg.Watch.TargetTokens,
		MonitoredWallets: cfg.Watch.Wallets,
	}, pipeline.Deps{
		Tokens:    deps.Registry,
		Enricher:  valuation.NewEnricher(deps.Prices, cfg.Reference.Mint),
		Composer:  alert.NewComposer(cfg.Reference.Symbol),
		Deliverer: deps.Notifier,
		Metrics:   deps.Metrics,
	}, logger)

	return deps, cleanup, nil
}

func staticTokens(entries []config.TokenConfig) registry.Static {
	out := make(registry.Static, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.TokenInfo{
			TokenID:     e.Mint,
			DisplayName: e.Name,
			Decimals:    uint8(e.Decimals),
		})
	}
	return out
}
