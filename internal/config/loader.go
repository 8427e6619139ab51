package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load decodes the TOML file at path over Defaults, loads .env if present, and
// applies SOLWATCH_* environment overrides. An empty path skips the file. The
// result is not validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose SOLWATCH_* variable is set and
// non-empty, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setStr(&cfg.Server.Host, "SOLWATCH_SERVER_HOST")
	setInt(&cfg.Server.Port, "PORT") // platform-assigned port
	setInt(&cfg.Server.Port, "SOLWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SOLWATCH_SERVER_CORS_ORIGINS")
	setInt64(&cfg.Server.MaxBodyBytes, "SOLWATCH_SERVER_MAX_BODY_BYTES")
	setInt(&cfg.Server.RateLimit, "SOLWATCH_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SOLWATCH_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.ShutdownTimeout, "SOLWATCH_SERVER_SHUTDOWN_TIMEOUT")

	// ── Watch ──
	setStringSlice(&cfg.Watch.TargetTokens, "SOLWATCH_WATCH_TARGET_TOKENS")
	setStringSlice(&cfg.Watch.Wallets, "SOLWATCH_WATCH_WALLETS")

	// ── Reference ──
	setStr(&cfg.Reference.Mint, "SOLWATCH_REFERENCE_MINT")
	setStr(&cfg.Reference.Symbol, "SOLWATCH_REFERENCE_SYMBOL")
	setDuration(&cfg.Reference.TTL, "SOLWATCH_REFERENCE_TTL")
	setDuration(&cfg.Reference.TokenTTL, "SOLWATCH_REFERENCE_TOKEN_TTL")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "SOLWATCH_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.APIKey, "SOLWATCH_ORACLE_API_KEY")
	setDuration(&cfg.Oracle.Timeout, "SOLWATCH_ORACLE_TIMEOUT")
	setFloat64(&cfg.Oracle.RequestsPerSecond, "SOLWATCH_ORACLE_REQUESTS_PER_SECOND")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SOLWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SOLWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOLWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOLWATCH_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SOLWATCH_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "SOLWATCH_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SOLWATCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "SOLWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SOLWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SOLWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SOLWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SOLWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SOLWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SOLWATCH_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "SOLWATCH_POSTGRES_RUN_MIGRATIONS")
	setBool(&cfg.Postgres.SeedTokens, "SOLWATCH_POSTGRES_SEED_TOKENS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SOLWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SOLWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SOLWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "SOLWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SOLWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SOLWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SOLWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SOLWATCH_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.RegistryKey, "SOLWATCH_S3_REGISTRY_KEY")

	// ── Kafka ──
	setBool(&cfg.Kafka.Enabled, "SOLWATCH_KAFKA_ENABLED")
	setStringSlice(&cfg.Kafka.Brokers, "SOLWATCH_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "SOLWATCH_KAFKA_TOPIC")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramAPIURL, "SOLWATCH_NOTIFY_TELEGRAM_API_URL")
	setStr(&cfg.Notify.TelegramToken, "TELEGRAM_BOT_TOKEN") // compatibility alias
	setStr(&cfg.Notify.TelegramToken, "SOLWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TELEGRAM_CHAT_ID") // compatibility alias
	setStr(&cfg.Notify.TelegramChatID, "SOLWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOLWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setBool(&cfg.Notify.WebSocket, "SOLWATCH_NOTIFY_WEBSOCKET")
	setStringSlice(&cfg.Notify.Events, "SOLWATCH_NOTIFY_EVENTS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "SOLWATCH_METRICS_ENABLED")
	setStr(&cfg.Metrics.Namespace, "SOLWATCH_METRICS_NAMESPACE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SOLWATCH_LOG_LEVEL")
}

// Typed env helpers. Each only touches dst when the variable is set,
// non-empty, and parses.

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
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
