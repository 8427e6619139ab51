// Package config defines the service configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// Config is the root configuration. Fields are decoded from a TOML file over
// Defaults and then overridden by SOLWATCH_* environment variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Watch     WatchConfig     `toml:"watch"`
	Reference ReferenceConfig `toml:"reference"`
	Tokens    []TokenConfig   `toml:"tokens"`
	Oracle    OracleConfig    `toml:"oracle"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Kafka     KafkaConfig     `toml:"kafka"`
	Notify    NotifyConfig    `toml:"notify"`
	Metrics   MetricsConfig   `toml:"metrics"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
	RateLimit       int      `toml:"rate_limit"`
	RateWindow      duration `toml:"rate_window"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// WatchConfig selects what produces alerts.
type WatchConfig struct {
	// TargetTokens are mint addresses to alert on. At least one is required.
	TargetTokens []string `toml:"target_tokens"`
	// Wallets are the operator's own addresses, used for BUY/SELL.
	Wallets []string `toml:"wallets"`
}

// ReferenceConfig describes the reference asset valuations are quoted in.
type ReferenceConfig struct {
	Mint   string   `toml:"mint"`
	Symbol string   `toml:"symbol"`
	TTL    duration `toml:"ttl"`
	// TokenTTL bounds non-reference quotes; zero caches them until restart.
	TokenTTL duration `toml:"token_ttl"`
}

// TokenConfig is one statically configured registry entry.
type TokenConfig struct {
	Mint     string `toml:"mint"`
	Name     string `toml:"name"`
	Decimals int    `toml:"decimals"`
}

// OracleConfig configures the Jupiter price client.
type OracleConfig struct {
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// RedisConfig configures the shared price tier and rate limiter.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig configures the database token registry.
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
	// SeedTokens upserts the [[tokens]] entries into the table at start-up.
	SeedTokens bool `toml:"seed_tokens"`
}

// S3Config configures the object-storage token registry.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RegistryKey    string `toml:"registry_key"`
}

// KafkaConfig configures the Kafka alert sender.
type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	TelegramAPIURL    string   `toml:"telegram_api_url"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	WebSocket         bool     `toml:"websocket"`
	Events            []string `toml:"events"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// duration wraps time.Duration so TOML strings like "30m" decode.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// SOLMint is the wrapped SOL mint, the default reference asset.
const SOLMint = "So11111111111111111111111111111111111111112"

// Defaults returns a Config with every optional backend disabled.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodyBytes:    5 << 20,
			RateLimit:       120,
			RateWindow:      duration{time.Minute},
			ShutdownTimeout: duration{15 * time.Second},
		},
		Reference: ReferenceConfig{
			Mint:   SOLMint,
			Symbol: "SOL",
			TTL:    duration{30 * time.Minute},
		},
		Oracle: OracleConfig{
			BaseURL:           "https://api.jup.ag",
			Timeout:           duration{10 * time.Second},
			RequestsPerSecond: 10,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "solwatch:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "solwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
			RegistryKey:    "config/tokens.json",
		},
		Kafka: KafkaConfig{
			Topic: "solwatch.alerts",
		},
		Notify: NotifyConfig{
			Events: []string{"buy", "sell", "transfer", "error"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "solwatch",
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validEvents = map[string]bool{
	"buy":      true,
	"sell":     true,
	"transfer": true,
	"error":    true,
}

// Validate checks c and returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server: max_body_bytes must be > 0")
	}
	if c.Server.RateLimit < 0 {
		add("server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		add("server: rate_window must be > 0 when rate_limit is set")
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		add("server: shutdown_timeout must be > 0")
	}

	// Watch
	if len(c.Watch.TargetTokens) == 0 {
		add("watch: target_tokens must name at least one mint")
	}
	for _, m := range c.Watch.TargetTokens {
		if err := ValidateAddress(m); err != nil {
			add("watch: target_tokens: %v", err)
		}
	}
	for _, w := range c.Watch.Wallets {
		if err := ValidateAddress(w); err != nil {
			add("watch: wallets: %v", err)
		}
	}

	// Reference
	if err := ValidateAddress(c.Reference.Mint); err != nil {
		add("reference: mint: %v", err)
	}
	if c.Reference.TTL.Duration <= 0 {
		add("reference: ttl must be > 0")
	}
	if c.Reference.TokenTTL.Duration < 0 {
		add("reference: token_ttl must be >= 0")
	}

	// Tokens
	for i, t := range c.Tokens {
		if err := ValidateAddress(t.Mint); err != nil {
			add("tokens[%d]: mint: %v", i, err)
		}
		if t.Decimals < 0 || t.Decimals > 255 {
			add("tokens[%d]: decimals must be 0-255, got %d", i, t.Decimals)
		}
	}

	// Oracle
	if c.Oracle.BaseURL == "" {
		add("oracle: base_url must not be empty")
	}
	if c.Oracle.RequestsPerSecond <= 0 {
		add("oracle: requests_per_second must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
		if c.S3.RegistryKey == "" {
			add("s3: registry_key must not be empty")
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			add("kafka: brokers must not be empty")
		}
		if c.Kafka.Topic == "" {
			add("kafka: topic must not be empty")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if !validEvents[strings.ToLower(strings.TrimSpace(e))] {
			add("notify: unknown event %q (valid: buy, sell, transfer, error)", e)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateAddress checks that s is a base58 Solana address (32 bytes).
func ValidateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("address is empty")
	}
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%q is not base58: %w", s, err)
	}
	if len(b) != 32 {
		return fmt.Errorf("%q decodes to %d bytes, want 32", s, len(b))
	}
	return nil
}
