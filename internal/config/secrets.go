package config

const redacted = "***"

// Redacted returns a copy of cfg with secrets replaced by "***", for logging
// the active configuration.
func Redacted(cfg *Config) Config {
	out := *cfg

	redact(&out.Oracle.APIKey)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Slices are copied so the redacted value cannot alias the original.
	out.Watch.TargetTokens = cloneStrings(cfg.Watch.TargetTokens)
	out.Watch.Wallets = cloneStrings(cfg.Watch.Wallets)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	out.Kafka.Brokers = cloneStrings(cfg.Kafka.Brokers)
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	if cfg.Tokens != nil {
		out.Tokens = append([]TokenConfig(nil), cfg.Tokens...)
	}
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
