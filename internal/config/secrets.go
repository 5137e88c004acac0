package config

import "slices"

// RedactedConfig returns a copy of cfg with secrets masked, for logging.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Database.DSN)
	redact(&out.Database.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Server.APIKeys = make([]string, len(cfg.Server.APIKeys))
	for i, k := range cfg.Server.APIKeys {
		out.Server.APIKeys[i] = k
		redact(&out.Server.APIKeys[i])
	}
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Kafka.Brokers = slices.Clone(cfg.Kafka.Brokers)
	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
