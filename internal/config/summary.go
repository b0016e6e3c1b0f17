package config

import (
	"strings"

	logx "venuemail/pkg/logx"
)

// LogFields returns safe structured attrs describing the effective config.
// It never includes credentials.
func LogFields(cfg *Config) []logx.Field {
	if cfg == nil {
		return nil
	}
	attrs := []logx.Field{
		logx.String("relay.host", cfg.Relay.Host),
		logx.Int("relay.port", cfg.Relay.Port),
		logx.Duration("relay.timeout", cfg.RelayTimeout()),
		logx.String("relay.starttls", strings.ToLower(strings.TrimSpace(cfg.Relay.StartTLS))),
		logx.String("mail.domain", cfg.Mail.Domain),
		logx.String("mail.cc", cfg.Mail.CC),
		logx.Int("dispatch.rate_per_sec", cfg.Dispatch.RatePerSec),
	}
	if p := strings.TrimSpace(cfg.Template.Path); p != "" {
		attrs = append(attrs, logx.String("template.path", p))
	}
	if cfg.Storage != nil {
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(cfg.Storage.Driver)),
			logx.String("storage.path", strings.TrimSpace(cfg.Storage.Path)),
		)
	}
	return attrs
}
