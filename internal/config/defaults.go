package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	DefaultRelayHost    = "smtp-mail.outlook.com"
	DefaultRelayPort    = 587
	DefaultRelayTimeout = 30 * time.Second
	DefaultDomain       = "kluniversity.in"
	DefaultCC           = "vjoenithin@kluniversity.in"
	DefaultMetricsAddr  = "127.0.0.1:9464"
	DefaultDebounce     = 2 * time.Second
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Relay: RelayConfig{
			Host:     DefaultRelayHost,
			Port:     DefaultRelayPort,
			Timeout:  DefaultRelayTimeout.String(),
			StartTLS: "mandatory",
		},
		Mail: MailConfig{
			Domain: DefaultDomain,
			CC:     DefaultCC,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce.String(),
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}

// Validate checks fields that would otherwise fail late, halfway through a batch.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Relay.Host) == "" {
		errs = append(errs, errors.New("relay.host is required"))
	}
	if c.Relay.Port <= 0 || c.Relay.Port > 65535 {
		errs = append(errs, fmt.Errorf("relay.port: out of range: %d", c.Relay.Port))
	}
	if _, err := ParseDurationField("relay.timeout", c.Relay.Timeout); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Relay.StartTLS)) {
	case "", "mandatory", "opportunistic", "none":
	default:
		errs = append(errs, fmt.Errorf("relay.starttls: unknown policy %q", c.Relay.StartTLS))
	}
	d := strings.TrimSpace(c.Mail.Domain)
	if d == "" || strings.ContainsAny(d, "@ \t") {
		errs = append(errs, fmt.Errorf("mail.domain: invalid %q", c.Mail.Domain))
	}
	if cc := strings.TrimSpace(c.Mail.CC); cc != "" {
		if _, err := mail.ParseAddress(cc); err != nil {
			errs = append(errs, fmt.Errorf("mail.cc: %w", err))
		}
	}
	if c.Dispatch.RatePerSec < 0 {
		errs = append(errs, errors.New("dispatch.rate_per_sec must be >= 0"))
	}
	if _, err := ParseDurationField("watch.debounce", c.Watch.Debounce); err != nil {
		errs = append(errs, err)
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RelayTimeout returns the effective session timeout.
func (c *Config) RelayTimeout() time.Duration {
	d, err := ParseDurationOrDefault("relay.timeout", c.Relay.Timeout, DefaultRelayTimeout)
	if err != nil {
		return DefaultRelayTimeout
	}
	return d
}

// WatchDebounce returns the effective drop-folder debounce.
func (c *Config) WatchDebounce() time.Duration {
	d, err := ParseDurationOrDefault("watch.debounce", c.Watch.Debounce, DefaultDebounce)
	if err != nil {
		return DefaultDebounce
	}
	return d
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
