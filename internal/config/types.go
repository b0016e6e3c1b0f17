package config

// Config is the on-disk configuration (YAML or JSON).
//
// Credentials are intentionally absent: the sender identity is supplied per
// run (flag, environment or prompt) and never written to disk.
type Config struct {
	Relay    RelayConfig    `json:"relay"`
	Mail     MailConfig     `json:"mail"`
	Dispatch DispatchConfig `json:"dispatch"`
	Template TemplateConfig `json:"template"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Watch    WatchConfig    `json:"watch"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// RelayConfig describes the outbound SMTP relay.
//
// Timeout is a Go duration string (e.g. "30s"). It bounds dialing and every
// SMTP command of one session.
type RelayConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Timeout string `json:"timeout,omitempty"`
	// StartTLS is one of "mandatory" (default), "opportunistic" or "none".
	StartTLS  string `json:"starttls,omitempty"`
	LocalName string `json:"local_name,omitempty"`
}

// MailConfig holds the fixed parts of every outbound message.
type MailConfig struct {
	// Domain is appended to the cleaned student id: <id>@<domain>.
	Domain   string `json:"domain"`
	CC       string `json:"cc"`
	FromName string `json:"from_name,omitempty"`
}

// DispatchConfig controls the send loop.
//
// RatePerSec paces sessions; 0 leaves the loop unthrottled.
type DispatchConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// TemplateConfig optionally overrides the built-in HTML body.
type TemplateConfig struct {
	Path string `json:"path,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional run journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./venuemail.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// WatchConfig controls the drop-folder mode.
type WatchConfig struct {
	Dir string `json:"dir,omitempty"`
	// Debounce is how long a file must stay quiet before it is processed.
	Debounce string `json:"debounce,omitempty"`
	// Attachments are attached to every message of every batch.
	Attachments []string `json:"attachments,omitempty"`
}

// MetricsConfig controls the optional Prometheus endpoint (watch mode only).
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
}
