package app

import (
	"fmt"
	"strings"
	"time"

	"venuemail/internal/config"
	"venuemail/internal/dispatch"
	"venuemail/internal/storage"
	logx "venuemail/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		if path == "" {
			path = "./venuemail.journal"
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}

func mapRelayConfig(cfg *config.Config) (dispatch.RelayConfig, error) {
	policy, err := dispatch.ParseStartTLS(cfg.Relay.StartTLS)
	if err != nil {
		return dispatch.RelayConfig{}, fmt.Errorf("relay.starttls: %w", err)
	}
	return dispatch.RelayConfig{
		Host:      strings.TrimSpace(cfg.Relay.Host),
		Port:      cfg.Relay.Port,
		Timeout:   cfg.RelayTimeout(),
		StartTLS:  policy,
		LocalName: strings.TrimSpace(cfg.Relay.LocalName),
	}, nil
}

// OpenStore opens the configured run journal; it returns (nil, nil) when
// storage is disabled.
func OpenStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		return nil, err
	}
	st, err := storage.Open(sc, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	return st, nil
}
