package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "venuemail/pkg/logx"
)

// Store is the persistence API used by the pipeline and watch mode.
type Store interface {
	AppendRun(ctx context.Context, e RunEntry) error
	// MarkProcessed records that the dataset identified by key (a content
	// hash) has been dispatched.
	MarkProcessed(ctx context.Context, key, source string, at time.Time) error
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Runs returns up to limit entries, newest first.
	Runs(ctx context.Context, limit int) ([]RunEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
