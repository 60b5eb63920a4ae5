package storage

import (
	"errors"
	"strings"

	logx "announcebot/pkg/logx"
)

// DefaultPath is the file driver's default location.
const DefaultPath = "./announcement_logs.json"

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// tail returns the last limit records (all when limit <= 0).
func tail(recs []LogRecord, limit int) []LogRecord {
	if limit <= 0 || len(recs) <= limit {
		return recs
	}
	return recs[len(recs)-limit:]
}
