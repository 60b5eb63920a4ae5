package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty the file driver is used; "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// LogRecord is one finished announcement run.
// Records are append-only and kept in chronological order.
type LogRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	SuccessCount int       `json:"successCount"`
	FailedCount  int       `json:"failedCount"`

	Total     int    `json:"total,omitempty"`
	RunID     string `json:"runId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

// Store is the persistence API used by the broadcast engine and maintenance.
type Store interface {
	AppendLog(ctx context.Context, r LogRecord) error
	// Logs returns the newest limit records, oldest first. limit <= 0 returns all.
	Logs(ctx context.Context, limit int) ([]LogRecord, error)
	// Prune removes records older than before and reports how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}
