package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "announcebot/pkg/logx"
)

// fileStore keeps every record in one JSON array:
//
//	[ {"timestamp": "...", "successCount": 1, "failedCount": 0}, ... ]
//
// Each append is a whole-file read-modify-write. The mutex serializes
// writers inside this process; a second process writing the same file can
// still lose updates.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) AppendLog(ctx context.Context, r LogRecord) error {
	_ = ctx
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Timestamp = r.Timestamp.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.readLocked()
	recs = append(recs, r)
	return s.writeLocked(recs)
}

func (s *fileStore) Logs(ctx context.Context, limit int) ([]LogRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.readLocked(), limit), nil
}

func (s *fileStore) Prune(ctx context.Context, before time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.readLocked()
	kept := recs[:0]
	for _, r := range recs {
		if r.Timestamp.Before(before) {
			continue
		}
		kept = append(kept, r)
	}
	removed := len(recs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.writeLocked(kept)
}

// readLocked returns the stored records. A missing or unreadable file reads
// as an empty log.
func (s *fileStore) readLocked() []LogRecord {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("log store unreadable; starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return []LogRecord{}
	}
	var recs []LogRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		s.log.Warn("log store corrupt; starting empty", logx.String("path", s.path), logx.Err(err))
		return []LogRecord{}
	}
	return recs
}

func (s *fileStore) writeLocked(recs []LogRecord) error {
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
