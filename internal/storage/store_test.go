package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "announcebot/pkg/logx"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	stores := map[string]Store{}
	for _, c := range []Config{
		{Driver: "file", Path: filepath.Join(dir, "logs.json")},
		{Driver: "sqlite", Path: filepath.Join(dir, "logs.db")},
	} {
		st, err := Open(c, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", c.Driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		stores[c.Driver] = st
	}
	return stores
}

func TestAppendAndReadInOrder(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, st := range openTestStores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				r := LogRecord{Timestamp: base.Add(time.Duration(i) * time.Minute), SuccessCount: i, FailedCount: 10 - i, Total: 10, RunID: "run"}
				if err := st.AppendLog(ctx, r); err != nil {
					t.Fatalf("AppendLog: %v", err)
				}
			}
			all, err := st.Logs(ctx, 0)
			if err != nil {
				t.Fatalf("Logs: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("len = %d, want 3", len(all))
			}
			for i, r := range all {
				if r.SuccessCount != i || r.FailedCount != 10-i {
					t.Fatalf("record %d = %+v", i, r)
				}
				if !r.Timestamp.Equal(base.Add(time.Duration(i) * time.Minute)) {
					t.Fatalf("record %d timestamp = %v", i, r.Timestamp)
				}
			}

			last, err := st.Logs(ctx, 2)
			if err != nil {
				t.Fatalf("Logs(2): %v", err)
			}
			if len(last) != 2 || last[0].SuccessCount != 1 || last[1].SuccessCount != 2 {
				t.Fatalf("Logs(2) = %+v", last)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for name, st := range openTestStores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = st.AppendLog(ctx, LogRecord{Timestamp: now.Add(-48 * time.Hour), SuccessCount: 1})
			_ = st.AppendLog(ctx, LogRecord{Timestamp: now.Add(-time.Hour), SuccessCount: 2})

			n, err := st.Prune(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("Prune: %v", err)
			}
			if n != 1 {
				t.Fatalf("pruned = %d, want 1", n)
			}
			left, _ := st.Logs(ctx, 0)
			if len(left) != 1 || left[0].SuccessCount != 2 {
				t.Fatalf("remaining = %+v", left)
			}
		})
	}
}

func TestFileStoreCorruptLogStartsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs.json")
	if err := os.WriteFile(path, []byte("{{{"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.AppendLog(context.Background(), LogRecord{SuccessCount: 0, FailedCount: 0}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("log file is not a JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("len = %d, want 1", len(raw))
	}
	for _, k := range []string{"timestamp", "successCount", "failedCount"} {
		if _, ok := raw[0][k]; !ok {
			t.Fatalf("record missing %q: %v", k, raw[0])
		}
	}
	if _, ok := raw[0]["runId"]; ok {
		t.Fatalf("empty runId should be omitted: %v", raw[0])
	}
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("Open(none) = %v, %v; want nil, nil", st, err)
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("expected error for sqlite without path")
	}
}
