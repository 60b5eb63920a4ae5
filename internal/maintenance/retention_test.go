package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "announcebot/pkg/logx"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int
	err     error
}

func (f *fakePruner) Prune(_ context.Context, before time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return f.n, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New(Config{Retention: time.Hour, Schedule: "every tuesday"}, &fakePruner{}, logx.Nop()); err == nil {
		t.Fatal("expected schedule error")
	}
	for _, spec := range []string{"", "@daily", "0 3 * * *", "*/30 * * * * *", "@every 1h"} {
		if _, err := New(Config{Schedule: spec}, &fakePruner{}, logx.Nop()); err != nil {
			t.Fatalf("New(%q): %v", spec, err)
		}
	}
}

func TestRunOnceUsesRetentionCutoff(t *testing.T) {
	p := &fakePruner{n: 3}
	s, err := New(Config{Retention: 48 * time.Hour}, p, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RunOnce(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("RunOnce() = %d, %v", n, err)
	}
	if want := now.Add(-48 * time.Hour); !p.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", p.cutoffs[0], want)
	}
}

func TestRunOnceDisabled(t *testing.T) {
	p := &fakePruner{}
	s, _ := New(Config{}, p, logx.Nop())
	if s.Enabled() {
		t.Fatal("zero retention should disable pruning")
	}
	if n, err := s.RunOnce(context.Background()); n != 0 || err != nil {
		t.Fatalf("RunOnce() = %d, %v", n, err)
	}
	if p.calls() != 0 {
		t.Fatal("disabled service must not prune")
	}

	s2, _ := New(Config{Retention: time.Hour}, nil, logx.Nop())
	if s2.Enabled() {
		t.Fatal("nil store should disable pruning")
	}
}

func TestRunOncePropagatesError(t *testing.T) {
	p := &fakePruner{err: errors.New("disk full")}
	s, _ := New(Config{Retention: time.Hour}, p, logx.Nop())
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected prune error")
	}
}

func TestStartSchedulesPrune(t *testing.T) {
	p := &fakePruner{}
	s, err := New(Config{Retention: time.Hour, Schedule: "* * * * * *"}, p, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for p.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("prune never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
