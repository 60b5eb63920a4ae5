// Package maintenance runs periodic housekeeping on a cron schedule. Today
// that is a single job: pruning announcement log records past their
// retention window.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "announcebot/pkg/logx"
)

const DefaultSchedule = "@daily"

// Pruner deletes records older than a cutoff. storage.Store implements it.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

type Config struct {
	// Retention is how long records are kept; <= 0 disables pruning.
	Retention time.Duration
	// Schedule is a cron spec (5 or 6 fields) or a descriptor. DefaultSchedule when empty.
	Schedule string
	// Timeout bounds one prune run (default 1m).
	Timeout time.Duration
	// Location for the schedule; local time when nil.
	Location *time.Location
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	store  Pruner
	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc

	now func() time.Time
}

func New(cfg Config, store Pruner, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Service{
		cfg:   cfg,
		store: store,
		log:   log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:    time.Now,
	}
	if _, err := s.parser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Enabled reports whether Start will schedule anything.
func (s *Service) Enabled() bool {
	return s.store != nil && s.cfg.Retention > 0
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if !s.Enabled() {
		s.log.Debug("retention disabled")
		return
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: s.log})),
	)
	runCtx := s.runCtx
	if _, err := s.c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("retention prune failed", logx.Err(err))
		}
	}); err != nil {
		// schedule was validated in New
		s.log.Error("retention schedule rejected", logx.Err(err))
		s.cancel()
		s.c = nil
		return
	}
	s.c.Start()
	s.log.Info("service started",
		logx.String("schedule", s.cfg.Schedule),
		logx.Duration("retention", s.cfg.Retention),
		logx.String("tz", s.cfg.Location.String()),
	)
}

// RunOnce prunes records older than the retention window and returns how
// many were removed.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cutoff := s.now().Add(-s.cfg.Retention)
	start := time.Now()
	n, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("retention pruned log records", logx.Int("removed", n), logx.Time("before", cutoff), logx.Duration("dur", time.Since(start)))
	} else {
		s.log.Debug("retention found nothing to prune", logx.Time("before", cutoff))
	}
	return n, nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("service stopped")
}

// cronLogger routes cron's internal messages into logx.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Warn("cron: "+msg, logx.Err(err), logx.Any("kv", keysAndValues))
}
