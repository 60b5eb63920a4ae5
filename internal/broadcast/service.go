package broadcast

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"announcebot/internal/eventbus"
	logx "announcebot/pkg/logx"
)

const defaultQueueSize = 8

func New(cfg Config, runner Runner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Service{
		cfg:    cfg,
		runner: runner,
		log:    log,
		queue:  make(chan Job, size),
	}
}

// Start launches the single worker. Calling Start on a running Service is a no-op.
func (s *Service) Start(ctx context.Context) {
	// If a Stop() is in progress, wait for it to complete.
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			// already running
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	s.stopCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	// keep queue across restarts (jobs remain pending)
	queue := s.queue
	stopCh := s.stopCh

	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.worker(runCtx, stopCh, queue)
	}()

	s.log.Info("service started", logx.Int("queue_cap", cap(queue)))
}

// Stop signals the worker and waits for it (bounded by ctx). A run that is
// in flight observes a cancelled context: remaining deliveries fail fast and
// the run still finishes its summary, log record and final display.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	go func() {
		s.workerWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

// Enqueue accepts a job for the worker and returns how many jobs are ahead
// of it (0 means it starts right away).
func (s *Service) Enqueue(j Job) (int, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}

	s.mu.Lock()
	if s.stopCh == nil || s.stopDone != nil {
		s.mu.Unlock()
		return 0, ErrNotRunning
	}
	select {
	case s.queue <- j:
	default:
		s.mu.Unlock()
		s.log.Warn("broadcast queue full; rejecting job", logx.String("run", j.ID), logx.Int("queue_cap", cap(s.queue)))
		return 0, ErrQueueFull
	}
	ahead := s.outstanding
	s.outstanding++
	s.mu.Unlock()

	s.log.Debug("broadcast job enqueued", logx.String("run", j.ID), logx.Int("ahead", ahead))
	s.cfg.Events.Publish(eventbus.Event{Type: eventbus.BroadcastQueued, RunID: j.ID, Data: JobStatus{
		ID: j.ID, TargetChannelID: j.TargetChannelID, EnqueuedAt: j.EnqueuedAt,
	}})
	return ahead, nil
}

// Status returns copies; callers may keep them.
func (s *Service) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st := Status{Pending: len(s.queue), Completed: s.completed}
	if s.running != nil {
		cp := *s.running
		st.Running = &cp
	}
	if s.last != nil {
		cp := *s.last
		st.Last = &cp
	}
	return st
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan Job) {
	for {
		// fast-exit so stop wins over queued work
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case j := <-queue:
			s.exec(ctx, j)
		}
	}
}

func (s *Service) exec(ctx context.Context, j Job) {
	st := &JobStatus{
		ID:              j.ID,
		TargetChannelID: j.TargetChannelID,
		EnqueuedAt:      j.EnqueuedAt,
		StartedAt:       time.Now(),
		Running:         true,
	}
	s.statusMu.Lock()
	s.running = st
	s.statusMu.Unlock()
	s.cfg.Events.Publish(eventbus.Event{Type: eventbus.BroadcastStarted, RunID: j.ID, Data: *st})

	j.progress = func(r Result) {
		s.statusMu.Lock()
		if s.running != nil && s.running.ID == j.ID {
			s.running.Result = r
		}
		s.statusMu.Unlock()
	}

	var res Result
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in broadcast run", logx.String("run", j.ID), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		res = s.runner.Run(ctx, j)
	}()

	s.statusMu.Lock()
	st.Result = res
	st.Running = false
	st.DoneAt = time.Now()
	s.running = nil
	s.last = st
	s.completed++
	done := *st
	s.statusMu.Unlock()

	s.mu.Lock()
	s.outstanding--
	s.mu.Unlock()
	s.cfg.Events.Publish(eventbus.Event{Type: eventbus.BroadcastFinished, RunID: j.ID, Time: done.DoneAt, Data: done})
}
