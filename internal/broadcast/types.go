// Package broadcast delivers an announcement to every member of a guild,
// one direct message at a time, while keeping a progress display current.
//
// Runs are serialized: the Service owns a single worker that executes queued
// jobs strictly in order.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"announcebot/internal/eventbus"
	"announcebot/internal/format"
	kit "announcebot/internal/transport"
	logx "announcebot/pkg/logx"
)

var (
	ErrQueueFull  = errors.New("broadcast queue full")
	ErrNotRunning = errors.New("broadcast service not running")
)

// Transport is the subset of the chat adapter a run needs.
type Transport interface {
	Reply(ctx context.Context, to *kit.Message, p format.Payload) (kit.MessageRef, error)
	Edit(ctx context.Context, ref kit.MessageRef, p format.Payload) error
	SendChannel(ctx context.Context, channelID string, p format.Payload) (kit.MessageRef, error)
	SendDirect(ctx context.Context, userID string, p format.Payload) error
	Members(ctx context.Context, guildID string) ([]kit.Member, error)
}

// Job is one accepted announce command.
type Job struct {
	ID string

	// Trigger is the command message; the progress display replies to it.
	Trigger *kit.Message
	GuildID string
	// TargetChannelID receives the summary once the run completes.
	TargetChannelID string

	Text   string
	Author format.Author

	EnqueuedAt time.Time

	// progress is set by the Service to mirror live counters into Status().
	progress func(Result)
}

// Result holds the counters of a run. Automated accounts never count.
type Result struct {
	Total      int
	Successful int
	Failed     int
}

// Attempted is the number of members a delivery was tried for.
func (r Result) Attempted() int { return r.Successful + r.Failed }

type Config struct {
	// QueueSize bounds pending jobs while one is running (default 8).
	QueueSize int
	// Events receives queued/started/finished notifications; nil disables them.
	Events *eventbus.Bus
}

type JobStatus struct {
	ID              string
	TargetChannelID string
	Result          Result
	EnqueuedAt      time.Time
	StartedAt       time.Time
	DoneAt          time.Time
	Running         bool
}

// Status is a point-in-time view of the queue.
type Status struct {
	Running   *JobStatus
	Last      *JobStatus
	Pending   int
	Completed uint64
}

// Runner executes a single job. *Engine implements it.
type Runner interface {
	Run(ctx context.Context, j Job) Result
}

type Service struct {
	mu sync.Mutex

	cfg    Config
	runner Runner
	log    logx.Logger

	queue  chan Job
	stopCh chan struct{}
	// stopDone is non-nil while a Stop() is in progress; it is closed when the worker exits.
	stopDone  chan struct{}
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
	// outstanding counts accepted jobs whose run has not returned yet
	// (queued plus running); guarded by mu.
	outstanding int

	statusMu  sync.RWMutex
	running   *JobStatus
	last      *JobStatus
	completed uint64
}
