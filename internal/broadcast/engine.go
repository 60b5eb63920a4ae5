package broadcast

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"announcebot/internal/format"
	"announcebot/internal/storage"
	kit "announcebot/internal/transport"
	logx "announcebot/pkg/logx"
)

type EngineConfig struct {
	Branding format.Branding
	// RatePerSec paces direct messages; 0 disables pacing.
	RatePerSec int
}

// Engine performs announcement runs. It holds no per-run state, so a single
// Engine can be shared, but the Service only ever runs one job at a time.
type Engine struct {
	tr       Transport
	store    storage.Store
	log      logx.Logger
	branding format.Branding
	limiter  *rate.Limiter

	now func() time.Time
}

// NewEngine builds an Engine. store may be nil (log records are then skipped).
func NewEngine(cfg EngineConfig, tr Transport, store storage.Store, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		tr:       tr,
		store:    store,
		log:      log,
		branding: cfg.Branding,
		now:      time.Now,
	}
	if cfg.RatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return e
}

// Run delivers j to every non-automated member of the guild and returns the
// final counters. It never fails: delivery errors are counted, everything
// else is logged. The progress display is rendered once up front, once per
// attempted member and once at the end.
func (e *Engine) Run(ctx context.Context, j Job) Result {
	start := e.now()
	log := e.log.With(logx.String("run", j.ID), logx.String("guild_id", j.GuildID), logx.String("channel_id", j.TargetChannelID))

	var progress kit.MessageRef
	ref, err := e.tr.Reply(ctx, j.Trigger, format.Progress(0, 0, 0, start))
	if err != nil {
		log.Warn("progress display failed; continuing without live updates", logx.Err(err))
	} else {
		progress = ref
	}
	render := func(ctx context.Context, p format.Payload) {
		if progress.MessageID == "" {
			return
		}
		if err := e.tr.Edit(ctx, progress, p); err != nil {
			log.Debug("progress update failed", logx.Err(err))
		}
	}

	announcement := format.Announcement(j.Text, j.Author, e.branding, start)

	members, err := e.tr.Members(ctx, j.GuildID)
	if err != nil {
		log.Error("member roster fetch failed", logx.Err(err))
		members = nil
	}

	var res Result
	for _, m := range members {
		if !m.Bot {
			res.Total++
		}
	}
	log.Info("broadcast started", logx.Int("members", len(members)), logx.Int("eligible", res.Total))

	for _, m := range members {
		if m.Bot {
			continue
		}
		if err := e.deliver(ctx, m, announcement); err != nil {
			res.Failed++
			log.Debug("direct message failed", logx.String("user_id", m.ID), logx.Err(err))
		} else {
			res.Successful++
		}
		if j.progress != nil {
			j.progress(res)
		}
		render(ctx, format.Progress(res.Total, res.Successful, res.Failed, e.now()))
	}

	// The terminal steps run even if ctx was cancelled mid-run.
	final := context.WithoutCancel(ctx)
	now := e.now()

	if _, err := e.tr.SendChannel(final, j.TargetChannelID, format.Summary(res.Total, res.Successful, res.Failed, now)); err != nil {
		log.Warn("summary post failed", logx.Err(err))
	}

	if e.store != nil {
		rec := storage.LogRecord{
			Timestamp:    now,
			SuccessCount: res.Successful,
			FailedCount:  res.Failed,
			Total:        res.Total,
			RunID:        j.ID,
			ChannelID:    j.TargetChannelID,
		}
		if err := e.store.AppendLog(final, rec); err != nil {
			log.Warn("log saving error", logx.Err(err))
		}
	} else {
		log.Debug("storage disabled; log record skipped")
	}

	render(final, format.Completed(res.Total, res.Successful, res.Failed, now))

	fields := []logx.Field{
		logx.Int("total", res.Total),
		logx.Int("successful", res.Successful),
		logx.Int("failed", res.Failed),
		logx.Duration("dur", now.Sub(start)),
	}
	if res.Failed > 0 {
		log.Warn("broadcast finished with failures", fields...)
	} else {
		log.Info("broadcast finished", fields...)
	}
	return res
}

func (e *Engine) deliver(ctx context.Context, m kit.Member, p format.Payload) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return e.tr.SendDirect(ctx, m.ID, p)
}
