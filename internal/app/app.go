// Package app wires configuration, logging, storage, the Discord adapter,
// the command dispatcher and the broadcast queue into one runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"announcebot/internal/broadcast"
	"announcebot/internal/command"
	"announcebot/internal/config"
	"announcebot/internal/eventbus"
	"announcebot/internal/maintenance"
	rtsup "announcebot/internal/runtime/supervisor"
	"announcebot/internal/storage"
	kit "announcebot/internal/transport"
	"announcebot/internal/transport/discord"
	logx "announcebot/pkg/logx"
	"announcebot/pkg/systemd"
)

// Options come from the command line.
type Options struct {
	ConfigPath string
	EnvFile    string
	// LogLevel overrides logging.level when set.
	LogLevel string
}

type App struct {
	opts Options

	cfgm *config.ConfigManager
	// fileCfg is the config as stored on disk (no env overlay); the watcher diffs against it.
	fileCfg *config.Config
	sup     *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	queue   *broadcast.Service
	disp    *command.Dispatcher
	maint   *maintenance.Service
	events  *eventbus.Bus

	updates chan kit.Update
}

// New loads the configuration and builds every component. It fails with
// config.ErrMissingCredentials when the token or the authorized user is
// missing; the bot must not come online in that case.
func New(opts Options) (*App, error) {
	bootLog := logx.NewConsole(opts.LogLevel).With(logx.String("comp", "app"))

	if err := config.LoadEnvFile(opts.EnvFile); err != nil {
		bootLog.Warn("env file not loaded", logx.String("path", opts.EnvFile), logx.Err(err))
	}

	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfgm.SetLogger(bootLog.With(logx.String("comp", "config")))
	fileCfg := cfgm.Load()
	cfg := config.ApplyEnv(fileCfg)
	if err := config.Validate(cfg); err != nil {
		bootLog.Error("bot initialization error", logx.String("path", cfgm.Path()), logx.Err(err))
		return nil, err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	mc, err := mapMaintenanceConfig(cfg)
	if err != nil {
		return nil, err
	}
	bc, err := mapBroadcastConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg, opts.LogLevel))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	} else {
		log.Info("storage disabled")
	}

	ad, err := discord.New(discord.Config{Token: cfg.Token}, log.With(logx.String("comp", "discord")))
	if err != nil {
		closeStore(store)
		_ = logSvc.Close()
		return nil, err
	}
	logSvc.SetSender(ad)

	events := eventbus.New()
	bc.queue.Events = events
	engine := broadcast.NewEngine(bc.engine, ad, store, log.With(logx.String("comp", "broadcast.engine")))
	queue := broadcast.New(bc.queue, engine, log.With(logx.String("comp", "broadcast")))
	disp := command.New(mapCommandConfig(cfg), ad.Self, ad, queue, log.With(logx.String("comp", "command")))

	var pruner maintenance.Pruner
	if store != nil {
		pruner = store
	}
	maint, err := maintenance.New(mc, pruner, log.With(logx.String("comp", "maintenance")))
	if err != nil {
		closeStore(store)
		_ = logSvc.Close()
		return nil, err
	}

	return &App{
		opts:    opts,
		cfgm:    cfgm,
		fileCfg: fileCfg,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		store:   store,
		adapter: ad,
		queue:   queue,
		disp:    disp,
		maint:   maint,
		events:  events,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is cancelled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	sub, unsub := a.events.Subscribe(32)
	a.sup.Go0("broadcast.events", func(c context.Context) {
		defer unsub()
		a.watchBroadcasts(c, sub)
	})

	a.queue.Start(runCtx)
	a.maint.Start(runCtx)

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		a.sup.Cancel()
		return err
	}

	a.sup.Go("updates.dispatch", func(c context.Context) error {
		return a.dispatchLoop(c)
	})
	// The watcher only warns; its failures must never stop the bot.
	a.sup.GoRestart("config.watch", time.Second, 30*time.Second, func(c context.Context) error {
		return a.cfgm.Watch(c, a.fileCfg, nil)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up := <-a.updates:
			a.handleUpdate(ctx, up)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateReady:
		tag := ""
		if up.Self != nil {
			tag = up.Self.Tag
		}
		a.log.Info(fmt.Sprintf("bot logged in as %s", tag), logx.String("user_id", a.adapter.Self()))
		if sent, err := systemd.Ready(); err != nil {
			a.log.Warn("sd_notify ready failed", logx.Err(err))
		} else if sent {
			a.log.Debug("sd_notify ready sent")
		}
	case kit.UpdateMessage:
		// Rejections are replied to and logged by the dispatcher middleware.
		_ = a.disp.Handle(ctx, up.Message)
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}

	// Cancel first so no new commands are dispatched.
	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component cannot stall the rest.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	// The queue goes first: an in-flight run still posts its summary and
	// final display over REST, which outlives the gateway connection.
	step("broadcast", 10*time.Second, func(c context.Context) error { a.queue.Stop(c); return nil })
	step("maintenance", 2*time.Second, func(c context.Context) error { a.maint.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	c := a.sup.Counters()
	a.log.Debug("supervisor drained", logx.Int64("active", c.Active), logx.Uint64("started", c.Started))

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}
