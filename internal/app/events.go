package app

import (
	"context"

	"announcebot/internal/broadcast"
	"announcebot/internal/eventbus"
	logx "announcebot/pkg/logx"
	"announcebot/pkg/systemd"
)

// watchBroadcasts mirrors run lifecycle events into the debug log and the
// systemd STATUS line until ctx is done or the subscription closes.
func (a *App) watchBroadcasts(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.onBroadcastEvent(e)
		}
	}
}

func (a *App) onBroadcastEvent(e eventbus.Event) {
	st, _ := e.Data.(broadcast.JobStatus)
	a.log.Debug("broadcast event",
		logx.String("type", string(e.Type)),
		logx.String("run", e.RunID),
		logx.String("target", st.TargetChannelID),
	)

	var err error
	switch e.Type {
	case eventbus.BroadcastStarted:
		_, err = systemd.Status("announcing %s", e.RunID)
	case eventbus.BroadcastFinished:
		r := st.Result
		_, err = systemd.Status("idle; last run %d/%d delivered, %d failed", r.Successful, r.Total, r.Failed)
	}
	if err != nil {
		a.log.Debug("sd_notify status failed", logx.Err(err))
	}
}
