package command

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "announcebot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger := log
					if req != nil && !req.Logger.IsZero() {
						logger = req.Logger
					}
					logger.Error("panic recovered",
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			logger := log
			if req != nil && !req.Logger.IsZero() {
				logger = req.Logger
			}
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{
				logx.String("guild_id", req.Message.GuildID),
				logx.String("channel_id", req.Message.ChannelID),
				logx.String("from_id", req.Message.Author.ID),
				logx.String("outcome", string(req.Outcome)),
				logx.Duration("dur", d),
			}
			if req.RunID != "" {
				fields = append(fields, logx.String("run", req.RunID))
			}
			if err != nil {
				logger.Warn("request failed", append(fields, logx.Err(err))...)
			} else if req.Outcome == OutcomeDenied {
				logger.Warn("request denied", fields...)
			} else {
				logger.Info("request ok", fields...)
			}
			return err
		}
	}
}
