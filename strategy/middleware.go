// File: strategy/middleware.go
// Author: momentics <momentics@gmail.com>
//
// Strategy middleware with logging, panic recovery and counters.

package strategy

import (
	"context"

	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/session"
	"github.com/yanun0323/errors"
	"go.uber.org/zap"
)

// Middleware decorates a strategy.
type Middleware func(session.Strategy) session.Strategy

// Chain applies mws to s so that mws[0] is the outermost layer.
func Chain(s session.Strategy, mws ...Middleware) session.Strategy {
	for i := len(mws) - 1; i >= 0; i-- {
		s = mws[i](s)
	}
	return s
}

// Logging logs every event at debug level and failures at warn level.
func Logging(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next session.Strategy) session.Strategy {
		return session.StrategyFunc(func(ctx context.Context, c *session.Conn, ev session.Event) error {
			log.Debug("strategy event",
				zap.String("conn", c.ID()),
				zap.Stringer("event", ev.Type),
			)
			err := next.OnEvent(ctx, c, ev)
			if err != nil {
				log.Warn("strategy failed",
					zap.String("conn", c.ID()),
					zap.Stringer("event", ev.Type),
					zap.Error(err),
				)
			}
			return err
		})
	}
}

// Recovery converts a panic inside a strategy into an internal error, which
// moves the connection to Error.
func Recovery(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next session.Strategy) session.Strategy {
		return session.StrategyFunc(func(ctx context.Context, c *session.Conn, ev session.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("strategy panic recovered",
						zap.String("conn", c.ID()),
						zap.Any("panic", r),
					)
					err = api.WrapError(api.ErrCodeInternal, errors.Errorf("panic: %v", r), "strategy")
				}
			}()
			return next.OnEvent(ctx, c, ev)
		})
	}
}

// Counter receives named counter increments.
type Counter interface {
	Add(name string, delta int64)
}

// Metrics counts dispatched events per type and strategy failures.
func Metrics(counter Counter) Middleware {
	return func(next session.Strategy) session.Strategy {
		return session.StrategyFunc(func(ctx context.Context, c *session.Conn, ev session.Event) error {
			counter.Add("strategy.events."+ev.Type.String(), 1)
			err := next.OnEvent(ctx, c, ev)
			if err != nil {
				counter.Add("strategy.errors", 1)
			}
			return err
		})
	}
}
