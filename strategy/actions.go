// File: strategy/actions.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Name to action registry.

package strategy

import (
	"context"
	"maps"
	"slices"

	"github.com/momentics/hioload-wsmsg/session"
	"go.uber.org/zap"
)

// Action prepares a freshly accepted connection for one request kind.
type Action func(ctx context.Context, c *session.Conn) error

// Install returns an Action that disables auto-finalization, installs the
// strategy built by newStrategy wrapped in mws, and starts it when it
// implements session.Starter. A failed start moves the connection to Error.
func Install(newStrategy func() session.Strategy, mws ...Middleware) Action {
	return func(ctx context.Context, c *session.Conn) error {
		s := newStrategy()
		c.DisableAutoFinalize()
		c.SetStrategy(Chain(s, mws...))
		st, ok := s.(session.Starter)
		if !ok {
			return nil
		}
		if err := st.Start(ctx, c); err != nil {
			if nerr := c.Notify(ctx, session.Event{Type: session.EventError, Err: err}); nerr != nil {
				c.Logger().Debug("start failure not delivered", zap.Error(nerr))
			}
			return err
		}
		return nil
	}
}

// NewActions builds the action registry. Every call to an action creates a
// fresh strategy instance.
func NewActions(opts Options) map[string]Action {
	o := opts.withDefaults()
	mws := o.Middleware

	discard := Install(func() session.Strategy { return NewDiscardAck() }, mws...)
	length := Install(func() session.Strategy { return NewLengthReport(o.PrefixLen) }, mws...)

	return map[string]Action{
		"basic-construct": discard,
		"basic-open":      discard,
		"basic-send":      discard,
		"basic-echo":      Install(func() session.Strategy { return NewEcho() }, mws...),
		"basic-ssl":       length,
		"basic-len":       length,
		"basic-empty":     Install(func() session.Strategy { return NewEmptySend() }, mws...),
		"basic-big":       Install(func() session.Strategy { return NewBulkSend(o.BulkLines) }, mws...),
		"basic-frames":    Install(func() session.Strategy { return NewFramesSend(o.FrameCount) }, mws...),
	}
}

// Names returns the registered action names in sorted order.
func Names(actions map[string]Action) []string {
	return slices.Sorted(maps.Keys(actions))
}
