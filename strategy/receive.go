// File: strategy/receive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Strategies driven by inbound messages.

package strategy

import (
	"context"
	"fmt"

	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/session"
	"go.uber.org/zap"
)

// DiscardAck consumes every frame and drops completed messages.
type DiscardAck struct{}

// NewDiscardAck returns a DiscardAck strategy.
func NewDiscardAck() *DiscardAck {
	return &DiscardAck{}
}

// OnEvent implements session.Strategy.
func (d *DiscardAck) OnEvent(_ context.Context, c *session.Conn, ev session.Event) error {
	if ev.Type != session.EventReadable {
		return nil
	}
	res, ok, err := next(c)
	if err != nil || !ok {
		return err
	}
	if res.Complete() {
		res.Message.Release()
	}
	return nil
}

// Report is the summary sent by LengthReport for a completed message.
type Report struct {
	Type   api.MessageType
	Last   bool
	Length int
	Data   []byte
}

// String renders the report as sent on the wire.
func (r Report) String() string {
	last := 0
	if r.Last {
		last = 1
	}
	return fmt.Sprintf("{type: %d, last: %d, length: %d, data: \"%s\"}\n",
		r.Type, last, r.Length, r.Data)
}

// LengthReport answers each completed message with a text Report quoting
// the leading bytes of its content.
type LengthReport struct {
	prefix int
}

// NewLengthReport returns a LengthReport quoting up to prefix bytes.
func NewLengthReport(prefix int) *LengthReport {
	if prefix <= 0 {
		prefix = DefaultPrefixLen
	}
	return &LengthReport{prefix: prefix}
}

// OnEvent implements session.Strategy.
func (l *LengthReport) OnEvent(ctx context.Context, c *session.Conn, ev session.Event) error {
	if ev.Type != session.EventReadable {
		return nil
	}
	res, ok, err := next(c)
	if err != nil || !ok {
		return err
	}
	if !res.Complete() {
		c.Logger().Debug("partial message",
			zap.Stringer("type", res.Frame.Type),
			zap.Int("length", res.Length),
		)
		return nil
	}
	msg := res.Message
	rep := Report{
		Type:   msg.Type(),
		Last:   true,
		Length: msg.Len(),
		Data:   msg.Prefix(l.prefix),
	}
	out := []byte(rep.String())
	msg.Release()
	return c.Send(ctx, api.MessageText, out, 0)
}

// Echo sends each completed message back as one message of the same type.
// Its scratch buffer is private to the instance.
type Echo struct {
	scratch []byte
	typ     api.MessageType
}

// NewEcho returns an Echo strategy with an empty scratch buffer.
func NewEcho() *Echo {
	return &Echo{}
}

// OnEvent implements session.Strategy.
func (e *Echo) OnEvent(ctx context.Context, c *session.Conn, ev session.Event) error {
	if ev.Type != session.EventReadable {
		e.scratch = nil
		return nil
	}
	res, ok, err := next(c)
	if err != nil || !ok {
		return err
	}
	e.typ = res.Frame.Type
	e.scratch = append(e.scratch, res.Frame.Payload...)
	if !res.Complete() {
		return nil
	}
	res.Message.Release()
	err = c.Send(ctx, e.typ, e.scratch, 0)
	e.scratch = e.scratch[:0]
	return err
}
