// File: session/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn encapsulates one accepted WebSocket connection: its inbound frame
// source, the message reassembler, the single strategy slot and the close
// state.

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/message"
	"go.uber.org/zap"
)

// traceLen is the number of payload bytes logged per read event.
const traceLen = 40

// Option customizes a Conn.
type Option func(*Conn)

// WithID overrides the generated connection identifier.
func WithID(id string) Option {
	return func(c *Conn) {
		c.id = id
	}
}

// WithLogger sets the logger used for event tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxMessageSize caps inbound messages at n bytes. An oversized message
// moves the connection to Error after a 1009 close. 0 is unbounded.
func WithMaxMessageSize(n int) Option {
	return func(c *Conn) {
		c.reasm.SetLimit(n)
	}
}

// strategySlot boxes the interface so it can live in an atomic.Pointer.
type strategySlot struct {
	s Strategy
}

// closeHalf is our side of the close handshake. err is valid once done is
// closed.
type closeHalf struct {
	code   int
	reason string
	done   chan struct{}
	err    error
}

func newCloseHalf(code int, reason string) *closeHalf {
	return &closeHalf{code: code, reason: reason, done: make(chan struct{})}
}

// write sends the close frame and publishes the outcome.
func (h *closeHalf) write(ctx context.Context, tr api.Transport) error {
	h.err = tr.SendClose(ctx, h.code, h.reason)
	close(h.done)
	return h.err
}

// wait reports whether our close frame reached the transport.
func (h *closeHalf) wait(ctx context.Context) bool {
	select {
	case <-h.done:
		return h.err == nil
	case <-ctx.Done():
		return false
	}
}

// Conn is the per-connection notifier.
type Conn struct {
	id        string
	transport api.Transport
	log       *zap.Logger
	reasm     *message.Reassembler

	strategy   atomic.Pointer[strategySlot]
	dispatchMu sync.Mutex

	state   atomic.Int32
	closeMu sync.Mutex
	local   *closeHalf
	record  *CloseRecord
	done    chan struct{}

	autoFinalize atomic.Bool

	framesReceived   atomic.Int64
	bytesReceived    atomic.Int64
	messagesReceived atomic.Int64
	messagesSent     atomic.Int64
	bytesSent        atomic.Int64
}

// NewConn binds a notifier to tr. The connection starts Open with
// auto-finalization enabled and no strategy installed.
func NewConn(tr api.Transport, opts ...Option) *Conn {
	c := &Conn{
		transport: tr,
		log:       zap.NewNop(),
		reasm:     message.NewReassembler(),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	c.log = c.log.With(zap.String("conn", c.id))
	c.autoFinalize.Store(true)
	return c
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current notifier state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Done returns a channel closed once the connection reaches Closed or Error.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Logger returns the connection-scoped logger.
func (c *Conn) Logger() *zap.Logger {
	return c.log
}

// SetStrategy installs s, replacing any previous strategy, and returns the
// previous one. Frames already queued are delivered to whichever strategy
// is installed when their event is dispatched.
func (c *Conn) SetStrategy(s Strategy) Strategy {
	var next *strategySlot
	if s != nil {
		next = &strategySlot{s: s}
	}
	prev := c.strategy.Swap(next)
	if prev == nil {
		return nil
	}
	return prev.s
}

// Strategy returns the installed strategy or nil.
func (c *Conn) Strategy() Strategy {
	if slot := c.strategy.Load(); slot != nil {
		return slot.s
	}
	return nil
}

// DisableAutoFinalize keeps the connection open after handlers return so the
// strategy controls response timing.
func (c *Conn) DisableAutoFinalize() {
	c.autoFinalize.Store(false)
}

// AutoFinalize reports whether the connection finalizes itself.
func (c *Conn) AutoFinalize() bool {
	return c.autoFinalize.Load()
}

// Finalize completes the response by starting a normal close. It is a no-op
// once a close is under way.
func (c *Conn) Finalize(ctx context.Context) error {
	return c.SendClose(ctx, api.CloseNormalClosure, "")
}

// Peek returns the next queued frame without consuming it.
func (c *Conn) Peek() (api.Frame, error) {
	return c.transport.PeekFrame()
}

// Next dequeues the next data frame and feeds it to the reassembler.
// A control frame at the head of the queue is left in place and reported
// as api.ErrControlFrame; the notifier routes it on the next dispatch.
func (c *Conn) Next() (message.Result, error) {
	head, err := c.transport.PeekFrame()
	if err != nil {
		return message.Result{}, err
	}
	if !head.Type.IsData() {
		return message.Result{Frame: head}, api.ErrControlFrame
	}
	f, err := c.transport.DequeueFrame()
	if err != nil {
		return message.Result{}, err
	}
	c.framesReceived.Add(1)
	c.bytesReceived.Add(int64(len(f.Payload)))
	res, err := c.reasm.OnFrame(f)
	if err != nil {
		return res, err
	}
	if res.Complete() {
		c.messagesReceived.Add(1)
	}
	return res, nil
}

// Current returns the in-progress message view, or nil between messages.
func (c *Conn) Current() *message.Message {
	return c.reasm.Current()
}

// Send writes one outbound payload. Sends are only accepted while Open.
// A transport failure is returned as api.ErrSendFailure and is not retried.
func (c *Conn) Send(ctx context.Context, t api.MessageType, payload []byte, flags api.SendFlags) error {
	if st := c.State(); st != StateOpen {
		return api.WrapError(api.ErrCodeInvalidState, nil, "send on "+st.String()+" connection")
	}
	if err := c.transport.SendMessage(ctx, t, payload, flags); err != nil {
		return api.WrapError(api.ErrCodeSendFailure, err, "send message").
			WithContext("type", t.String()).
			WithContext("length", len(payload))
	}
	if !flags.Has(api.SendMore) {
		c.messagesSent.Add(1)
	}
	c.bytesSent.Add(int64(len(payload)))
	return nil
}

// Notify dispatches ev. Events for one connection are handled strictly
// sequentially. Errors returned by the strategy move the connection to
// Error and are returned to the caller.
func (c *Conn) Notify(ctx context.Context, ev Event) error {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	switch ev.Type {
	case EventReadable:
		return c.onReadable(ctx)
	case EventAppClose:
		if st := c.State(); st.Terminal() {
			return c.invalid(st, ev.Type)
		}
		return c.finish(ctx, CloseRecord{StatusCode: ev.Status, Reason: ev.Reason, Orderly: ev.Orderly})
	case EventError:
		if st := c.State(); st.Terminal() {
			return c.invalid(st, ev.Type)
		}
		c.fail(ctx, ev.Err)
		return nil
	default:
		return api.ErrInvalidArgument
	}
}

func (c *Conn) onReadable(ctx context.Context) error {
	st := c.State()
	if st != StateOpen && st != StateClosing {
		return c.invalid(st, EventReadable)
	}
	f, err := c.transport.PeekFrame()
	if err != nil {
		if errors.Is(err, api.ErrQueueEmpty) {
			return nil
		}
		return c.fail(ctx, api.WrapError(api.ErrCodeTransport, err, "peek frame"))
	}
	c.trace(f)

	if f.Type.IsControl() {
		if _, err := c.transport.DequeueFrame(); err != nil {
			return c.fail(ctx, api.WrapError(api.ErrCodeTransport, err, "dequeue frame"))
		}
		return c.onControl(ctx, f)
	}
	if st == StateClosing {
		// The peer may still send data until it sees our close.
		if _, err := c.transport.DequeueFrame(); err != nil {
			return c.fail(ctx, api.WrapError(api.ErrCodeTransport, err, "dequeue frame"))
		}
		return nil
	}

	slot := c.strategy.Load()
	if slot == nil {
		res, err := c.Next()
		if err != nil {
			return c.fail(ctx, err)
		}
		if res.Complete() {
			res.Message.Release()
		}
		if c.AutoFinalize() {
			if err := c.Finalize(ctx); err != nil {
				return c.fail(ctx, err)
			}
		}
		return nil
	}
	if err := slot.s.OnEvent(ctx, c, Event{Type: EventReadable}); err != nil {
		return c.fail(ctx, err)
	}
	return nil
}

func (c *Conn) onControl(ctx context.Context, f api.Frame) error {
	if f.Type == api.MessageClose {
		return c.onRemoteClose(ctx, f.Payload)
	}
	// Ping and pong are answered by the transport.
	return nil
}

// fail moves the connection to Error, drops buffers and strategy state and
// abandons the transport. It returns cause.
func (c *Conn) fail(ctx context.Context, cause error) error {
	if cause == nil {
		cause = api.ErrTransport
	}
	c.closeMu.Lock()
	if c.State().Terminal() {
		c.closeMu.Unlock()
		return cause
	}
	c.state.Store(int32(StateError))
	tooBig := errors.Is(cause, api.ErrMessageTooBig)
	if c.record == nil {
		code := api.CloseAbnormalClosure
		switch {
		case errors.Is(cause, api.ErrSendFailure):
			code = api.CloseInternalServerErr
		case tooBig:
			code = api.CloseMessageTooBig
		}
		c.record = &CloseRecord{StatusCode: code, Reason: cause.Error()}
	}
	// A close already under way keeps its own status.
	tooBig = tooBig && c.local == nil
	c.closeMu.Unlock()

	if tooBig {
		if err := c.transport.SendClose(ctx, api.CloseMessageTooBig, "message too big"); err != nil {
			c.log.Debug("message too big close", zap.Error(err))
		}
	}

	c.log.Warn("websocket error event", zap.Error(cause))
	if slot := c.strategy.Swap(nil); slot != nil {
		if err := slot.s.OnEvent(ctx, c, Event{Type: EventError, Err: cause}); err != nil {
			c.log.Debug("strategy error on error event", zap.Error(err))
		}
	}
	c.reasm.Reset()
	close(c.done)
	if err := c.transport.Close(); err != nil {
		c.log.Debug("transport close", zap.Error(err))
	}
	return cause
}

func (c *Conn) invalid(st State, ev EventType) error {
	return api.WrapError(api.ErrCodeInvalidState, nil, "event not accepted").
		WithContext("state", st.String()).
		WithContext("event", ev.String())
}

func (c *Conn) trace(f api.Frame) {
	ce := c.log.Check(zap.DebugLevel, "websocket read event")
	if ce == nil {
		return
	}
	n := len(f.Payload)
	if n > traceLen {
		n = traceLen
	}
	ce.Write(
		zap.Stringer("type", f.Type),
		zap.Bool("last", f.Last),
		zap.ByteString("data", f.Payload[:n]),
	)
}

// Stats returns a snapshot of connection counters.
func (c *Conn) Stats() map[string]int64 {
	return map[string]int64{
		"frames_received":   c.framesReceived.Load(),
		"bytes_received":    c.bytesReceived.Load(),
		"messages_received": c.messagesReceived.Load(),
		"messages_sent":     c.messagesSent.Load(),
		"bytes_sent":        c.bytesSent.Load(),
	}
}
