// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the transport contract.

package fake

import (
	"context"
	"sync"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/internal/framequeue"
)

// SentMessage is one recorded SendMessage call.
type SentMessage struct {
	Type    api.MessageType
	Payload []byte
	Flags   api.SendFlags
}

// CloseCall is one recorded SendClose call.
type CloseCall struct {
	Code   int
	Reason string
}

// Transport is an in-memory implementation of api.Transport.
type Transport struct {
	queue *framequeue.Queue

	mu        sync.Mutex
	sent      []SentMessage
	closes    []CloseCall
	closed    bool
	sendErr   error
	failAfter int
	closeErr  error
}

// NewTransport creates a new fake transport with an unbounded frame queue.
func NewTransport() *Transport {
	return &Transport{
		queue:     framequeue.New(0),
		failAfter: -1,
	}
}

// Push queues an inbound frame.
func (t *Transport) Push(f api.Frame) error {
	return t.queue.Push(f)
}

// PushClose queues an inbound close frame with the given status and reason.
func (t *Transport) PushClose(code int, reason string) error {
	return t.queue.Push(api.Frame{
		Type:    api.MessageClose,
		Payload: ws.NewCloseFrameBody(ws.StatusCode(code), reason),
		Last:    true,
	})
}

// PeekFrame implements api.FrameSource.
func (t *Transport) PeekFrame() (api.Frame, error) {
	return t.queue.Peek()
}

// DequeueFrame implements api.FrameSource.
func (t *Transport) DequeueFrame() (api.Frame, error) {
	return t.queue.Dequeue()
}

// Queued returns the number of frames not yet dequeued.
func (t *Transport) Queued() int {
	return t.queue.Len()
}

// SendMessage implements api.FrameSink.
func (t *Transport) SendMessage(_ context.Context, typ api.MessageType, payload []byte, flags api.SendFlags) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return api.ErrTransport
	}
	if t.failAfter >= 0 && len(t.sent) >= t.failAfter {
		return t.sendErr
	}
	if t.failAfter < 0 && t.sendErr != nil {
		return t.sendErr
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	t.sent = append(t.sent, SentMessage{Type: typ, Payload: p, Flags: flags})
	return nil
}

// SendClose implements api.FrameSink.
func (t *Transport) SendClose(_ context.Context, code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return api.ErrTransport
	}
	if t.closeErr != nil {
		return t.closeErr
	}
	t.closes = append(t.closes, CloseCall{Code: code, Reason: reason})
	return nil
}

// Close implements api.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.queue.Close()
	return nil
}

// SetSendError makes every SendMessage fail with err.
func (t *Transport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
	t.failAfter = -1
}

// FailSendAfter lets n sends succeed and fails every later one with err.
func (t *Transport) FailSendAfter(n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
	t.failAfter = n
}

// SetCloseError makes SendClose fail with err.
func (t *Transport) SetCloseError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeErr = err
}

// Sent returns all recorded messages.
func (t *Transport) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

// Closes returns all recorded close frames.
func (t *Transport) Closes() []CloseCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CloseCall, len(t.closes))
	copy(out, t.closes)
	return out
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

var _ api.Transport = (*Transport)(nil)
