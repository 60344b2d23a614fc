// File: transport/write.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-wsmsg/api"
)

// maxCloseReason keeps the close payload within the control frame limit.
const maxCloseReason = maxControlPayload - 2

// SendMessage implements api.FrameSink.
//
// Without api.SendMore the payload is one message, split into frames of at
// most MaxFrameSize bytes. With api.SendMore the payload is written as one
// frame and the message stays open; following sends continue it until one
// arrives without api.SendMore. api.SendBuffer skips the flush.
func (t *Conn) SendMessage(ctx context.Context, typ api.MessageType, payload []byte, flags api.SendFlags) error {
	if typ == api.MessageClose {
		return api.NewError(api.ErrCodeInvalidArgument, "close frames go through SendClose")
	}
	if typ.IsControl() && len(payload) > maxControlPayload {
		return api.NewError(api.ErrCodeInvalidArgument, "control payload too large").
			WithContext("length", len(payload))
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	stop, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer stop()
	switch {
	case typ.IsControl():
		err = t.writeFrame(true, ws.OpCode(typ), payload)
	case flags.Has(api.SendMore) || t.outMore:
		err = t.writeExplicit(typ, payload, flags.Has(api.SendMore))
	default:
		err = t.writeFragmented(typ, payload)
	}
	if err == nil && !flags.Has(api.SendBuffer) {
		err = t.w.Flush()
	}
	if err != nil {
		return wrapWrite(err)
	}
	return nil
}

// SendClose implements api.FrameSink. Buffered frames are flushed ahead of
// the close frame.
func (t *Conn) SendClose(ctx context.Context, code int, reason string) error {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	stop, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer stop()
	body := ws.NewCloseFrameBody(ws.StatusCode(code), reason)
	if err := t.writeFrame(true, ws.OpClose, body); err != nil {
		return wrapWrite(err)
	}
	if err := t.w.Flush(); err != nil {
		return wrapWrite(err)
	}
	return nil
}

// Flush writes out frames held back by api.SendBuffer.
func (t *Conn) Flush(ctx context.Context) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	stop, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer stop()
	if err := t.w.Flush(); err != nil {
		return wrapWrite(err)
	}
	return nil
}

func (t *Conn) writeControl(op ws.OpCode, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	stop, err := t.begin(context.Background())
	if err != nil {
		return err
	}
	defer stop()
	if err := t.writeFrame(true, op, payload); err != nil {
		return wrapWrite(err)
	}
	if err := t.w.Flush(); err != nil {
		return wrapWrite(err)
	}
	return nil
}

// begin rejects writes on a closed transport and arms the write deadline.
// Until stop is called, cancelling ctx expires the deadline and unblocks
// the write in progress. Must be called with writeMu held.
func (t *Conn) begin(ctx context.Context) (stop func(), err error) {
	if t.closed.Load() {
		return nil, api.WrapError(api.ErrCodeTransport, net.ErrClosed, "write")
	}
	if err := ctx.Err(); err != nil {
		return nil, api.WrapError(api.ErrCodeTransport, err, "write")
	}
	var deadline time.Time
	if t.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(t.opts.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := t.nc.SetWriteDeadline(deadline); err != nil {
		return nil, api.WrapError(api.ErrCodeTransport, err, "set write deadline")
	}
	if t.closed.Load() {
		// Close expired the deadline before ours replaced it.
		return nil, api.WrapError(api.ErrCodeTransport, net.ErrClosed, "write")
	}
	fired := make(chan struct{})
	cancel := context.AfterFunc(ctx, func() {
		_ = t.nc.SetWriteDeadline(time.Now())
		close(fired)
	})
	return func() {
		// Let a running callback finish before the next writer arms its deadline.
		if !cancel() {
			<-fired
		}
	}, nil
}

func (t *Conn) writeExplicit(typ api.MessageType, payload []byte, more bool) error {
	op := ws.OpCode(typ)
	if t.outMore {
		if typ != t.outType {
			return api.NewError(api.ErrCodeInvalidArgument, "frame type changed inside a message").
				WithContext("message", t.outType.String()).
				WithContext("frame", typ.String())
		}
		op = ws.OpContinuation
	}
	if err := t.writeFrame(!more, op, payload); err != nil {
		return err
	}
	t.outMore, t.outType = more, typ
	return nil
}

func (t *Conn) writeFragmented(typ api.MessageType, payload []byte) error {
	op := ws.OpCode(typ)
	for {
		n, fin := len(payload), true
		if n > t.opts.MaxFrameSize {
			n, fin = t.opts.MaxFrameSize, false
		}
		if err := t.writeFrame(fin, op, payload[:n]); err != nil {
			return err
		}
		if fin {
			return nil
		}
		payload = payload[n:]
		op = ws.OpContinuation
	}
}

func (t *Conn) writeFrame(fin bool, op ws.OpCode, payload []byte) error {
	h := ws.Header{Fin: fin, OpCode: op, Length: int64(len(payload))}
	if err := ws.WriteHeader(t.w, h); err != nil {
		return err
	}
	_, err := t.w.Write(payload)
	return err
}

func wrapWrite(err error) error {
	if _, ok := err.(*api.Error); ok {
		return err
	}
	return api.WrapError(api.ErrCodeTransport, err, "write frame")
}
