// File: transport/read.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"context"
	"io"
	"time"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/session"
	"go.uber.org/zap"
)

// maxControlPayload is the RFC 6455 limit for control frame payloads.
const maxControlPayload = 125

// Run reads frames until the connection ends. Each queued data or close
// frame raises EventReadable on n. A read or protocol failure raises
// EventError and is returned. Run returns nil once the transport was closed
// locally, and ctx.Err() when ctx is cancelled.
func (t *Conn) Run(ctx context.Context, n Notifier) error {
	stop := context.AfterFunc(ctx, func() {
		_ = t.nc.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		h, payload, err := t.readFrame()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return t.abort(ctx, n, err)
		}
		f, ok, err := t.toFrame(h, payload)
		if err != nil {
			return t.abort(ctx, n, err)
		}
		if !ok {
			continue
		}
		if err := t.queue.Push(f); err != nil {
			return t.abort(ctx, n, err)
		}
		if err := n.Notify(ctx, session.Event{Type: session.EventReadable}); err != nil {
			return err
		}
	}
}

func (t *Conn) readFrame() (ws.Header, []byte, error) {
	h, err := ws.ReadHeader(t.r)
	if err != nil {
		return h, nil, err
	}
	if err := t.checkHeader(h); err != nil {
		return h, nil, err
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(t.r, payload); err != nil {
		return h, nil, err
	}
	if h.Masked {
		ws.Cipher(payload, h.Mask, 0)
	}
	return h, payload, nil
}

func (t *Conn) checkHeader(h ws.Header) error {
	switch {
	case h.Rsv != 0:
		return protocolError("reserved bits set")
	case !h.Masked:
		return protocolError("unmasked client frame")
	case h.OpCode.IsControl() && !h.Fin:
		return protocolError("fragmented control frame")
	case h.OpCode.IsControl() && h.Length > maxControlPayload:
		return protocolError("control frame too large")
	case h.Length > t.opts.MaxPayload:
		return api.NewError(api.ErrCodeProtocol, "frame too large").
			WithContext("length", h.Length).
			WithContext("max", t.opts.MaxPayload)
	}
	return nil
}

// toFrame maps a wire frame onto the queue representation. Continuation
// frames take the type of the message they continue. ok is false for
// frames answered here.
func (t *Conn) toFrame(h ws.Header, payload []byte) (f api.Frame, ok bool, err error) {
	var typ api.MessageType
	switch h.OpCode {
	case ws.OpPing:
		t.log.Debug("ping", zap.Int("length", len(payload)))
		if err := t.writeControl(ws.OpPong, payload); err != nil {
			return f, false, err
		}
		return f, false, nil
	case ws.OpPong:
		return f, false, nil
	case ws.OpClose:
		return api.Frame{Type: api.MessageClose, Payload: payload, Last: true}, true, nil
	case ws.OpContinuation:
		if t.readType == 0 {
			return f, false, protocolError("unexpected continuation frame")
		}
		typ = t.readType
	case ws.OpText, ws.OpBinary:
		if t.readType != 0 {
			return f, false, protocolError("new data frame during fragmentation")
		}
		typ = api.MessageType(h.OpCode)
	default:
		return f, false, protocolError("unknown opcode")
	}
	if h.Fin {
		t.readType = 0
	} else {
		t.readType = typ
	}
	return api.Frame{Type: typ, Payload: payload, Last: h.Fin}, true, nil
}

// abort reports a fatal read-side failure. Protocol violations are answered
// with a 1002 close before the connection is abandoned.
func (t *Conn) abort(ctx context.Context, n Notifier, cause error) error {
	code := api.CodeOf(cause)
	var err error
	switch code {
	case api.ErrCodeProtocol, api.ErrCodeTransport:
		err = cause
	default:
		err = api.WrapError(api.ErrCodeTransport, cause, "read frame")
	}
	ctx = context.WithoutCancel(ctx)
	if code == api.ErrCodeProtocol {
		if cerr := t.SendClose(ctx, api.CloseProtocolError, "protocol error"); cerr != nil {
			t.log.Debug("protocol close", zap.Error(cerr))
		}
	}
	if nerr := n.Notify(ctx, session.Event{Type: session.EventError, Err: err}); nerr != nil {
		t.log.Debug("error event rejected", zap.Error(nerr))
	}
	return err
}

func protocolError(msg string) error {
	return api.NewError(api.ErrCodeProtocol, msg)
}
