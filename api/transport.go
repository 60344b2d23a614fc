// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Contract between the frame transport (wire codec, socket, fragmentation)
// and the message-level engine.

package api

import "context"

// FrameSource delivers inbound frames in arrival order.
type FrameSource interface {
	// PeekFrame returns the oldest queued frame without removing it.
	// It returns ErrQueueEmpty when nothing is queued.
	PeekFrame() (Frame, error)
	// DequeueFrame removes and returns the oldest queued frame.
	DequeueFrame() (Frame, error)
}

// FrameSink emits outbound messages and close frames.
type FrameSink interface {
	// SendMessage writes payload as a message of type t. Payloads sent
	// without SendMore may be split into several frames by the transport.
	SendMessage(ctx context.Context, t MessageType, payload []byte, flags SendFlags) error
	// SendClose writes a close frame carrying code and reason.
	SendClose(ctx context.Context, code int, reason string) error
}

// Transport is a full-duplex frame transport bound to one connection.
type Transport interface {
	FrameSource
	FrameSink
	// Close releases the underlying connection without a handshake.
	Close() error
}
