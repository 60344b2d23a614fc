// File: transport/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxFrameSize is the outbound fragmentation threshold.
	DefaultMaxFrameSize = 4096
	// DefaultMaxPayload bounds a single inbound frame.
	DefaultMaxPayload = 16 << 20
)

// Options configures a Conn.
type Options struct {
	// MaxFrameSize splits outbound messages into frames of at most this many
	// payload bytes. Frames sent with api.SendMore are never split.
	MaxFrameSize int
	// MaxPayload rejects inbound frames larger than this.
	MaxPayload int64
	// WriteTimeout bounds each send. Zero disables it; a context deadline
	// still applies.
	WriteTimeout time.Duration
	// SendBufferSize sets the socket send buffer when positive.
	SendBufferSize int
	// QueueLimit bounds queued inbound frames; 0 is unbounded.
	QueueLimit int
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.MaxPayload <= 0 {
		o.MaxPayload = DefaultMaxPayload
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
