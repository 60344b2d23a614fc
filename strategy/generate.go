// File: strategy/generate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Strategies that produce a fixed response as soon as they are installed.
// Inbound data is discarded; the response ends with a normal close.

package strategy

import (
	"bytes"
	"context"
	"fmt"

	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/session"
)

const bulkLine = "%8d:01234567890123456789012345678901234567890\n"

// BulkSend writes many lines as a single message. The transport is free to
// fragment it.
type BulkSend struct {
	DiscardAck
	lines int
}

// NewBulkSend returns a BulkSend producing lines lines.
func NewBulkSend(lines int) *BulkSend {
	if lines <= 0 {
		lines = DefaultBulkLines
	}
	return &BulkSend{lines: lines}
}

// Payload builds the message body.
func (b *BulkSend) Payload() []byte {
	var buf bytes.Buffer
	buf.Grow(b.lines * 50)
	for i := 0; i < b.lines; i++ {
		fmt.Fprintf(&buf, bulkLine, i)
	}
	return buf.Bytes()
}

// Start implements session.Starter. A failed send leaves the connection
// open for the caller to abandon; no close is sent.
func (b *BulkSend) Start(ctx context.Context, c *session.Conn) error {
	if err := c.Send(ctx, api.MessageText, b.Payload(), 0); err != nil {
		return err
	}
	return c.SendClose(ctx, api.CloseNormalClosure, CloseReasonOK)
}

// FramesSend writes one message as count explicit frames.
type FramesSend struct {
	DiscardAck
	count int
}

// NewFramesSend returns a FramesSend producing count frames.
func NewFramesSend(count int) *FramesSend {
	if count <= 0 {
		count = DefaultFrameCount
	}
	return &FramesSend{count: count}
}

// Start implements session.Starter. It stops at the first failed frame.
func (f *FramesSend) Start(ctx context.Context, c *session.Conn) error {
	for i := 0; i < f.count; i++ {
		flags := api.SendBuffer
		if i < f.count-1 {
			flags |= api.SendMore
		}
		chunk := []byte(fmt.Sprintf("%8d: Hello\n", i))
		if err := c.Send(ctx, api.MessageText, chunk, flags); err != nil {
			return err
		}
	}
	return c.SendClose(ctx, api.CloseNormalClosure, CloseReasonOK)
}

// EmptySend writes a zero-length text message.
type EmptySend struct {
	DiscardAck
}

// NewEmptySend returns an EmptySend strategy.
func NewEmptySend() *EmptySend {
	return &EmptySend{}
}

// Start implements session.Starter.
func (e *EmptySend) Start(ctx context.Context, c *session.Conn) error {
	if err := c.Send(ctx, api.MessageText, nil, 0); err != nil {
		return err
	}
	return c.SendClose(ctx, api.CloseNormalClosure, CloseReasonOK)
}
