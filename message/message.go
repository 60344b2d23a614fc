// Package message
// Author: momentics <momentics@gmail.com>
//
// Reassembly of inbound frames into logical WebSocket messages.
//
// A message is one or more data frames of the same type, concatenated in
// arrival order and bounded by a frame with the final flag set. Control
// frames never take part in reassembly.

package message

import "github.com/momentics/hioload-wsmsg/api"

// Message is a logical unit built from one or more frames. It is
// append-only until complete and immutable afterwards.
type Message struct {
	typ      api.MessageType
	content  []byte
	frames   int
	complete bool
}

// Type returns the message type.
func (m *Message) Type() api.MessageType { return m.typ }

// Len returns the accumulated length of every frame contributed so far.
func (m *Message) Len() int { return len(m.content) }

// Frames returns the number of contributed frames.
func (m *Message) Frames() int { return m.frames }

// Complete reports whether the final frame has been received.
func (m *Message) Complete() bool { return m.complete }

// Bytes returns the content starting at the first contributed byte.
// The slice must not be modified.
func (m *Message) Bytes() []byte { return m.content }

// Prefix returns at most n leading bytes of the content.
func (m *Message) Prefix(n int) []byte {
	if n < 0 {
		n = 0
	}
	if n > len(m.content) {
		n = len(m.content)
	}
	return m.content[:n]
}

// Release drops the content buffer once the message has been consumed.
func (m *Message) Release() {
	m.content = nil
}

func (m *Message) append(p []byte) {
	m.content = append(m.content, p...)
	m.frames++
}
