// File: api/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Frame is one transport-level unit of a message as delivered by the
// transport. A Frame is immutable once received; continuation frames carry
// the type of the message they belong to.
type Frame struct {
	Type    MessageType
	Payload []byte
	// Last is set on the final frame of a message.
	Last bool
}

// Len returns the payload length.
func (f Frame) Len() int {
	return len(f.Payload)
}
