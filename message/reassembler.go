// File: message/reassembler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "github.com/momentics/hioload-wsmsg/api"

// Result is the outcome of feeding one frame to the Reassembler.
type Result struct {
	// Frame is the frame that was consumed.
	Frame api.Frame
	// Message is set only when Frame completed a message.
	Message *Message
	// Length is the accumulated message length including Frame.
	Length int
}

// Complete reports whether the consumed frame finished a message.
func (r Result) Complete() bool {
	return r.Message != nil
}

// Reassembler tracks the single in-progress message of a connection.
// It is not safe for concurrent use; the owning connection serializes
// access.
type Reassembler struct {
	cur   *Message
	limit int
}

// NewReassembler creates an idle reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// SetLimit caps the content of one message at n bytes; 0 removes the cap.
func (r *Reassembler) SetLimit(n int) {
	if n < 0 {
		n = 0
	}
	r.limit = n
}

// OnFrame appends f to the current message. A final frame completes the
// message and hands it to the caller; the next frame starts a new one.
// Control frames return api.ErrControlFrame and leave state untouched. A
// frame that would push the message past the limit returns
// api.ErrMessageTooBig without being appended.
func (r *Reassembler) OnFrame(f api.Frame) (Result, error) {
	if !f.Type.IsData() {
		return Result{Frame: f}, api.ErrControlFrame
	}
	if r.cur == nil {
		r.cur = &Message{typ: f.Type}
	} else if r.cur.typ != f.Type {
		return Result{Frame: f, Length: r.cur.Len()}, api.NewError(api.ErrCodeProtocol, "frame type changed inside a message").
			WithContext("message", r.cur.typ.String()).
			WithContext("frame", f.Type.String())
	}
	if r.limit > 0 && r.cur.Len()+len(f.Payload) > r.limit {
		return Result{Frame: f, Length: r.cur.Len()}, api.WrapError(api.ErrCodeMessageTooBig, nil, "message exceeds limit").
			WithContext("limit", r.limit).
			WithContext("length", r.cur.Len()+len(f.Payload))
	}
	r.cur.append(f.Payload)
	res := Result{Frame: f, Length: r.cur.Len()}
	if f.Last {
		r.cur.complete = true
		res.Message = r.cur
		r.cur = nil
	}
	return res, nil
}

// Current returns the in-progress message, or nil between messages.
func (r *Reassembler) Current() *Message {
	return r.cur
}

// Pending returns the accumulated length of the in-progress message.
func (r *Reassembler) Pending() int {
	if r.cur == nil {
		return 0
	}
	return r.cur.Len()
}

// Reset discards the in-progress message.
func (r *Reassembler) Reset() {
	if r.cur != nil {
		r.cur.Release()
	}
	r.cur = nil
}
