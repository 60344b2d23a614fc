// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and wire-independent constants.

package api

// MessageType is the type of a frame or message.
// Values match RFC 6455 opcodes where applicable.
type MessageType uint8

const (
	// MessageText is a UTF-8 text data frame.
	MessageText MessageType = 1
	// MessageBinary is a binary data frame.
	MessageBinary MessageType = 2
	// MessageClose is a close control frame.
	MessageClose MessageType = 8
	// MessagePing is a ping control frame.
	MessagePing MessageType = 9
	// MessagePong is a pong control frame.
	MessagePong MessageType = 10
)

// IsData reports whether t carries application data.
func (t MessageType) IsData() bool {
	return t == MessageText || t == MessageBinary
}

// IsControl reports whether t is a control frame type.
func (t MessageType) IsControl() bool {
	return t == MessageClose || t == MessagePing || t == MessagePong
}

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	case MessageClose:
		return "close"
	case MessagePing:
		return "ping"
	case MessagePong:
		return "pong"
	default:
		return "unknown"
	}
}

// SendFlags modify how the transport emits an outbound payload.
type SendFlags uint8

const (
	// SendBuffer lets the transport buffer the frame instead of flushing it.
	SendBuffer SendFlags = 1 << iota
	// SendMore marks the payload as one explicit frame of a message whose
	// remaining frames follow. The transport must not coalesce or split it.
	SendMore
)

// Has reports whether all bits of f are set.
func (s SendFlags) Has(f SendFlags) bool {
	return s&f == f
}

// Close status codes (RFC 6455 section 7.4.1).
const (
	CloseNormalClosure      = 1000
	CloseGoingAway          = 1001
	CloseProtocolError      = 1002
	CloseUnsupportedData    = 1003
	CloseNoStatusRcvd       = 1005
	CloseAbnormalClosure    = 1006
	CloseInvalidPayloadData = 1007
	ClosePolicyViolation    = 1008
	CloseMessageTooBig      = 1009
	CloseMissingExtension   = 1010
	CloseInternalServerErr  = 1011
)
