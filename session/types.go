// File: session/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import "context"

// State enumerates the notifier states of a connection.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events are accepted in s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateError
}

// EventType identifies a connection-level event.
type EventType uint8

const (
	// EventReadable signals that at least one frame is queued.
	EventReadable EventType = iota + 1
	// EventAppClose signals completion of the close handshake.
	EventAppClose
	// EventError signals a fatal transport or processing failure.
	EventError
)

func (e EventType) String() string {
	switch e {
	case EventReadable:
		return "readable"
	case EventAppClose:
		return "app-close"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to Conn.Notify by the transport and forwarded to the
// installed strategy.
type Event struct {
	Type EventType
	// Status is the close status code of an EventAppClose.
	Status int
	// Reason is the close reason of an EventAppClose.
	Reason string
	// Orderly is set on EventAppClose when close frames were exchanged in
	// both directions.
	Orderly bool
	// Err is the cause of an EventError.
	Err error
}

// Strategy consumes connection events and produces outbound messages.
// OnEvent is never called concurrently for the same connection and must not
// call Conn.Notify.
type Strategy interface {
	OnEvent(ctx context.Context, c *Conn, ev Event) error
}

// Starter is implemented by strategies that produce output as soon as they
// are installed, independent of inbound traffic.
type Starter interface {
	Start(ctx context.Context, c *Conn) error
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx context.Context, c *Conn, ev Event) error

// OnEvent calls f.
func (f StrategyFunc) OnEvent(ctx context.Context, c *Conn, ev Event) error {
	return f(ctx, c, ev)
}

// CloseRecord describes how a connection ended. It is created exactly once.
type CloseRecord struct {
	StatusCode int
	Reason     string
	// Orderly is true iff close frames were exchanged in both directions.
	Orderly bool
}
