// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-connection notifier and close coordinator.
//
// A Conn receives discrete events from its transport (readable, application
// close, error) and dispatches them, strictly one at a time, to the response
// strategy installed on it. The connection moves through an explicit state
// machine:
//
//	Open -> Closing -> Closed
//	  \________\_______> Error
//
// Closing is entered when the local close frame has been sent and the peer's
// reply is pending. Closed is terminal and carries a CloseRecord. Error is
// terminal, drops buffers and strategy state, and rejects further events.
package session
