// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by the transport, the connection notifier and the
// response strategies.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeTransport
	ErrCodeSendFailure
	ErrCodeNotYetClosed
	ErrCodeInvalidState
	ErrCodeProtocol
	ErrCodeControlFrame
	ErrCodeQueueEmpty
	ErrCodeQueueClosed
	ErrCodeMessageTooBig
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeTransport:
		return "transport error"
	case ErrCodeSendFailure:
		return "send failure"
	case ErrCodeNotYetClosed:
		return "not yet closed"
	case ErrCodeInvalidState:
		return "invalid state"
	case ErrCodeProtocol:
		return "protocol error"
	case ErrCodeControlFrame:
		return "control frame"
	case ErrCodeQueueEmpty:
		return "queue empty"
	case ErrCodeQueueClosed:
		return "queue closed"
	case ErrCodeMessageTooBig:
		return "message too big"
	default:
		return "internal error"
	}
}

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrInvalidArgument = NewError(ErrCodeInvalidArgument, "invalid argument")
	// ErrTransport is raised by the frame queue or the send path; fatal for
	// the connection.
	ErrTransport = NewError(ErrCodeTransport, "transport error")
	// ErrSendFailure reports an outbound send that did not complete.
	ErrSendFailure = NewError(ErrCodeSendFailure, "send failure")
	// ErrNotYetClosed is returned when the close record is queried early.
	ErrNotYetClosed = NewError(ErrCodeNotYetClosed, "connection not yet closed")
	// ErrInvalidState is returned for events delivered in a state that
	// does not accept them.
	ErrInvalidState = NewError(ErrCodeInvalidState, "invalid connection state")
	ErrProtocol     = NewError(ErrCodeProtocol, "protocol error")
	// ErrControlFrame is returned by the reassembler for frames that bypass
	// reassembly.
	ErrControlFrame = NewError(ErrCodeControlFrame, "control frame bypasses reassembly")
	ErrQueueEmpty   = NewError(ErrCodeQueueEmpty, "frame queue is empty")
	ErrQueueClosed  = NewError(ErrCodeQueueClosed, "frame queue is closed")
	// ErrMessageTooBig is returned when a message outgrows the size limit.
	ErrMessageTooBig = NewError(ErrCodeMessageTooBig, "message too big")
)

// Error represents a structured error with code, context and cause.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a structured error of the given code around cause.
func WrapError(code ErrorCode, cause error, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
