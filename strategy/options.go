// File: strategy/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package strategy

const (
	// DefaultPrefixLen is the number of content bytes quoted in a length report.
	DefaultPrefixLen = 10
	// DefaultBulkLines is the number of lines produced by BulkSend.
	DefaultBulkLines = 10000
	// DefaultFrameCount is the number of explicit frames produced by FramesSend.
	DefaultFrameCount = 1000

	// CloseReasonOK is the reason sent with the closing handshake of
	// generated responses.
	CloseReasonOK = "OK"
)

// Options parameterizes the strategies built by NewActions.
type Options struct {
	PrefixLen  int
	BulkLines  int
	FrameCount int
	// Middleware wraps every installed strategy, outermost first.
	Middleware []Middleware
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		PrefixLen:  DefaultPrefixLen,
		BulkLines:  DefaultBulkLines,
		FrameCount: DefaultFrameCount,
	}
}

func (o Options) withDefaults() Options {
	if o.PrefixLen <= 0 {
		o.PrefixLen = DefaultPrefixLen
	}
	if o.BulkLines <= 0 {
		o.BulkLines = DefaultBulkLines
	}
	if o.FrameCount <= 0 {
		o.FrameCount = DefaultFrameCount
	}
	return o
}
