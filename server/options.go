// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-wsmsg/control"
	"github.com/momentics/hioload-wsmsg/strategy"
	"go.uber.org/zap"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithActions replaces the built-in action registry. Config reloads keep
// the replacement.
func WithActions(actions map[string]strategy.Action) Option {
	return func(s *Server) {
		s.customActions = actions
	}
}

// WithMiddleware appends strategy middleware applied by the built-in
// actions, after recovery, logging and metrics.
func WithMiddleware(mw ...strategy.Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithMetrics shares an existing metrics registry.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithProbes shares an existing probe registry.
func WithProbes(p *control.DebugProbes) Option {
	return func(s *Server) {
		if p != nil {
			s.probes = p
		}
	}
}
