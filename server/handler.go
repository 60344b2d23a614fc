// File: server/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/momentics/hioload-wsmsg/control"
	"github.com/momentics/hioload-wsmsg/session"
	"github.com/momentics/hioload-wsmsg/transport"
	"go.uber.org/zap"
)

func transportOptions(cfg *control.Config, log *zap.Logger) transport.Options {
	return transport.Options{
		MaxFrameSize:   cfg.MaxFrameSize,
		WriteTimeout:   cfg.WriteTimeout,
		SendBufferSize: cfg.SendBufferSize,
		QueueLimit:     cfg.QueueLimit,
		Logger:         log,
	}
}

// serveAction upgrades the request and runs the named action on the new
// connection until it ends.
func (s *Server) serveAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")
	action, ok := (*s.actions.Load())[name]
	if !ok {
		s.metrics.Add("requests.unknown_action", 1)
		http.NotFound(w, r)
		return
	}
	if !s.acquire() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()
	if !s.limiter.Allow() {
		s.metrics.Add("upgrades.throttled", 1)
		http.Error(w, "too many upgrades", http.StatusTooManyRequests)
		return
	}

	cfg := s.cfg.Load()
	log := s.log.With(zap.String("action", name))
	tr, err := transport.Upgrade(w, r, transportOptions(cfg, log))
	if err != nil {
		s.metrics.Add("upgrades.failed", 1)
		log.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer tr.Close()

	c := session.NewConn(tr,
		session.WithLogger(log),
		session.WithMaxMessageSize(cfg.MaxMessageSize),
	)
	ctx := s.baseCtx
	admitted := s.register(ctx, c)
	defer s.registry.Delete(c.ID())
	s.metrics.Add("connections.accepted", 1)

	log = c.Logger()
	log.Debug("connection open", zap.Stringer("remote", tr.RemoteAddr()))

	// A connection registered during Shutdown already has its 1001 close
	// out and only awaits the peer's reply.
	if admitted {
		if err := action(ctx, c); err != nil {
			s.metrics.Add("actions.failed", 1)
			log.Warn("action failed", zap.Error(err))
			s.finish(c)
			return
		}
		if c.AutoFinalize() {
			if err := c.Finalize(ctx); err != nil {
				log.Debug("finalize", zap.Error(err))
			}
		}
	}
	if err := tr.Run(ctx, c); err != nil {
		log.Debug("read loop ended", zap.Error(err))
	}
	s.finish(c)
}

// acquire counts a connection in flight unless Shutdown has begun. The
// check and the Add happen under s.mu so Shutdown never waits on a counter
// that can still grow from zero.
func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns.Add(1)
	return true
}

// register adds c to the registry. When Shutdown began meanwhile, its
// registry pass may have missed c, so the 1001 close is sent here and
// register reports false.
func (s *Server) register(ctx context.Context, c *session.Conn) bool {
	s.registry.Add(c)
	if !s.closing.Load() {
		return true
	}
	s.goingAway(ctx, c)
	return false
}

func (s *Server) finish(c *session.Conn) {
	rec, err := c.ReportClose()
	if err != nil {
		s.metrics.Add("connections.abandoned", 1)
		return
	}
	if rec.Orderly {
		s.metrics.Add("connections.orderly", 1)
	} else {
		s.metrics.Add("connections.abrupt", 1)
	}
	s.metrics.Add("messages.sent", c.Stats()["messages_sent"])
	s.metrics.Add("messages.received", c.Stats()["messages_received"])
	c.Logger().Debug("connection closed",
		zap.Int("status", rec.StatusCode),
		zap.String("reason", rec.Reason),
		zap.Bool("orderly", rec.Orderly),
	)
}

// serveState writes the debug probes as JSON.
func (s *Server) serveState(w http.ResponseWriter, _ *http.Request) {
	b, err := sonic.ConfigFastest.Marshal(s.probes.DumpState())
	if err != nil {
		s.log.Warn("encode debug state", zap.Error(err))
		http.Error(w, "encode state", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
