// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"net"
	"net/http"
	"path"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/control"
	"github.com/momentics/hioload-wsmsg/session"
	"github.com/momentics/hioload-wsmsg/strategy"
	"github.com/yanun0323/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ShutdownReason is sent with the 1001 close issued by Shutdown.
const ShutdownReason = "server shutdown"

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// Server accepts WebSocket upgrades and runs one action per connection.
type Server struct {
	cfg     atomic.Pointer[control.Config]
	actions atomic.Pointer[map[string]strategy.Action]
	limiter *rate.Limiter

	customActions map[string]strategy.Action
	middleware    []strategy.Middleware

	registry *session.Registry
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	log      *zap.Logger
	router   chi.Router

	baseCtx context.Context
	cancel  context.CancelFunc
	conns   sync.WaitGroup
	closing atomic.Bool

	mu      sync.Mutex
	httpSrv *http.Server
}

// New builds a Server from cfg, or the defaults when nil.
func New(cfg *control.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		registry: session.NewRegistry(cfg.ShardCount),
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetricsRegistry()
	}
	if s.probes == nil {
		s.probes = control.NewDebugProbes()
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.limiter = rate.NewLimiter(upgradeLimit(cfg.UpgradeRate), upgradeBurst(cfg.UpgradeRate))
	s.ApplyConfig(cfg)

	s.probes.RegisterProbe("connections.active", func() any {
		return s.registry.Len()
	})
	s.probes.RegisterProbe("metrics", func() any {
		return s.metrics.GetSnapshot()
	})

	s.router = s.routes(cfg.PathPrefix)
	return s, nil
}

// ApplyConfig installs cfg for connections accepted from now on. The route
// prefix and shard count are fixed at construction.
func (s *Server) ApplyConfig(cfg *control.Config) {
	s.cfg.Store(cfg)
	s.limiter.SetLimit(upgradeLimit(cfg.UpgradeRate))
	s.limiter.SetBurst(upgradeBurst(cfg.UpgradeRate))

	actions := s.customActions
	if actions == nil {
		mws := append([]strategy.Middleware{
			strategy.Recovery(s.log),
			strategy.Logging(s.log),
			strategy.Metrics(s.metrics),
		}, s.middleware...)
		actions = strategy.NewActions(strategy.Options{
			PrefixLen:  cfg.LengthPrefix,
			BulkLines:  cfg.BulkLines,
			FrameCount: cfg.FrameCount,
			Middleware: mws,
		})
	}
	s.actions.Store(&actions)
}

func (s *Server) routes(prefix string) chi.Router {
	r := chi.NewRouter()
	r.Get(path.Join("/", prefix, "{action}"), s.serveAction)
	r.Get(path.Join("/", prefix, "debug", "state"), s.serveState)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Add("requests.not_found", 1)
		http.NotFound(w, r)
	})
	return r
}

// Handler returns the HTTP handler serving every action route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the live connection registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Metrics returns the server counters.
func (s *Server) Metrics() *control.MetricsRegistry {
	return s.metrics
}

// Probes returns the debug probes.
func (s *Server) Probes() *control.DebugProbes {
	return s.probes
}

// Actions returns the names of the routable actions.
func (s *Server) Actions() []string {
	return strategy.Names(*s.actions.Load())
}

// ListenAndServe listens on the configured address and serves until
// Shutdown.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Load().ListenAddr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen").With("addr", addr)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	srv := &http.Server{
		Handler:  s.router,
		ErrorLog: zap.NewStdLog(s.log),
	}
	s.httpSrv = srv
	s.mu.Unlock()

	s.log.Info("listening", zap.Stringer("addr", ln.Addr()), zap.Strings("actions", s.Actions()))
	err := srv.Serve(ln)
	if err == http.ErrServerClosed {
		return ErrServerClosed
	}
	return err
}

// Shutdown stops accepting upgrades, sends a 1001 close on every live
// connection and waits for them to finish. Connections still open when ctx
// expires are abandoned: their transports are closed without a handshake.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		return nil
	}
	s.closing.Store(true)
	srv := s.httpSrv
	s.mu.Unlock()

	var err error
	if srv != nil {
		if serr := srv.Shutdown(ctx); serr != nil {
			err = errors.Wrap(serr, "http shutdown")
		}
	}

	var closers sync.WaitGroup
	s.registry.Range(func(c *session.Conn) {
		closers.Add(1)
		go func() {
			defer closers.Done()
			s.goingAway(ctx, c)
		}()
	})

	done := make(chan struct{})
	go func() {
		closers.Wait()
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown deadline reached", zap.Int("open", s.registry.Len()))
		s.cancel()
		s.registry.Range(func(c *session.Conn) {
			if aerr := c.Abort(); aerr != nil {
				c.Logger().Debug("shutdown abort", zap.Error(aerr))
			}
		})
		<-done
		if err == nil {
			err = ctx.Err()
		}
	}
	s.cancel()
	return err
}

// goingAway starts the shutdown close handshake on c.
func (s *Server) goingAway(ctx context.Context, c *session.Conn) {
	if err := c.SendClose(ctx, api.CloseGoingAway, ShutdownReason); err != nil {
		c.Logger().Debug("shutdown close", zap.Error(err))
	}
}

func upgradeLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

func upgradeBurst(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}
	return int(perSecond)
}
