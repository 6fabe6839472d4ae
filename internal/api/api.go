// Package api exposes the local HTTP control surface: session lifecycle,
// the need-help override flow, and quota status. It binds to loopback; it is
// a control socket for shells and tooling, not a public API.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/config"
	"github.com/jsai2001/GetYourLifeBack/internal/enforce"
	"github.com/jsai2001/GetYourLifeBack/internal/override"
	"github.com/jsai2001/GetYourLifeBack/internal/quota"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/watchdog"
)

// DefaultAddr is the loopback address the control surface binds by default.
const DefaultAddr = "127.0.0.1:8765"

const shutdownTimeout = 5 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr      string
	AppGroups *config.AppGroups
	Watchdog  *watchdog.Supervisor
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAppGroups lets session starts reference named app groups.
func WithAppGroups(groups *config.AppGroups) Option {
	return func(o *Opts) { o.AppGroups = groups }
}

// WithWatchdog attaches the supervisor so session starts arm it.
func WithWatchdog(dog *watchdog.Supervisor) Option {
	return func(o *Opts) { o.Watchdog = dog }
}

// Server is the HTTP control surface.
type Server struct {
	addr      string
	manager   *session.Manager
	scheduler *enforce.Scheduler
	override  *override.Controller
	quota     *quota.Tracker
	watchdog  *watchdog.Supervisor
	groups    *config.AppGroups

	httpServer *http.Server
}

// NewServer creates a Server over the given collaborators.
func NewServer(mgr *session.Manager, sched *enforce.Scheduler, ovr *override.Controller, tracker *quota.Tracker, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating API server", "addr", cfg.Addr)
	return &Server{
		addr:      cfg.Addr,
		manager:   mgr,
		scheduler: sched,
		override:  ovr,
		quota:     tracker,
		watchdog:  cfg.Watchdog,
		groups:    cfg.AppGroups,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/session/start", s.sessionStartHandler)
	mux.HandleFunc("/session/end", s.sessionEndHandler)
	mux.HandleFunc("/session/status", s.sessionStatusHandler)
	mux.HandleFunc("/override/start", s.overrideStartHandler)
	mux.HandleFunc("/override/otp/send", s.otpSendHandler)
	mux.HandleFunc("/override/otp/verify", s.otpVerifyHandler)
	mux.HandleFunc("/quota", s.quotaHandler)
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown drains and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
