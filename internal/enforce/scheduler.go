// Package enforce runs the in-session enforcement loops: periodic reminder
// overlays for whole-device sessions, and the foreground monitor plus rapid
// block loop for specific-apps sessions.
//
// Every tick is fenced by the session epoch captured at start, so a loop
// belonging to an ended session can never act on a newer one. Ticks also
// write a liveness heartbeat to the store; the watchdog restarts enforcement
// when the heartbeat goes stale.
package enforce

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/quotes"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
)

const (
	// monitorInterval is how often the foreground app is sampled.
	monitorInterval = 1 * time.Second
	// blockInterval is how often apps in cooldown are swept back out of the
	// foreground. Short enough that a reopened app never gets a usable
	// stretch of screen time.
	blockInterval = 200 * time.Millisecond
)

// Opts holds configuration options for the enforcement scheduler.
type Opts struct {
	QuoteSource     quotes.Source
	BlockingOverlay bool
}

// Option defines a configuration option for the enforcement scheduler.
type Option func(*Opts)

// WithQuoteSource sets the source of reminder copy.
func WithQuoteSource(src quotes.Source) Option {
	return func(o *Opts) { o.QuoteSource = src }
}

// WithBlockingOverlay makes reminder overlays modal for their whole cooldown
// instead of dismissible.
func WithBlockingOverlay() Option {
	return func(o *Opts) { o.BlockingOverlay = true }
}

// Scheduler owns the enforcement loops for one active session at a time.
type Scheduler struct {
	manager    *session.Manager
	store      store.Store
	clock      clock.Clock
	presenter  models.Presenter
	controller models.AppController
	quotes     quotes.Source
	blocking   bool

	suppressed atomic.Bool

	// lastReminderMs spaces monitor-loop reminders at the configured
	// interval, independent of the per-app block cooldown.
	lastReminderMs atomic.Int64

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	endTimer *time.Timer
	blocked  *blocklist
}

// NewScheduler creates a Scheduler over the given collaborators.
func NewScheduler(mgr *session.Manager, st store.Store, ck clock.Clock, presenter models.Presenter, controller models.AppController, opts ...Option) *Scheduler {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.QuoteSource == nil {
		cfg.QuoteSource = quotes.NewStaticSource()
	}
	slog.Debug("Creating enforcement Scheduler", "blocking_overlay", cfg.BlockingOverlay)
	return &Scheduler{
		manager:    mgr,
		store:      st,
		clock:      ck,
		presenter:  presenter,
		controller: controller,
		quotes:     cfg.QuoteSource,
		blocking:   cfg.BlockingOverlay,
		blocked:    newBlocklist(),
	}
}

// Start spins up the loops for the currently active session. Fails with
// models.ErrNoActiveSession when there is none; a second Start while running
// is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		slog.Debug("Scheduler already running, ignoring Start")
		return nil
	}

	state, err := s.manager.GetState()
	if err != nil {
		return err
	}
	if state == nil {
		return models.ErrNoActiveSession
	}
	cfg := state.Config
	epoch := s.manager.Epoch()

	// A fresh start must not inherit suppression or reminder spacing from a
	// previous session or a torn-down override surface.
	s.suppressed.Store(false)
	s.lastReminderMs.Store(0)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	remaining := time.Duration(state.EndTimeEpochMs-s.clock.Now()) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}
	s.endTimer = time.AfterFunc(remaining, func() {
		s.safeTick("end", func() { s.endTick(epoch) })
	})

	switch cfg.Mode {
	case models.ModeSpecificApps:
		go s.runLoop(ctx, "monitor", monitorInterval, func() { s.monitorTick(ctx, cfg, epoch) })
		go s.runLoop(ctx, "block", blockInterval, func() { s.blockTick(ctx, epoch) })
	default:
		go s.runLoop(ctx, "reminder", cfg.ReminderInterval(), func() { s.reminderTick(cfg, epoch) })
	}

	s.running = true
	slog.Info("Enforcement started",
		"session_id", state.ID, "mode", cfg.Mode, "remaining", remaining, "epoch", epoch)
	return nil
}

// Stop cancels all loops and timers, clears block state, and dismisses any
// overlay. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.endTimer.Stop()
	s.blocked.clear()
	s.mu.Unlock()

	if err := s.presenter.Dismiss(); err != nil {
		slog.Error("failed to dismiss overlay on stop", "error", err)
	}
	slog.Info("Enforcement stopped")
}

// Running reports whether enforcement loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetSuppressed pauses or resumes reminder and block activity while the
// override or code-entry surface is up. Loops keep ticking and heartbeating;
// the ticks just do nothing visible.
func (s *Scheduler) SetSuppressed(v bool) {
	s.suppressed.Store(v)
	slog.Debug("enforcement suppression changed", "suppressed", v)
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, tick func()) {
	slog.Debug("enforcement loop starting", "loop", name, "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("enforcement loop stopping", "loop", name)
			return
		case <-ticker.C:
			s.safeTick(name, tick)
		}
	}
}

// safeTick keeps one panicking tick from killing the loop.
func (s *Scheduler) safeTick(name string, tick func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("enforcement tick panicked", "tick", name, "panic", r)
		}
	}()
	tick()
}

// stale reports whether the session this loop was started for has ended; a
// stale loop shuts the scheduler down.
func (s *Scheduler) stale(epoch int64) bool {
	return s.manager.Epoch() != epoch
}

func (s *Scheduler) beat() {
	if err := s.store.SaveHeartbeat(s.clock.Now()); err != nil {
		slog.Error("failed to write enforcement heartbeat", "error", err)
	}
}

// suppressedNow reports whether reminders and kills should hold off: either
// an explicit suppression from the override surface, or an active need-help
// window.
func (s *Scheduler) suppressedNow() bool {
	if s.suppressed.Load() {
		return true
	}
	active, err := s.manager.IsNeedHelpActive()
	if err != nil {
		slog.Error("failed to check override state in tick", "error", err)
		return false
	}
	return active
}

func (s *Scheduler) reminderTick(cfg models.SessionConfig, epoch int64) {
	if s.stale(epoch) {
		s.Stop()
		return
	}
	s.beat()
	if s.suppressedNow() {
		return
	}
	if err := s.presenter.ShowReminder(s.quotes.Quote(), cfg.Cooldown(), s.blocking); err != nil {
		slog.Error("failed to show reminder", "error", err)
	}
}

func (s *Scheduler) monitorTick(ctx context.Context, cfg models.SessionConfig, epoch int64) {
	if s.stale(epoch) {
		s.Stop()
		return
	}
	s.beat()
	if s.suppressedNow() {
		return
	}

	app, ok, err := s.controller.CurrentForegroundApp(ctx)
	if err != nil {
		slog.Error("failed to read foreground app", "error", err)
		return
	}
	if !ok || !cfg.HasApp(app) {
		return
	}
	now := s.clock.Now()
	if s.blocked.isBlocked(app, now) {
		// Already in cooldown; the block loop keeps it out.
		return
	}
	if last := s.lastReminderMs.Load(); last != 0 && now-last < cfg.ReminderInterval().Milliseconds() {
		// Too soon since the last reminder; the app stays usable until the
		// interval elapses.
		return
	}

	slog.Info("distracting app foregrounded", "app", app)
	if err := s.presenter.ShowReminder(s.quotes.Quote(), cfg.Cooldown(), s.blocking); err != nil {
		slog.Error("failed to show reminder", "error", err)
	}
	s.lastReminderMs.Store(now)
	s.blocked.block(app, now+cfg.Cooldown().Milliseconds())
	if err := s.controller.KillOrBackground(ctx, app); err != nil {
		slog.Error("failed to background app on trigger", "app", app, "error", err)
	}
}

func (s *Scheduler) blockTick(ctx context.Context, epoch int64) {
	if s.stale(epoch) {
		s.Stop()
		return
	}
	s.beat()
	s.blocked.prune(s.clock.Now())
	if s.suppressedNow() {
		return
	}

	app, ok, err := s.controller.CurrentForegroundApp(ctx)
	if err != nil {
		slog.Error("failed to read foreground app", "error", err)
		return
	}
	if !ok || !s.blocked.isBlocked(app, s.clock.Now()) {
		return
	}
	if err := s.controller.KillOrBackground(ctx, app); err != nil {
		slog.Error("failed to keep app out of foreground", "app", app, "error", err)
		return
	}
	slog.Debug("blocked app pushed out of foreground", "app", app)
}

func (s *Scheduler) endTick(epoch int64) {
	if s.stale(epoch) {
		return
	}
	slog.Info("Focus session reached its end time")
	if err := s.manager.EndSession(); err != nil {
		slog.Error("failed to clear session at end time", "error", err)
	}
	s.Stop()
}
