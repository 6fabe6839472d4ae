// Package watchdog restarts enforcement when its heartbeat goes stale.
//
// The enforcement scheduler writes a liveness timestamp to the store on every
// tick. The supervisor polls that timestamp while a session is active and
// invokes the injected restart hook when it stops moving, with a backoff so a
// crash-looping scheduler is not hammered. With no active session the
// supervisor stops itself; there is nothing left to protect.
package watchdog

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
)

const (
	// checkInterval is how often the heartbeat is inspected.
	checkInterval = 10 * time.Second
	// staleAfter is how old a heartbeat may get before enforcement is
	// considered dead. Three missed check cycles.
	staleAfter = 30 * time.Second
	// restartBackoff is the minimum gap between restart attempts.
	restartBackoff = 15 * time.Second
)

// Supervisor watches the enforcement heartbeat for one process.
type Supervisor struct {
	manager *session.Manager
	store   store.Store
	clock   clock.Clock
	restart func() error

	mu            sync.Mutex
	running       bool
	cancel        chan struct{}
	lastRestartMs int64
}

// NewSupervisor creates a Supervisor. restart must bring enforcement back up
// from the persisted session config.
func NewSupervisor(mgr *session.Manager, st store.Store, ck clock.Clock, restart func() error) *Supervisor {
	slog.Debug("Creating watchdog Supervisor")
	return &Supervisor{manager: mgr, store: st, clock: ck, restart: restart}
}

// Start begins the watch loop. A second Start while running is a no-op.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cancel = make(chan struct{})
	go s.run(s.cancel)
	slog.Info("Watchdog started", "check_interval", checkInterval, "stale_after", staleAfter)
}

// Stop halts the watch loop. Idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.cancel)
	slog.Info("Watchdog stopped")
}

// Running reports whether the watch loop is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) run(cancel chan struct{}) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Supervisor) tick() {
	active, err := s.manager.IsSessionActive()
	if err != nil {
		slog.Error("watchdog failed to check session state", "error", err)
		return
	}
	if !active {
		slog.Debug("no active session, watchdog standing down")
		s.Stop()
		return
	}

	beat, err := s.store.GetHeartbeat()
	if err != nil {
		slog.Error("watchdog failed to read heartbeat", "error", err)
		return
	}
	now := s.clock.Now()
	age := time.Duration(now-beat) * time.Millisecond
	if beat != 0 && age <= staleAfter {
		return
	}

	s.mu.Lock()
	sinceRestart := time.Duration(now-s.lastRestartMs) * time.Millisecond
	if s.lastRestartMs != 0 && sinceRestart < restartBackoff {
		s.mu.Unlock()
		slog.Debug("heartbeat stale but inside restart backoff", "age", age, "since_restart", sinceRestart)
		return
	}
	s.lastRestartMs = now
	s.mu.Unlock()

	slog.Warn("enforcement heartbeat stale, restarting", "age", age)
	if err := s.restart(); err != nil {
		slog.Error("enforcement restart failed", "error", err)
		return
	}
	slog.Info("enforcement restarted by watchdog")
}
