// Package recovery restores runtime state after a process restart. A focus
// session lives in the store, not in memory, so death or reboot must bring
// the enforcement loops back for whatever session is still active.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jsai2001/GetYourLifeBack/internal/session"
)

// Recoverable is a component that can restore its state during startup.
type Recoverable interface {
	RecoverState(ctx context.Context) error
}

// RecoverableFunc adapts a plain function to Recoverable.
type RecoverableFunc func(ctx context.Context) error

func (f RecoverableFunc) RecoverState(ctx context.Context) error { return f(ctx) }

// Manager orchestrates recovery of all registered components.
type Manager struct {
	session      *session.Manager
	recoverables []Recoverable
}

// NewManager creates a recovery manager over the session manager.
func NewManager(mgr *session.Manager) *Manager {
	return &Manager{session: mgr}
}

// Register adds a component to the recovery sequence. Components run in
// registration order.
func (m *Manager) Register(r Recoverable) {
	m.recoverables = append(m.recoverables, r)
}

// RecoverAll reconciles persisted state and then runs every registered
// recoverable. One failing component does not stop the rest; the first error
// is returned after all have run.
func (m *Manager) RecoverAll(ctx context.Context) error {
	slog.Info("Starting state recovery", "components", len(m.recoverables))

	// Expired sessions and overrides are dropped before anything restarts on
	// top of them.
	if err := m.session.Reconcile(); err != nil {
		return fmt.Errorf("failed to reconcile persisted state: %w", err)
	}

	var firstErr error
	for i, r := range m.recoverables {
		if err := r.RecoverState(ctx); err != nil {
			slog.Error("component recovery failed", "component", i, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}
	if firstErr != nil {
		return firstErr
	}
	slog.Info("State recovery complete")
	return nil
}

// EnforcementRestarter captures the pieces that must come back for an active
// session; satisfied by the enforcement scheduler and watchdog supervisor.
type EnforcementRestarter interface {
	Start() error
}

// WatchdogStarter matches the watchdog supervisor's start surface.
type WatchdogStarter interface {
	Start()
}

// NewSessionRecovery returns a Recoverable that restarts enforcement and the
// watchdog when a persisted session is still active.
func NewSessionRecovery(mgr *session.Manager, sched EnforcementRestarter, dog WatchdogStarter) Recoverable {
	return RecoverableFunc(func(ctx context.Context) error {
		active, err := mgr.IsSessionActive()
		if err != nil {
			return err
		}
		if !active {
			slog.Debug("no persisted session to recover")
			return nil
		}

		slog.Info("recovering active focus session")
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to restart enforcement: %w", err)
		}
		if dog != nil {
			dog.Start()
		}
		return nil
	})
}
