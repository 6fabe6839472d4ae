// Package session implements the focus-session and need-help-override state
// machine on top of the durable store.
//
// All expiry is lazy: Reconcile runs at the top of every public accessor and
// clears whatever has run out, so readers always observe post-expiry state
// regardless of which timer fires first. The manager also maintains an epoch
// counter; timers capture the epoch at scheduling time and must no-op when it
// has moved on, which fences stale callbacks from a previous session against
// fresh state.
package session

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
)

// Manager owns all mutation of session and override state. Construct one per
// process and inject it everywhere; nothing else writes these records.
type Manager struct {
	store store.Store
	clock clock.Clock
	epoch atomic.Int64
}

// NewManager creates a session manager over the given store and clock.
func NewManager(st store.Store, ck clock.Clock) *Manager {
	slog.Debug("Creating session Manager")
	return &Manager{store: st, clock: ck}
}

// Epoch returns the current session epoch. It increments on every session
// start and end; a timer that captured an older value must not act. Override
// lifecycle does not move it, so enforcement loops keep running across a
// need-help window.
func (m *Manager) Epoch() int64 {
	return m.epoch.Load()
}

func (m *Manager) bumpEpoch() int64 {
	e := m.epoch.Add(1)
	slog.Debug("session epoch advanced", "epoch", e)
	return e
}

// StartSession validates the config and persists a new active session ending
// focusDuration from now. Fails with models.ErrInvalidConfig on bad timing
// and models.ErrAlreadyActive while another session is running.
func (m *Manager) StartSession(cfg models.SessionConfig) (*models.SessionState, error) {
	if err := cfg.Validate(); err != nil {
		slog.Error("StartSession rejected invalid config",
			"focus_min", cfg.FocusDurationMinutes, "reminder_s", cfg.ReminderIntervalSeconds, "cooldown_s", cfg.CooldownSeconds)
		return nil, err
	}
	active, err := m.IsSessionActive()
	if err != nil {
		return nil, err
	}
	if active {
		return nil, models.ErrAlreadyActive
	}

	now := m.clock.Now()
	state := models.SessionState{
		ID:             "fs_" + uuid.NewString(),
		Active:         true,
		EndTimeEpochMs: now + cfg.FocusDuration().Milliseconds(),
		Config:         cfg,
	}
	if err := m.store.SaveSession(state); err != nil {
		slog.Error("StartSession persist failed", "error", err)
		return nil, err
	}
	m.bumpEpoch()
	slog.Info("Focus session started",
		"session_id", state.ID, "mode", cfg.Mode, "end_time", state.EndTimeEpochMs, "apps", len(cfg.SelectedApps))
	return &state, nil
}

// Reconcile performs the lazy-expiry pass: it clears an expired session and
// an expired or orphaned override. Invoked at the top of every public
// accessor; exported so tests and recovery can run it explicitly.
func (m *Manager) Reconcile() error {
	now := m.clock.Now()

	rec, err := m.store.GetSession()
	if err != nil {
		return err
	}
	if rec != nil && rec.Active && now >= rec.EndTimeEpochMs {
		slog.Info("Focus session expired, clearing", "session_id", rec.ID, "end_time", rec.EndTimeEpochMs)
		if err := m.clearSessionState(); err != nil {
			return err
		}
	}

	ov, err := m.store.GetOverride()
	if err != nil {
		return err
	}
	if ov != nil && ov.Active {
		startedAt := ov.EndTimeEpochMs - models.OverrideWindow.Milliseconds()
		switch {
		case now-startedAt > models.OverrideOrphanAge.Milliseconds():
			// Stuck override left behind by a suspended enforcement loop.
			slog.Warn("Cleaning up orphaned need-help override", "started_at", startedAt)
			if err := m.EndNeedHelpOverride(); err != nil {
				return err
			}
		case now >= ov.EndTimeEpochMs:
			slog.Debug("Need-help override window elapsed, clearing")
			if err := m.EndNeedHelpOverride(); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsSessionActive reports whether a focus session is currently active,
// honoring lazy expiry first.
func (m *Manager) IsSessionActive() (bool, error) {
	if err := m.Reconcile(); err != nil {
		return false, err
	}
	rec, err := m.store.GetSession()
	if err != nil {
		return false, err
	}
	return rec != nil && rec.Active, nil
}

// GetState returns the active session state, or nil when none is active.
func (m *Manager) GetState() (*models.SessionState, error) {
	if err := m.Reconcile(); err != nil {
		return nil, err
	}
	rec, err := m.store.GetSession()
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Active {
		return nil, nil
	}
	return rec, nil
}

// GetSessionConfig returns the active session's config, or nil when no
// session is active.
func (m *Manager) GetSessionConfig() (*models.SessionConfig, error) {
	rec, err := m.GetState()
	if err != nil || rec == nil {
		return nil, err
	}
	cfg := rec.Config
	return &cfg, nil
}

// GetRemainingTime returns the time left in the active session, never
// negative; zero when no session is active.
func (m *Manager) GetRemainingTime() (time.Duration, error) {
	rec, err := m.GetState()
	if err != nil || rec == nil {
		return 0, err
	}
	remaining := rec.EndTimeEpochMs - m.clock.Now()
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining) * time.Millisecond, nil
}

// EndSession clears all session and override state. Idempotent.
func (m *Manager) EndSession() error {
	if err := m.clearSessionState(); err != nil {
		return err
	}
	if err := m.store.ClearOverride(); err != nil {
		return err
	}
	slog.Info("Focus session ended")
	return nil
}

func (m *Manager) clearSessionState() error {
	if err := m.store.ClearSession(); err != nil {
		slog.Error("failed to clear session state", "error", err)
		return err
	}
	m.bumpEpoch()
	return nil
}

// StartNeedHelpOverride opens the 30 second need-help window. At most one
// override is outstanding: a second start while one is active is a no-op
// reported as models.ErrAlreadyActive.
func (m *Manager) StartNeedHelpOverride() error {
	active, err := m.IsNeedHelpActive()
	if err != nil {
		return err
	}
	if active {
		slog.Debug("need-help override already active, skipping start")
		return models.ErrAlreadyActive
	}

	now := m.clock.Now()
	ov := models.NeedHelpOverride{
		Active:         true,
		EndTimeEpochMs: now + models.OverrideWindow.Milliseconds(),
		OTPSent:        false,
	}
	if err := m.store.SaveOverride(ov); err != nil {
		slog.Error("StartNeedHelpOverride persist failed", "error", err)
		return err
	}
	slog.Info("Need-help override started", "end_time", ov.EndTimeEpochMs)
	return nil
}

// IsNeedHelpActive reports whether a need-help override is active, honoring
// lazy expiry and the orphan-cleanup safety net first.
func (m *Manager) IsNeedHelpActive() (bool, error) {
	if err := m.Reconcile(); err != nil {
		return false, err
	}
	ov, err := m.store.GetOverride()
	if err != nil {
		return false, err
	}
	return ov != nil && ov.Active, nil
}

// EndNeedHelpOverride clears the override record. Idempotent.
func (m *Manager) EndNeedHelpOverride() error {
	if err := m.store.ClearOverride(); err != nil {
		slog.Error("failed to clear override state", "error", err)
		return err
	}
	slog.Debug("Need-help override cleared")
	return nil
}

// IsOTPSentForOverride reports whether the current override already received
// its single OTP issuance.
func (m *Manager) IsOTPSentForOverride() (bool, error) {
	if err := m.Reconcile(); err != nil {
		return false, err
	}
	ov, err := m.store.GetOverride()
	if err != nil {
		return false, err
	}
	return ov != nil && ov.Active && ov.OTPSent, nil
}

// MarkOTPSentForOverride records the override's one OTP issuance. Fails with
// models.ErrNoOverride when no override is active; the sent flag is only ever
// set after a send completed successfully.
func (m *Manager) MarkOTPSentForOverride() error {
	if err := m.Reconcile(); err != nil {
		return err
	}
	ov, err := m.store.GetOverride()
	if err != nil {
		return err
	}
	if ov == nil || !ov.Active {
		return models.ErrNoOverride
	}
	ov.OTPSent = true
	if err := m.store.SaveOverride(*ov); err != nil {
		slog.Error("MarkOTPSentForOverride persist failed", "error", err)
		return err
	}
	return nil
}
