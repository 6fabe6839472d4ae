// Package models defines the core data structures for GetYourLifeBack.
//
// It includes session, override, OTP and quota types shared across modules,
// plus the contracts of the platform collaborators (presentation surface,
// foreground-app control) that the enforcement loops talk to.
package models

import (
	"context"
	"time"
)

// AppID identifies an installed application (package name on Android,
// bundle id elsewhere). Opaque to everything in this module.
type AppID string

// SessionMode selects how a focus session enforces.
type SessionMode string

const (
	// ModeWholeDevice enforces reminders regardless of the foreground app.
	ModeWholeDevice SessionMode = "whole_device"
	// ModeSpecificApps enforces only while a selected app is foregrounded.
	ModeSpecificApps SessionMode = "specific_apps"
)

// Timing constants shared by validation and the enforcement loops.
const (
	// MinTimingGapSeconds is the minimum spacing required between each pair of
	// session timing values (focus > reminder > cooldown).
	MinTimingGapSeconds = 30
	// OverrideWindow is the lifetime of a need-help override.
	OverrideWindow = 30 * time.Second
	// OverrideOrphanAge is the age past the override's nominal start after
	// which it is force-cleared even if its end time never fired.
	OverrideOrphanAge = 120 * time.Second
	// OTPExpiry is how long an issued code remains valid.
	OTPExpiry = 15 * time.Minute
	// OTPRequestCooldown is the minimum spacing between OTP send requests.
	OTPRequestCooldown = 60 * time.Second
	// MaxOTPAttempts is the number of failed validations allowed per override.
	MaxOTPAttempts = 3
	// MaxDailyOverrides is the daily need-help quota.
	MaxDailyOverrides = 5
)

// SessionConfig holds the immutable parameters of a focus session.
type SessionConfig struct {
	FocusDurationMinutes    int         `json:"focus_duration_minutes"`
	ReminderIntervalSeconds int         `json:"reminder_interval_seconds"`
	CooldownSeconds         int         `json:"cooldown_seconds"`
	Mode                    SessionMode `json:"mode"`
	SelectedApps            []AppID     `json:"selected_apps,omitempty"`
}

// Validate checks the session timing invariants. A config is acceptable when
// focusDuration*60 > reminderInterval > cooldown, each gap is at least
// MinTimingGapSeconds, and the app list matches the mode.
func (c SessionConfig) Validate() error {
	if c.FocusDurationMinutes <= 0 || c.ReminderIntervalSeconds <= 0 || c.CooldownSeconds <= 0 {
		return ErrInvalidConfig
	}
	switch c.Mode {
	case ModeWholeDevice:
		if len(c.SelectedApps) != 0 {
			return ErrInvalidConfig
		}
	case ModeSpecificApps:
		if len(c.SelectedApps) == 0 {
			return ErrInvalidConfig
		}
	default:
		return ErrInvalidConfig
	}
	focusSeconds := c.FocusDurationMinutes * 60
	if focusSeconds-c.ReminderIntervalSeconds < MinTimingGapSeconds {
		return ErrInvalidConfig
	}
	if c.ReminderIntervalSeconds-c.CooldownSeconds < MinTimingGapSeconds {
		return ErrInvalidConfig
	}
	return nil
}

// FocusDuration returns the total session length.
func (c SessionConfig) FocusDuration() time.Duration {
	return time.Duration(c.FocusDurationMinutes) * time.Minute
}

// ReminderInterval returns the reminder cadence.
func (c SessionConfig) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalSeconds) * time.Second
}

// Cooldown returns the punitive block window.
func (c SessionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// HasApp reports whether the app is in the session's selected set.
func (c SessionConfig) HasApp(app AppID) bool {
	for _, a := range c.SelectedApps {
		if a == app {
			return true
		}
	}
	return false
}

// SessionState is the persisted record of the single active session.
type SessionState struct {
	ID            string        `json:"id"`
	Active        bool          `json:"active"`
	EndTimeEpochMs int64        `json:"end_time_epoch_ms"`
	Config        SessionConfig `json:"config"`
}

// NeedHelpOverride is the persisted record of a short-lived enforcement
// suspension unlocked via OTP.
type NeedHelpOverride struct {
	Active         bool  `json:"active"`
	EndTimeEpochMs int64 `json:"end_time_epoch_ms"`
	OTPSent        bool  `json:"otp_sent"`
}

// OTPRecord is the single outstanding one-time passcode. A new send
// overwrites the previous record.
type OTPRecord struct {
	Code            string `json:"code"`
	IssuedAtEpochMs int64  `json:"issued_at_epoch_ms"`
}

// DailyQuota counts override grants for a local calendar day.
type DailyQuota struct {
	DateKey string `json:"date_key"`
	Count   int    `json:"count"`
}

// AppUsage is one row of a foreground-usage query. ForegroundMs is in
// milliseconds.
type AppUsage struct {
	App          AppID  `json:"app"`
	AppName      string `json:"app_name,omitempty"`
	ForegroundMs int64  `json:"foreground_ms"`
}

// Presenter is the single presentation surface. Implementations own exactly
// one visible view at a time; any Show call replaces the previous view.
type Presenter interface {
	// ShowReminder displays a reminder for the given duration, then hides it.
	// A blocking reminder prevents interaction with whatever is underneath.
	ShowReminder(message string, duration time.Duration, blocking bool) error
	// ShowOverridePrompt displays the need-help / OTP entry surface.
	ShowOverridePrompt(message string) error
	// Dismiss tears down whatever is currently shown. Idempotent.
	Dismiss() error
}

// AppController exposes the host platform's foreground-app facilities.
type AppController interface {
	// CurrentForegroundApp returns the foregrounded app, if one is known.
	CurrentForegroundApp(ctx context.Context) (AppID, bool, error)
	// UsageStats returns per-app foreground durations for the window.
	UsageStats(ctx context.Context, start, end time.Time) ([]AppUsage, error)
	// KillOrBackground removes the app from the foreground.
	KillOrBackground(ctx context.Context, app AppID) error
}

// APIStatus represents standardized status values for API responses.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for the control API.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
