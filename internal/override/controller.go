// Package override coordinates the need-help escape hatch: the short consent
// window, partner code delivery, and the attempt-limited code entry that can
// end a focus session early.
package override

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/otp"
	"github.com/jsai2001/GetYourLifeBack/internal/quota"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
)

// Suppressor pauses enforcement while the override surface is up; satisfied
// by the enforcement scheduler.
type Suppressor interface {
	SetSuppressed(v bool)
}

// nopSuppressor stands in when no scheduler is attached.
type nopSuppressor struct{}

func (nopSuppressor) SetSuppressed(bool) {}

// Opts holds configuration options for the override controller.
type Opts struct {
	Window time.Duration
}

// Option defines a configuration option for the override controller.
type Option func(*Opts)

// WithWindow overrides the consent-window duration (used in tests).
func WithWindow(d time.Duration) Option {
	return func(o *Opts) { o.Window = d }
}

// SubmitResult reports the outcome of a code submission.
type SubmitResult struct {
	Granted        bool
	Message        string
	AttemptsLeft   int
	RemainingQuota int
}

// Controller owns the override flow. All entry points are safe for
// concurrent use.
type Controller struct {
	manager    *session.Manager
	gate       *otp.Gatekeeper
	quota      *quota.Tracker
	suppressor Suppressor
	presenter  models.Presenter
	window     time.Duration

	mu          sync.Mutex
	failures    int
	windowTimer *time.Timer
}

// NewController creates a Controller. suppressor and presenter may be nil.
func NewController(mgr *session.Manager, gate *otp.Gatekeeper, tracker *quota.Tracker, suppressor Suppressor, presenter models.Presenter, opts ...Option) *Controller {
	cfg := Opts{Window: models.OverrideWindow}
	for _, opt := range opts {
		opt(&cfg)
	}
	if suppressor == nil {
		suppressor = nopSuppressor{}
	}
	slog.Debug("Creating override Controller", "window", cfg.Window)
	return &Controller{manager: mgr, gate: gate, quota: tracker, suppressor: suppressor, presenter: presenter, window: cfg.Window}
}

// Begin opens the need-help window. It fails with models.ErrQuotaExhausted
// when enforcement is on and today's allowance is used up, and with
// models.ErrAlreadyActive when a window is already open. A successful begin
// counts against the daily quota and pauses enforcement.
func (c *Controller) Begin() error {
	slog.Debug("override Begin invoked")

	if err := c.quota.Check(); err != nil {
		return err
	}
	if err := c.manager.StartNeedHelpOverride(); err != nil {
		return err
	}
	if err := c.quota.RecordOverrideGranted(); err != nil {
		return err
	}

	c.mu.Lock()
	c.failures = 0
	if c.windowTimer != nil {
		c.windowTimer.Stop()
	}
	// The window is torn down when it times out, not just when the user
	// acts, so suppression can never outlive the override itself.
	c.windowTimer = time.AfterFunc(c.window, func() {
		slog.Info("need-help window timed out, resuming enforcement")
		c.Cancel()
	})
	c.mu.Unlock()

	c.suppressor.SetSuppressed(true)
	if c.presenter != nil {
		if err := c.presenter.ShowOverridePrompt("Ask your accountability partner for the code to end this session early."); err != nil {
			slog.Error("failed to show override prompt", "error", err)
		}
	}
	return nil
}

// RequestCode asks the gatekeeper to deliver a code to the partner. The
// returned message is always user-facing, including on failure.
func (c *Controller) RequestCode(ctx context.Context) (string, error) {
	active, err := c.manager.IsNeedHelpActive()
	if err != nil {
		return "", err
	}
	if !active {
		return "No override in progress.", models.ErrNoOverride
	}

	err = c.gate.RequestSend(ctx)
	switch {
	case err == nil:
		return "Code sent to your accountability partner.", nil
	case errors.Is(err, models.ErrAlreadySent):
		return "A code was already sent for this override.", err
	default:
		var cd *models.CooldownError
		if errors.As(err, &cd) {
			return fmt.Sprintf("Please wait %ds before requesting another code.", int(cd.Remaining.Seconds())), err
		}
		var de *models.DeliveryError
		if errors.As(err, &de) {
			return "Could not reach your partner. Try again.", err
		}
		return "Could not send the code.", err
	}
}

// SubmitCode validates a submitted code. Three cumulative failures force-end
// the override; a valid code ends both the override and the focus session.
func (c *Controller) SubmitCode(code string) (*SubmitResult, error) {
	active, err := c.manager.IsNeedHelpActive()
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, models.ErrNoOverride
	}

	if err := c.gate.Validate(code); err != nil {
		switch {
		case errors.Is(err, models.ErrCodeMismatch),
			errors.Is(err, models.ErrMalformedCode),
			errors.Is(err, models.ErrExpired),
			errors.Is(err, models.ErrNoOTP):
			return c.recordFailure(err)
		default:
			return nil, err
		}
	}

	c.mu.Lock()
	c.failures = 0
	if c.windowTimer != nil {
		c.windowTimer.Stop()
		c.windowTimer = nil
	}
	c.mu.Unlock()

	if err := c.manager.EndNeedHelpOverride(); err != nil {
		return nil, err
	}
	if err := c.manager.EndSession(); err != nil {
		return nil, err
	}
	c.suppressor.SetSuppressed(false)
	if c.presenter != nil {
		if err := c.presenter.Dismiss(); err != nil {
			slog.Error("failed to dismiss override prompt", "error", err)
		}
	}

	remaining, err := c.quota.RemainingToday()
	if err != nil {
		return nil, err
	}
	slog.Info("override granted, session ended early", "quota_remaining", remaining)
	return &SubmitResult{
		Granted:        true,
		Message:        fmt.Sprintf("Session ended early. %d overrides left today.", remaining),
		RemainingQuota: remaining,
	}, nil
}

func (c *Controller) recordFailure(cause error) (*SubmitResult, error) {
	c.mu.Lock()
	c.failures++
	failures := c.failures
	c.mu.Unlock()

	if failures >= models.MaxOTPAttempts {
		slog.Warn("override code attempts exhausted, force-ending override", "failures", failures)
		c.Cancel()
		return &SubmitResult{
			Message: "Too many failed attempts. The focus session continues.",
		}, models.ErrAttemptsExhausted
	}

	left := models.MaxOTPAttempts - failures
	slog.Debug("override code rejected", "attempt", failures, "left", left, "cause", cause)
	return &SubmitResult{
		Message:      fmt.Sprintf("Incorrect code. Attempt %d/%d.", failures, models.MaxOTPAttempts),
		AttemptsLeft: left,
	}, cause
}

// Cancel tears the override surface down without granting anything: the
// window is cleared, enforcement resumes, and the attempt count resets.
// Idempotent.
func (c *Controller) Cancel() {
	if err := c.manager.EndNeedHelpOverride(); err != nil {
		slog.Error("failed to end override on cancel", "error", err)
	}
	c.mu.Lock()
	c.failures = 0
	if c.windowTimer != nil {
		c.windowTimer.Stop()
		c.windowTimer = nil
	}
	c.mu.Unlock()
	c.suppressor.SetSuppressed(false)
	if c.presenter != nil {
		if err := c.presenter.Dismiss(); err != nil {
			slog.Error("failed to dismiss override prompt", "error", err)
		}
	}
}
