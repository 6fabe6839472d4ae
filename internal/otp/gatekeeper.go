// Package otp issues and validates the one-time codes that gate early
// session exit.
//
// The code is delivered to the accountability partner, never shown to the
// user. One code may be issued per override window, requests are rate limited
// to one per minute, and a stored code is consumed only by a successful
// validation so mistyping does not burn it.
package otp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/messaging"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
	"github.com/jsai2001/GetYourLifeBack/internal/util"
)

// OverrideState is the slice of the session manager the gatekeeper needs to
// enforce one issuance per override.
type OverrideState interface {
	IsOTPSentForOverride() (bool, error)
	MarkOTPSentForOverride() error
}

// Gatekeeper owns code issuance and validation.
type Gatekeeper struct {
	store    store.Store
	clock    clock.Clock
	sender   messaging.Service
	override OverrideState

	mu            sync.Mutex
	lastRequestMs int64
}

// NewGatekeeper creates a Gatekeeper over the given collaborators.
func NewGatekeeper(st store.Store, ck clock.Clock, sender messaging.Service, override OverrideState) *Gatekeeper {
	slog.Debug("Creating OTP Gatekeeper")
	return &Gatekeeper{store: st, clock: ck, sender: sender, override: override}
}

// RequestSend generates a fresh code, persists it, and delivers it to the
// partner. It fails with models.ErrAlreadySent once the current override has
// received its code, and with models.CooldownError when called again within
// the request cooldown. The cooldown is measured from the request, not the
// delivery, so a slow transport cannot be used to fire rapid requests; a
// failed delivery resets it so the user can retry immediately.
func (g *Gatekeeper) RequestSend(ctx context.Context) error {
	slog.Debug("OTP RequestSend invoked")

	sent, err := g.override.IsOTPSentForOverride()
	if err != nil {
		return err
	}
	if sent {
		slog.Debug("OTP already sent for current override")
		return models.ErrAlreadySent
	}

	now := g.clock.Now()

	g.mu.Lock()
	if g.lastRequestMs != 0 {
		elapsed := time.Duration(now-g.lastRequestMs) * time.Millisecond
		if elapsed < models.OTPRequestCooldown {
			remaining := models.OTPRequestCooldown - elapsed
			g.mu.Unlock()
			slog.Debug("OTP request inside cooldown", "remaining", remaining)
			return &models.CooldownError{Remaining: remaining}
		}
	}
	g.lastRequestMs = now
	g.mu.Unlock()

	code := util.GenerateOTPCode()
	if err := g.store.SaveOTP(models.OTPRecord{Code: code, IssuedAtEpochMs: now}); err != nil {
		slog.Error("failed to persist OTP", "error", err)
		return err
	}

	expiresAt := time.UnixMilli(now + models.OTPExpiry.Milliseconds())
	if err := g.sender.SendCode(ctx, code, expiresAt); err != nil {
		// Let the user retry right away; nothing was delivered.
		g.mu.Lock()
		g.lastRequestMs = 0
		g.mu.Unlock()
		slog.Error("OTP delivery failed", "error", err)
		return &models.DeliveryError{Err: err}
	}

	if err := g.override.MarkOTPSentForOverride(); err != nil {
		return err
	}
	slog.Info("OTP delivered to partner")
	return nil
}

// Validate checks a submitted code against the stored one. The stored code is
// consumed only on a match; an expired code is purged and reported as
// models.ErrExpired. A malformed submission never touches the store.
func (g *Gatekeeper) Validate(code string) error {
	slog.Debug("OTP Validate invoked")

	if !util.IsSixDigitCode(code) {
		return models.ErrMalformedCode
	}

	rec, err := g.store.GetOTP()
	if err != nil {
		return err
	}
	if rec == nil {
		return models.ErrNoOTP
	}

	age := g.clock.Now() - rec.IssuedAtEpochMs
	if age > models.OTPExpiry.Milliseconds() {
		if err := g.store.ClearOTP(); err != nil {
			slog.Error("failed to purge expired OTP", "error", err)
			return err
		}
		slog.Debug("OTP expired", "age_ms", age)
		return models.ErrExpired
	}

	if code != rec.Code {
		slog.Debug("OTP code mismatch")
		return models.ErrCodeMismatch
	}

	if err := g.store.ClearOTP(); err != nil {
		slog.Error("failed to consume OTP", "error", err)
		return err
	}
	slog.Info("OTP validated and consumed")
	return nil
}
