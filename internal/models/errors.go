package models

import (
	"errors"
	"fmt"
	"time"
)

// Error variables for better error handling and testability.
var (
	// ErrInvalidConfig is returned when session timing invariants are violated.
	// Nothing is persisted; the user must correct the input.
	ErrInvalidConfig = errors.New("invalid session config: need focus*60 > reminder > cooldown with 30s gaps and apps matching mode")
	// ErrAlreadySent indicates the current override already received its one OTP issuance.
	ErrAlreadySent = errors.New("otp already sent for this override")
	// ErrAlreadyActive is the idempotency guard for starting an override twice.
	ErrAlreadyActive = errors.New("need-help override already active")
	// ErrExpired indicates the OTP is older than its validity window; the record is purged.
	ErrExpired = errors.New("otp expired")
	// ErrCodeMismatch indicates the entered code did not match. The record is kept.
	ErrCodeMismatch = errors.New("otp code mismatch")
	// ErrMalformedCode indicates the entered value is not exactly 6 digits. Nothing is consumed.
	ErrMalformedCode = errors.New("otp code must be exactly 6 digits")
	// ErrNoOTP indicates no outstanding code exists to validate.
	ErrNoOTP = errors.New("no otp outstanding")
	// ErrAttemptsExhausted indicates 3 failed validations; the override must be force-terminated.
	ErrAttemptsExhausted = errors.New("otp attempts exhausted")
	// ErrQuotaExhausted indicates today's override quota is used up.
	ErrQuotaExhausted = errors.New("daily need-help quota exhausted")
	// ErrNoActiveSession indicates an operation that requires an active focus session.
	ErrNoActiveSession = errors.New("no active focus session")
	// ErrNoOverride indicates an operation that requires an active need-help override.
	ErrNoOverride = errors.New("no active need-help override")
)

// CooldownError reports an action attempted too soon, with the remaining wait
// so callers can display it.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: wait %ds", int(e.Remaining.Round(time.Second).Seconds()))
}

// DeliveryError wraps a transport-level OTP delivery failure. The send
// cooldown is reset so the user can retry immediately.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("otp delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
