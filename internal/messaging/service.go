// Package messaging delivers one-time override codes to the accountability
// partner over a pluggable transport.
package messaging

import (
	"context"
	"fmt"
	"time"
)

// Service defines a pluggable code delivery abstraction. Implementations must
// only return nil once the transport accepted the message; the caller treats
// any error as not-delivered and keeps the code-sent state unset.
type Service interface {
	// SendCode delivers a one-time override code along with its expiry.
	SendCode(ctx context.Context, code string, expiresAt time.Time) error

	// Stop releases any transport resources.
	Stop() error
}

// formatCodeMessage renders the partner-facing message body for a code.
func formatCodeMessage(code string, expiresAt time.Time) string {
	return fmt.Sprintf(
		"GetYourLifeBack override code: %s. Share it only if ending the focus session early is truly necessary. Expires at %s.",
		code, expiresAt.Format("15:04 MST"))
}
