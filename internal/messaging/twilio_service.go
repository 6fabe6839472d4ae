package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/twiliosms"
)

// TwilioService implements Service by sending codes as SMS through Twilio.
type TwilioService struct {
	client twiliosms.Sender
	to     string
}

// NewTwilioService creates a TwilioService delivering to the given E.164
// partner number.
func NewTwilioService(client twiliosms.Sender, to string) *TwilioService {
	slog.Debug("TwilioService created", "to", to)
	return &TwilioService{client: client, to: to}
}

// SendCode sends the override code as an SMS.
func (s *TwilioService) SendCode(ctx context.Context, code string, expiresAt time.Time) error {
	slog.Debug("TwilioService SendCode invoked", "to", s.to)
	if err := s.client.SendMessage(ctx, s.to, formatCodeMessage(code, expiresAt)); err != nil {
		slog.Error("TwilioService SendCode error", "error", err, "to", s.to)
		return err
	}
	slog.Info("TwilioService code sent", "to", s.to)
	return nil
}

// Stop is a no-op; the Twilio REST client holds no connection state.
func (s *TwilioService) Stop() error {
	return nil
}
