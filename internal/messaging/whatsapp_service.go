package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client.
type WhatsAppService struct {
	client whatsapp.Sender
	to     string
}

// NewWhatsAppService creates a WhatsAppService delivering to the given
// partner number.
func NewWhatsAppService(client whatsapp.Sender, to string) *WhatsAppService {
	slog.Debug("WhatsAppService created", "to", to)
	return &WhatsAppService{client: client, to: to}
}

// SendCode sends the override code as a WhatsApp message.
func (s *WhatsAppService) SendCode(ctx context.Context, code string, expiresAt time.Time) error {
	slog.Debug("WhatsAppService SendCode invoked", "to", s.to)
	if err := s.client.SendMessage(ctx, s.to, formatCodeMessage(code, expiresAt)); err != nil {
		slog.Error("WhatsAppService SendCode error", "error", err, "to", s.to)
		return err
	}
	slog.Info("WhatsAppService code sent", "to", s.to)
	return nil
}

// Stop disconnects the underlying client when one is attached.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	if c, ok := s.client.(*whatsapp.Client); ok {
		c.Disconnect()
	}
	return nil
}
