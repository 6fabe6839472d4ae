package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// ConsoleService implements Service by printing codes to a writer. It exists
// for development and tests; with it the user can see their own code, which
// defeats the accountability handoff, so production setups should pick a real
// transport.
type ConsoleService struct {
	out io.Writer
}

// NewConsoleService creates a ConsoleService writing to stderr.
func NewConsoleService() *ConsoleService {
	return &ConsoleService{out: os.Stderr}
}

// NewConsoleServiceWithWriter creates a ConsoleService writing to the given
// writer.
func NewConsoleServiceWithWriter(w io.Writer) *ConsoleService {
	return &ConsoleService{out: w}
}

// SendCode prints the override code.
func (s *ConsoleService) SendCode(ctx context.Context, code string, expiresAt time.Time) error {
	slog.Warn("ConsoleService delivering code locally; use a real transport for accountability")
	_, err := fmt.Fprintf(s.out, "%s\n", formatCodeMessage(code, expiresAt))
	return err
}

// Stop is a no-op.
func (s *ConsoleService) Stop() error {
	return nil
}
