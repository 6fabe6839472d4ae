// Package present renders reminder and override surfaces. The terminal
// presenter is the reference implementation; platform shells provide their
// own Presenter over native overlays.
package present

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	reminderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(1, 2).
			Width(60)

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#F2C94C")).
			Padding(1, 2).
			Width(60)

	footerStyle = lipgloss.NewStyle().
			Faint(true).
			Width(60)
)

// TerminalPresenter implements models.Presenter by rendering styled panels
// to a writer. One surface at a time: a new panel replaces the previous one.
type TerminalPresenter struct {
	mu        sync.Mutex
	out       io.Writer
	showing   bool
	gen       int
	hideTimer *time.Timer
}

// NewTerminalPresenter creates a presenter writing to stdout.
func NewTerminalPresenter() *TerminalPresenter {
	return &TerminalPresenter{out: os.Stdout}
}

// NewTerminalPresenterWithWriter creates a presenter writing to the given
// writer.
func NewTerminalPresenterWithWriter(w io.Writer) *TerminalPresenter {
	return &TerminalPresenter{out: w}
}

// ShowReminder renders a reminder panel and schedules its teardown after
// the given duration. Rendering itself never blocks the caller.
func (p *TerminalPresenter) ShowReminder(message string, duration time.Duration, blocking bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	footer := fmt.Sprintf("shown for %ds", int(duration.Seconds()))
	if blocking {
		footer += " (cannot be dismissed)"
	}
	panel := reminderStyle.Render(message) + "\n" + footerStyle.Render(footer)
	if _, err := fmt.Fprintf(p.out, "%s\n", panel); err != nil {
		return fmt.Errorf("failed to render reminder: %w", err)
	}
	p.showing = true
	p.gen++
	gen := p.gen
	if p.hideTimer != nil {
		p.hideTimer.Stop()
	}
	p.hideTimer = time.AfterFunc(duration, func() { p.hideAfter(gen) })
	slog.Debug("reminder rendered", "duration", duration, "blocking", blocking)
	return nil
}

// hideAfter clears the surface when a reminder's display window lapses. A
// surface shown after the timer was armed wins and stays up.
func (p *TerminalPresenter) hideAfter(gen int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing || p.gen != gen {
		return
	}
	p.showing = false
	fmt.Fprintln(p.out)
}

// ShowOverridePrompt renders the need-help code entry panel.
func (p *TerminalPresenter) ShowOverridePrompt(message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	panel := promptStyle.Render(message)
	if _, err := fmt.Fprintf(p.out, "%s\n", panel); err != nil {
		return fmt.Errorf("failed to render override prompt: %w", err)
	}
	p.showing = true
	p.gen++
	if p.hideTimer != nil {
		// The prompt stays up until dismissed; no timed teardown.
		p.hideTimer.Stop()
	}
	return nil
}

// Dismiss clears the current surface. Idempotent.
func (p *TerminalPresenter) Dismiss() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing {
		return nil
	}
	p.showing = false
	_, err := fmt.Fprintln(p.out)
	return err
}
