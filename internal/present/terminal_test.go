package present

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a buffer shared between the test and the teardown timer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestShowReminderRendersMessage(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPresenterWithWriter(&buf)

	if err := p.ShowReminder("put the phone down", 30*time.Second, false); err != nil {
		t.Fatalf("ShowReminder failed: %v", err)
	}
	if !strings.Contains(buf.String(), "put the phone down") {
		t.Errorf("expected the message in output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "30s") {
		t.Errorf("expected the display duration in output, got %q", buf.String())
	}
}

func TestShowReminderBlockingLabel(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPresenterWithWriter(&buf)

	if err := p.ShowReminder("focus", 30*time.Second, true); err != nil {
		t.Fatalf("ShowReminder failed: %v", err)
	}
	if !strings.Contains(buf.String(), "cannot be dismissed") {
		t.Errorf("expected blocking label, got %q", buf.String())
	}
}

func TestShowOverridePrompt(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPresenterWithWriter(&buf)

	if err := p.ShowOverridePrompt("ask your partner for the code"); err != nil {
		t.Fatalf("ShowOverridePrompt failed: %v", err)
	}
	if !strings.Contains(buf.String(), "ask your partner") {
		t.Errorf("expected the prompt in output, got %q", buf.String())
	}
}

func (p *TerminalPresenter) isShowing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.showing
}

func TestReminderAutoDismisses(t *testing.T) {
	var buf syncBuffer
	p := NewTerminalPresenterWithWriter(&buf)

	if err := p.ShowReminder("back to work", 20*time.Millisecond, false); err != nil {
		t.Fatalf("ShowReminder failed: %v", err)
	}
	if !p.isShowing() {
		t.Fatal("expected the reminder up right after showing")
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.isShowing() {
		if time.Now().After(deadline) {
			t.Fatal("expected the reminder torn down after its display window")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStaleTeardownLeavesNewerSurfaceUp(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPresenterWithWriter(&buf)

	if err := p.ShowReminder("old", time.Minute, false); err != nil {
		t.Fatalf("ShowReminder failed: %v", err)
	}
	p.mu.Lock()
	old := p.gen
	p.mu.Unlock()

	if err := p.ShowOverridePrompt("enter the code"); err != nil {
		t.Fatalf("ShowOverridePrompt failed: %v", err)
	}
	p.hideAfter(old)
	if !p.isShowing() {
		t.Error("expected a lapsed reminder timer to leave the prompt up")
	}
}

func TestDismissIdempotent(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPresenterWithWriter(&buf)

	if err := p.Dismiss(); err != nil {
		t.Errorf("Dismiss with nothing showing should be a no-op, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expected no output from a no-op dismiss")
	}

	if err := p.ShowReminder("x", time.Second, false); err != nil {
		t.Fatalf("ShowReminder failed: %v", err)
	}
	if err := p.Dismiss(); err != nil {
		t.Errorf("Dismiss failed: %v", err)
	}
	if err := p.Dismiss(); err != nil {
		t.Errorf("second Dismiss should be a no-op, got %v", err)
	}
}
