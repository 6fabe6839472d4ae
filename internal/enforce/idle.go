package enforce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/quotes"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/usage"
)

const (
	// idleInterval is how often the out-of-session reminder shows.
	idleInterval = 60 * time.Second
	// idleDisplay is how long each idle reminder stays up.
	idleDisplay = 10 * time.Second
)

// IdleReminder nags with a usage summary while no focus session is running.
// It goes quiet as soon as a session or override is active; the in-session
// scheduler owns the screen then.
type IdleReminder struct {
	manager   *session.Manager
	presenter models.Presenter
	quotes    quotes.Source
	summary   *usage.Calculator

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewIdleReminder creates an IdleReminder over the given collaborators.
func NewIdleReminder(mgr *session.Manager, presenter models.Presenter, src quotes.Source, summary *usage.Calculator) *IdleReminder {
	if src == nil {
		src = quotes.NewStaticSource()
	}
	return &IdleReminder{manager: mgr, presenter: presenter, quotes: src, summary: summary}
}

// Start begins the idle loop. A second Start while running is a no-op.
func (r *IdleReminder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	go r.run(ctx)
	slog.Info("Idle reminder loop started", "interval", idleInterval)
}

// Stop halts the idle loop. Idempotent.
func (r *IdleReminder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.cancel()
	slog.Info("Idle reminder loop stopped")
}

func (r *IdleReminder) run(ctx context.Context) {
	ticker := time.NewTicker(idleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *IdleReminder) tick(ctx context.Context) {
	active, err := r.manager.IsSessionActive()
	if err != nil {
		slog.Error("idle reminder failed to check session state", "error", err)
		return
	}
	if active {
		return
	}
	helpActive, err := r.manager.IsNeedHelpActive()
	if err != nil || helpActive {
		return
	}

	msg := r.quotes.Quote()
	if r.summary != nil {
		msg += "\n" + r.summary.Today(ctx).FormatLine()
	}
	if err := r.presenter.ShowReminder(msg, idleDisplay, false); err != nil {
		slog.Error("failed to show idle reminder", "error", err)
	}
}
