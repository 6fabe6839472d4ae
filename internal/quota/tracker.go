// Package quota tracks how many need-help overrides have been granted today.
//
// The day boundary follows a configured timezone rather than the device zone,
// so moving the device clock or zone cannot mint a fresh allowance. Counts
// reset lazily on the first read after midnight; a cron job additionally
// rewrites the stored record at midnight so status reads stay accurate
// without traffic.
package quota

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultTimezone anchors the quota day when none is configured.
const DefaultTimezone = "Asia/Kolkata"

const dateKeyLayout = "2006-01-02"

// Opts holds configuration options for the quota tracker.
type Opts struct {
	Timezone string
	Enforce  bool
}

// Option defines a configuration option for the quota tracker.
type Option func(*Opts)

// WithTimezone sets the IANA timezone anchoring the quota day.
func WithTimezone(tz string) Option {
	return func(o *Opts) { o.Timezone = tz }
}

// WithEnforcement makes quota exhaustion actually block new overrides instead
// of only being recorded.
func WithEnforcement() Option {
	return func(o *Opts) { o.Enforce = true }
}

// Tracker counts override grants against the daily allowance.
type Tracker struct {
	store   store.Store
	clock   clock.Clock
	loc     *time.Location
	enforce bool

	mu   sync.Mutex
	cron *cron.Cron
}

// NewTracker creates a Tracker. It fails when the configured timezone cannot
// be loaded.
func NewTracker(st store.Store, ck clock.Clock, opts ...Option) (*Tracker, error) {
	cfg := Opts{Timezone: DefaultTimezone}
	for _, opt := range opts {
		opt(&cfg)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("failed to load quota timezone", "timezone", cfg.Timezone, "error", err)
		return nil, err
	}
	slog.Debug("Creating quota Tracker", "timezone", cfg.Timezone, "enforce", cfg.Enforce)
	return &Tracker{store: st, clock: ck, loc: loc, enforce: cfg.Enforce}, nil
}

func (t *Tracker) todayKey() string {
	return time.UnixMilli(t.clock.Now()).In(t.loc).Format(dateKeyLayout)
}

// load returns today's quota record, treating a stale or missing record as a
// fresh day with zero grants.
func (t *Tracker) load() (models.DailyQuota, error) {
	today := t.todayKey()
	rec, err := t.store.GetQuota()
	if err != nil {
		return models.DailyQuota{}, err
	}
	if rec == nil || rec.DateKey != today {
		return models.DailyQuota{DateKey: today, Count: 0}, nil
	}
	return *rec, nil
}

// RemainingToday returns how many overrides are still allowed today, never
// negative.
func (t *Tracker) RemainingToday() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, err := t.load()
	if err != nil {
		return 0, err
	}
	remaining := models.MaxDailyOverrides - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// UsedToday returns how many overrides have been granted today.
func (t *Tracker) UsedToday() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, err := t.load()
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// Enforced reports whether exhaustion blocks new overrides.
func (t *Tracker) Enforced() bool {
	return t.enforce
}

// Check fails with models.ErrQuotaExhausted when enforcement is on and the
// allowance is used up.
func (t *Tracker) Check() error {
	if !t.enforce {
		return nil
	}
	remaining, err := t.RemainingToday()
	if err != nil {
		return err
	}
	if remaining <= 0 {
		slog.Info("daily override quota exhausted")
		return models.ErrQuotaExhausted
	}
	return nil
}

// RecordOverrideGranted counts one more grant against today. The count keeps
// incrementing past the limit; exhaustion is surfaced by Check, not here.
func (t *Tracker) RecordOverrideGranted() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, err := t.load()
	if err != nil {
		return err
	}
	rec.Count++
	if err := t.store.SaveQuota(rec); err != nil {
		slog.Error("failed to persist quota", "error", err)
		return err
	}
	slog.Info("override granted against daily quota", "date", rec.DateKey, "count", rec.Count, "limit", models.MaxDailyOverrides)
	return nil
}

// StartRolloverJob schedules the midnight reset in the quota timezone.
func (t *Tracker) StartRolloverJob() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron != nil {
		return
	}
	c := cron.New(cron.WithLocation(t.loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.AddFunc("0 0 * * *", func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		fresh := models.DailyQuota{DateKey: t.todayKey(), Count: 0}
		if err := t.store.SaveQuota(fresh); err != nil {
			slog.Error("quota rollover persist failed", "error", err)
			return
		}
		slog.Info("daily override quota rolled over", "date", fresh.DateKey)
	})
	c.Start()
	t.cron = c
	slog.Debug("quota rollover job started")
}

// StopRolloverJob stops the midnight reset job.
func (t *Tracker) StopRolloverJob() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron != nil {
		t.cron.Stop()
		t.cron = nil
	}
}
