package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

type fakeScheduler struct {
	started int
	err     error
}

func (f *fakeScheduler) Start() error {
	if f.err != nil {
		return f.err
	}
	f.started++
	return nil
}

type fakeWatchdog struct {
	started int
}

func (f *fakeWatchdog) Start() { f.started++ }

func newManagerWithSession(t *testing.T, active bool) (*session.Manager, *fakeClock) {
	t.Helper()
	ck := &fakeClock{now: 1_700_000_000_000}
	mgr := session.NewManager(store.NewInMemoryStore(), ck)
	if active {
		cfg := models.SessionConfig{
			FocusDurationMinutes:    25,
			ReminderIntervalSeconds: 300,
			CooldownSeconds:         30,
			Mode:                    models.ModeWholeDevice,
		}
		if _, err := mgr.StartSession(cfg); err != nil {
			t.Fatalf("StartSession failed: %v", err)
		}
	}
	return mgr, ck
}

func TestSessionRecoveryRestartsEnforcement(t *testing.T) {
	mgr, _ := newManagerWithSession(t, true)
	sched := &fakeScheduler{}
	dog := &fakeWatchdog{}

	rec := NewManager(mgr)
	rec.Register(NewSessionRecovery(mgr, sched, dog))
	if err := rec.RecoverAll(context.Background()); err != nil {
		t.Fatalf("RecoverAll failed: %v", err)
	}
	if sched.started != 1 {
		t.Errorf("expected enforcement restarted once, got %d", sched.started)
	}
	if dog.started != 1 {
		t.Errorf("expected watchdog started once, got %d", dog.started)
	}
}

func TestSessionRecoverySkipsWithoutSession(t *testing.T) {
	mgr, _ := newManagerWithSession(t, false)
	sched := &fakeScheduler{}

	rec := NewManager(mgr)
	rec.Register(NewSessionRecovery(mgr, sched, nil))
	if err := rec.RecoverAll(context.Background()); err != nil {
		t.Fatalf("RecoverAll failed: %v", err)
	}
	if sched.started != 0 {
		t.Errorf("expected no restart without a session, got %d", sched.started)
	}
}

func TestSessionRecoverySkipsExpiredSession(t *testing.T) {
	mgr, ck := newManagerWithSession(t, true)
	ck.now += 26 * 60 * 1000
	sched := &fakeScheduler{}

	rec := NewManager(mgr)
	rec.Register(NewSessionRecovery(mgr, sched, nil))
	if err := rec.RecoverAll(context.Background()); err != nil {
		t.Fatalf("RecoverAll failed: %v", err)
	}
	if sched.started != 0 {
		t.Errorf("expected no restart for an expired session, got %d", sched.started)
	}
}

func TestRecoverAllRunsEveryComponentDespiteFailure(t *testing.T) {
	mgr, _ := newManagerWithSession(t, false)
	boom := errors.New("boom")
	var ran []int

	rec := NewManager(mgr)
	rec.Register(RecoverableFunc(func(ctx context.Context) error { ran = append(ran, 1); return boom }))
	rec.Register(RecoverableFunc(func(ctx context.Context) error { ran = append(ran, 2); return nil }))

	err := rec.RecoverAll(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected the first error back, got %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("expected both components to run, got %v", ran)
	}
}
