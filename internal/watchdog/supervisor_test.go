package watchdog

import (
	"testing"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now += d.Milliseconds() }

type fixture struct {
	sup      *Supervisor
	manager  *session.Manager
	clock    *fakeClock
	store    store.Store
	restarts int
}

func newFixture(t *testing.T, withSession bool) *fixture {
	t.Helper()
	ck := &fakeClock{now: 1_700_000_000_000}
	st := store.NewInMemoryStore()
	mgr := session.NewManager(st, ck)
	if withSession {
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
	f := &fixture{manager: mgr, clock: ck, store: st}
	f.sup = NewSupervisor(mgr, st, ck, func() error {
		f.restarts++
		return nil
	})
	return f
}

func TestTickRestartsOnStaleHeartbeat(t *testing.T) {
	f := newFixture(t, true)

	if err := f.store.SaveHeartbeat(f.clock.Now()); err != nil {
		t.Fatalf("SaveHeartbeat failed: %v", err)
	}
	f.clock.advance(31 * time.Second)

	f.sup.tick()
	if f.restarts != 1 {
		t.Errorf("expected 1 restart, got %d", f.restarts)
	}
}

func TestTickLeavesFreshHeartbeatAlone(t *testing.T) {
	f := newFixture(t, true)

	if err := f.store.SaveHeartbeat(f.clock.Now()); err != nil {
		t.Fatalf("SaveHeartbeat failed: %v", err)
	}
	f.clock.advance(10 * time.Second)

	f.sup.tick()
	if f.restarts != 0 {
		t.Errorf("expected no restart for a fresh heartbeat, got %d", f.restarts)
	}
}

func TestTickRestartsWhenNoHeartbeatEverWritten(t *testing.T) {
	f := newFixture(t, true)

	f.sup.tick()
	if f.restarts != 1 {
		t.Errorf("expected a restart when no heartbeat exists, got %d", f.restarts)
	}
}

func TestRestartBackoff(t *testing.T) {
	f := newFixture(t, true)

	f.sup.tick()
	f.clock.advance(10 * time.Second)
	f.sup.tick()
	if f.restarts != 1 {
		t.Errorf("expected backoff to hold the second restart, got %d", f.restarts)
	}

	f.clock.advance(restartBackoff)
	f.sup.tick()
	if f.restarts != 2 {
		t.Errorf("expected a restart after the backoff, got %d", f.restarts)
	}
}

func TestStandsDownWithoutSession(t *testing.T) {
	f := newFixture(t, false)
	f.sup.Start()
	if !f.sup.Running() {
		t.Fatal("expected supervisor running after Start")
	}

	f.sup.tick()
	if f.restarts != 0 {
		t.Errorf("expected no restart without a session, got %d", f.restarts)
	}
	if f.sup.Running() {
		t.Error("expected supervisor to stop itself without a session")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	f := newFixture(t, true)
	f.sup.Start()
	f.sup.Start()
	f.sup.Stop()
	f.sup.Stop()
	if f.sup.Running() {
		t.Error("expected supervisor stopped")
	}
}
