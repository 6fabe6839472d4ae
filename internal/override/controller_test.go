package override

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/messaging"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/otp"
	"github.com/jsai2001/GetYourLifeBack/internal/quota"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
	"github.com/jsai2001/GetYourLifeBack/internal/twiliosms"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

type fakeSuppressor struct {
	mu         sync.Mutex
	suppressed bool
}

func (f *fakeSuppressor) SetSuppressed(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suppressed = v
}

func (f *fakeSuppressor) isSuppressed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suppressed
}

type fixture struct {
	ctrl    *Controller
	manager *session.Manager
	clock   *fakeClock
	store   store.Store
	sms     *twiliosms.MockClient
	supp    *fakeSuppressor
}

func newFixture(t *testing.T, quotaOpts ...quota.Option) *fixture {
	t.Helper()
	ck := &fakeClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC).UnixMilli()}
	st := store.NewInMemoryStore()
	mgr := session.NewManager(st, ck)

	cfg := models.SessionConfig{
		FocusDurationMinutes:    25,
		ReminderIntervalSeconds: 300,
		CooldownSeconds:         30,
		Mode:                    models.ModeWholeDevice,
	}
	if _, err := mgr.StartSession(cfg); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	sms := twiliosms.NewMockClient()
	gate := otp.NewGatekeeper(st, ck, messaging.NewTwilioService(sms, "+15551234567"), mgr)

	quotaOpts = append(quotaOpts, quota.WithTimezone("UTC"))
	tracker, err := quota.NewTracker(st, ck, quotaOpts...)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}

	supp := &fakeSuppressor{}
	ctrl := NewController(mgr, gate, tracker, supp, nil)
	return &fixture{ctrl: ctrl, manager: mgr, clock: ck, store: st, sms: sms, supp: supp}
}

// deliveredCode pulls the six digit code out of the delivered message body.
func deliveredCode(t *testing.T, sms *twiliosms.MockClient) string {
	t.Helper()
	if len(sms.SentMessages) == 0 {
		t.Fatal("no code was delivered")
	}
	body := sms.SentMessages[len(sms.SentMessages)-1].Body
	for i := 0; i+6 <= len(body); i++ {
		candidate := body[i : i+6]
		digits := true
		for _, r := range candidate {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			return candidate
		}
	}
	t.Fatalf("no code found in %q", body)
	return ""
}

func TestBeginOpensWindowAndSuppresses(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	active, err := f.manager.IsNeedHelpActive()
	if err != nil || !active {
		t.Fatalf("expected override active, got %v, %v", active, err)
	}
	if !f.supp.isSuppressed() {
		t.Error("expected enforcement suppressed during override")
	}

	if err := f.ctrl.Begin(); !errors.Is(err, models.ErrAlreadyActive) {
		t.Errorf("expected ErrAlreadyActive on double begin, got %v", err)
	}
}

func TestBeginCountsAgainstQuota(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	rec, err := f.store.GetQuota()
	if err != nil || rec == nil {
		t.Fatalf("expected a quota record, got %v, %v", rec, err)
	}
	if rec.Count != 1 {
		t.Errorf("expected 1 grant recorded, got %d", rec.Count)
	}
}

func TestBeginBlockedWhenQuotaEnforced(t *testing.T) {
	f := newFixture(t, quota.WithEnforcement())

	for i := 0; i < models.MaxDailyOverrides; i++ {
		if err := f.ctrl.Begin(); err != nil {
			t.Fatalf("Begin %d failed: %v", i+1, err)
		}
		f.ctrl.Cancel()
	}
	if err := f.ctrl.Begin(); !errors.Is(err, models.ErrQuotaExhausted) {
		t.Errorf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestRequestCodeWithoutOverride(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ctrl.RequestCode(context.Background()); !errors.Is(err, models.ErrNoOverride) {
		t.Errorf("expected ErrNoOverride, got %v", err)
	}
}

func TestRequestCodeMessages(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	msg, err := f.ctrl.RequestCode(context.Background())
	if err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if !strings.Contains(msg, "sent") {
		t.Errorf("unexpected success message %q", msg)
	}

	msg, err = f.ctrl.RequestCode(context.Background())
	if !errors.Is(err, models.ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}
	if !strings.Contains(msg, "already") {
		t.Errorf("unexpected already-sent message %q", msg)
	}
}

func TestSubmitCorrectCodeEndsSessionEarly(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := f.ctrl.RequestCode(context.Background()); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}

	res, err := f.ctrl.SubmitCode(deliveredCode(t, f.sms))
	if err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if !res.Granted {
		t.Fatal("expected the override to be granted")
	}
	if res.RemainingQuota != models.MaxDailyOverrides-1 {
		t.Errorf("expected %d quota remaining, got %d", models.MaxDailyOverrides-1, res.RemainingQuota)
	}

	active, err := f.manager.IsSessionActive()
	if err != nil || active {
		t.Errorf("expected session ended, got active=%v err=%v", active, err)
	}
	if f.supp.isSuppressed() {
		t.Error("expected suppression lifted after grant")
	}
}

func TestSubmitWrongCodeCountsAttempts(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := f.ctrl.RequestCode(context.Background()); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	code := deliveredCode(t, f.sms)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	res, err := f.ctrl.SubmitCode(wrong)
	if !errors.Is(err, models.ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	if res.AttemptsLeft != 2 || !strings.Contains(res.Message, "1/3") {
		t.Errorf("unexpected first-failure result %+v", res)
	}

	res, err = f.ctrl.SubmitCode(wrong)
	if !errors.Is(err, models.ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	if res.AttemptsLeft != 1 {
		t.Errorf("expected 1 attempt left, got %d", res.AttemptsLeft)
	}

	// The real code still works on the final attempt.
	granted, err := f.ctrl.SubmitCode(code)
	if err != nil {
		t.Fatalf("SubmitCode with real code failed: %v", err)
	}
	if !granted.Granted {
		t.Error("expected the final correct attempt to be granted")
	}
}

func TestThreeFailuresForceEndOverride(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := f.ctrl.RequestCode(context.Background()); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	code := deliveredCode(t, f.sms)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	f.ctrl.SubmitCode(wrong)
	f.ctrl.SubmitCode(wrong)
	res, err := f.ctrl.SubmitCode(wrong)
	if !errors.Is(err, models.ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if res.Granted {
		t.Error("expected no grant on exhausted attempts")
	}

	active, err := f.manager.IsNeedHelpActive()
	if err != nil || active {
		t.Errorf("expected override force-ended, got active=%v err=%v", active, err)
	}
	sessionActive, err := f.manager.IsSessionActive()
	if err != nil || !sessionActive {
		t.Errorf("expected the focus session to survive, got active=%v err=%v", sessionActive, err)
	}
	if f.supp.isSuppressed() {
		t.Error("expected enforcement resumed after force-end")
	}
}

func TestSubmitWithoutOverride(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ctrl.SubmitCode("123456"); !errors.Is(err, models.ErrNoOverride) {
		t.Errorf("expected ErrNoOverride, got %v", err)
	}
}

func TestWindowTimeoutResumesEnforcement(t *testing.T) {
	ck := &fakeClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC).UnixMilli()}
	st := store.NewInMemoryStore()
	mgr := session.NewManager(st, ck)
	cfg := models.SessionConfig{
		FocusDurationMinutes:    25,
		ReminderIntervalSeconds: 300,
		CooldownSeconds:         30,
		Mode:                    models.ModeWholeDevice,
	}
	if _, err := mgr.StartSession(cfg); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	sms := twiliosms.NewMockClient()
	gate := otp.NewGatekeeper(st, ck, messaging.NewTwilioService(sms, "+15551234567"), mgr)
	tracker, err := quota.NewTracker(st, ck, quota.WithTimezone("UTC"))
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	supp := &fakeSuppressor{}
	ctrl := NewController(mgr, gate, tracker, supp, nil, WithWindow(20*time.Millisecond))

	if err := ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if !supp.isSuppressed() {
		t.Fatal("expected enforcement suppressed while the window is open")
	}

	// The controller must tear the window down by itself; nothing else acts.
	deadline := time.Now().Add(2 * time.Second)
	for supp.isSuppressed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if supp.isSuppressed() {
		t.Fatal("expected suppression lifted after the window timed out")
	}

	active, err := mgr.IsNeedHelpActive()
	if err != nil || active {
		t.Errorf("expected override cleared on timeout, got active=%v err=%v", active, err)
	}
	sessionActive, err := mgr.IsSessionActive()
	if err != nil || !sessionActive {
		t.Errorf("expected the focus session to survive the timeout, got active=%v err=%v", sessionActive, err)
	}

	// A later session start must not see leftover window state.
	if err := ctrl.Begin(); err != nil {
		t.Fatalf("Begin after timeout failed: %v", err)
	}
	if !supp.isSuppressed() {
		t.Error("expected a fresh window to suppress again")
	}
	ctrl.Cancel()
}

func TestCancelResumesEnforcement(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	f.ctrl.Cancel()
	active, err := f.manager.IsNeedHelpActive()
	if err != nil || active {
		t.Errorf("expected override cleared, got active=%v err=%v", active, err)
	}
	if f.supp.isSuppressed() {
		t.Error("expected suppression lifted on cancel")
	}
	f.ctrl.Cancel()
}
