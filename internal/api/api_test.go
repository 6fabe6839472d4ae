package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/config"
	"github.com/jsai2001/GetYourLifeBack/internal/enforce"
	"github.com/jsai2001/GetYourLifeBack/internal/messaging"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"github.com/jsai2001/GetYourLifeBack/internal/otp"
	"github.com/jsai2001/GetYourLifeBack/internal/override"
	"github.com/jsai2001/GetYourLifeBack/internal/quota"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
	"github.com/jsai2001/GetYourLifeBack/internal/twiliosms"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

type nopPresenter struct{}

func (nopPresenter) ShowReminder(string, time.Duration, bool) error { return nil }
func (nopPresenter) ShowOverridePrompt(string) error                { return nil }
func (nopPresenter) Dismiss() error                                 { return nil }

// idleAppController satisfies models.AppController without a platform.
type idleAppController struct{}

func (idleAppController) CurrentForegroundApp(ctx context.Context) (models.AppID, bool, error) {
	return "", false, nil
}

func (idleAppController) UsageStats(ctx context.Context, start, end time.Time) ([]models.AppUsage, error) {
	return nil, nil
}

func (idleAppController) KillOrBackground(ctx context.Context, app models.AppID) error {
	return nil
}

type testEnv struct {
	ts    *httptest.Server
	sms   *twiliosms.MockClient
	clock *fakeClock
	mgr   *session.Manager
	sched *enforce.Scheduler
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ck := &fakeClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC).UnixMilli()}
	st := store.NewInMemoryStore()
	mgr := session.NewManager(st, ck)

	sms := twiliosms.NewMockClient()
	gate := otp.NewGatekeeper(st, ck, messaging.NewTwilioService(sms, "+15551234567"), mgr)
	tracker, err := quota.NewTracker(st, ck, quota.WithTimezone("UTC"))
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}

	sched := enforce.NewScheduler(mgr, st, ck, nopPresenter{}, idleAppController{})
	ovr := override.NewController(mgr, gate, tracker, sched, nopPresenter{})

	srv := NewServer(mgr, sched, ovr, tracker, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(sched.Stop)
	return &testEnv{ts: ts, sms: sms, clock: ck, mgr: mgr, sched: sched}
}

func (env *testEnv) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	resp, err := http.Post(env.ts.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func (env *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(env.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var out models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func startSessionBody() map[string]interface{} {
	return map[string]interface{}{
		"focus_duration_minutes":    25,
		"reminder_interval_seconds": 300,
		"cooldown_seconds":          30,
		"mode":                      "whole_device",
	}
}

func TestSessionStart(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/session/start", startSessionBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if out.Status != "ok" {
		t.Errorf("expected ok status, got %q", out.Status)
	}
	if !env.sched.Running() {
		t.Error("expected enforcement running after session start")
	}
}

func TestSessionStartInvalidConfig(t *testing.T) {
	env := newTestEnv(t)

	body := startSessionBody()
	body["cooldown_seconds"] = 290 // gap under 30s
	resp := env.post(t, "/session/start", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionStartConflict(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/session/start", startSessionBody()).Body.Close()
	resp := env.post(t, "/session/start", startSessionBody())
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionStatusAndEnd(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/session/status")
	out := decodeResponse(t, resp)
	result := out.Result.(map[string]interface{})
	if result["active"].(bool) {
		t.Error("expected no active session initially")
	}

	env.post(t, "/session/start", startSessionBody()).Body.Close()

	resp = env.get(t, "/session/status")
	out = decodeResponse(t, resp)
	result = out.Result.(map[string]interface{})
	if !result["active"].(bool) {
		t.Error("expected an active session after start")
	}
	if result["remaining_seconds"].(float64) != 25*60 {
		t.Errorf("expected 1500s remaining, got %v", result["remaining_seconds"])
	}

	resp = env.post(t, "/session/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if env.sched.Running() {
		t.Error("expected enforcement stopped after session end")
	}

	resp = env.post(t, "/session/end", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 ending with no session, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionStartWithAppGroups(t *testing.T) {
	groups := &config.AppGroups{Groups: map[string][]models.AppID{
		"social": {"com.example.social"},
	}}
	env := newTestEnv(t, WithAppGroups(groups))

	body := startSessionBody()
	body["mode"] = "specific_apps"
	body["app_groups"] = []string{"social"}
	resp := env.post(t, "/session/start", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	cfg, err := env.mgr.GetSessionConfig()
	if err != nil || cfg == nil {
		t.Fatalf("expected an active session config, got %v, %v", cfg, err)
	}
	if len(cfg.SelectedApps) != 1 || cfg.SelectedApps[0] != "com.example.social" {
		t.Errorf("expected the group resolved into apps, got %v", cfg.SelectedApps)
	}
}

func TestOverrideFlow(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/session/start", startSessionBody()).Body.Close()

	resp := env.post(t, "/override/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post(t, "/override/otp/send", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(env.sms.SentMessages) != 1 {
		t.Fatalf("expected 1 delivered code, got %d", len(env.sms.SentMessages))
	}

	// Second send conflicts: one code per override.
	resp = env.post(t, "/override/otp/send", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	code := extractCode(t, env.sms.SentMessages[0].Body)
	resp = env.post(t, "/override/otp/verify", otpVerifyRequest{Code: code})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if out.Status != "ok" {
		t.Errorf("expected ok, got %q", out.Status)
	}

	active, err := env.mgr.IsSessionActive()
	if err != nil || active {
		t.Errorf("expected session ended after grant, got active=%v err=%v", active, err)
	}
}

func TestOverrideStartWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/override/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestOTPVerifyWrongCode(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/session/start", startSessionBody()).Body.Close()
	env.post(t, "/override/start", nil).Body.Close()
	env.post(t, "/override/otp/send", nil).Body.Close()

	code := extractCode(t, env.sms.SentMessages[0].Body)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	resp := env.post(t, "/override/otp/verify", otpVerifyRequest{Code: wrong})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if out.Status != "error" {
		t.Errorf("expected error status, got %q", out.Status)
	}
}

func TestQuotaEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/session/start", startSessionBody()).Body.Close()
	env.post(t, "/override/start", nil).Body.Close()

	resp := env.get(t, "/quota")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	result := out.Result.(map[string]interface{})
	if result["used"].(float64) != 1 {
		t.Errorf("expected 1 used, got %v", result["used"])
	}
	if result["remaining"].(float64) != float64(models.MaxDailyOverrides-1) {
		t.Errorf("expected %d remaining, got %v", models.MaxDailyOverrides-1, result["remaining"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/session/start")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// extractCode pulls the six digit code out of a delivered message body.
func extractCode(t *testing.T, body string) string {
	t.Helper()
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
