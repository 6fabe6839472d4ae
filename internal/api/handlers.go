package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

// sessionStartRequest is the body of POST /session/start. Apps may be listed
// directly, referenced through configured app groups, or both.
type sessionStartRequest struct {
	FocusDurationMinutes    int            `json:"focus_duration_minutes"`
	ReminderIntervalSeconds int            `json:"reminder_interval_seconds"`
	CooldownSeconds         int            `json:"cooldown_seconds"`
	Mode                    string         `json:"mode"`
	SelectedApps            []models.AppID `json:"selected_apps,omitempty"`
	AppGroups               []string       `json:"app_groups,omitempty"`
}

type otpVerifyRequest struct {
	Code string `json:"code"`
}

type sessionStatusResult struct {
	Active           bool               `json:"active"`
	SessionID        string             `json:"session_id,omitempty"`
	Mode             models.SessionMode `json:"mode,omitempty"`
	RemainingSeconds int                `json:"remaining_seconds"`
	EndTimeEpochMs   int64              `json:"end_time_epoch_ms,omitempty"`
	OverrideActive   bool               `json:"override_active"`
}

type quotaResult struct {
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
	Enforced  bool `json:"enforced"`
}

func (s *Server) sessionStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sessionStartHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req sessionStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sessionStartHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	apps := req.SelectedApps
	if len(req.AppGroups) > 0 {
		if s.groups == nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("No app groups configured"))
			return
		}
		resolved, err := s.groups.Resolve(req.AppGroups)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		apps = append(apps, resolved...)
	}

	cfg := models.SessionConfig{
		FocusDurationMinutes:    req.FocusDurationMinutes,
		ReminderIntervalSeconds: req.ReminderIntervalSeconds,
		CooldownSeconds:         req.CooldownSeconds,
		Mode:                    models.SessionMode(req.Mode),
		SelectedApps:            apps,
	}

	state, err := s.manager.StartSession(cfg)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidConfig):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		case errors.Is(err, models.ErrAlreadyActive):
			writeJSONResponse(w, http.StatusConflict, models.Error("A focus session is already active"))
		default:
			slog.Error("Server.sessionStartHandler: failed to start session", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		}
		return
	}

	if err := s.scheduler.Start(); err != nil {
		slog.Error("Server.sessionStartHandler: failed to start enforcement", "error", err)
		// Roll the session back rather than leave it unenforced.
		if endErr := s.manager.EndSession(); endErr != nil {
			slog.Error("Server.sessionStartHandler: rollback failed", "error", endErr)
		}
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start enforcement"))
		return
	}
	if s.watchdog != nil {
		s.watchdog.Start()
	}

	slog.Info("Server.sessionStartHandler: session started", "session_id", state.ID, "mode", state.Config.Mode)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Focus session started", state))
}

func (s *Server) sessionEndHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionEndHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	active, err := s.manager.IsSessionActive()
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read session state"))
		return
	}
	if !active {
		writeJSONResponse(w, http.StatusConflict, models.Error("No active session"))
		return
	}

	if err := s.manager.EndSession(); err != nil {
		slog.Error("Server.sessionEndHandler: failed to end session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to end session"))
		return
	}
	s.scheduler.Stop()
	slog.Info("Server.sessionEndHandler: session ended")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Focus session ended", nil))
}

func (s *Server) sessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state, err := s.manager.GetState()
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read session state"))
		return
	}
	overrideActive, err := s.manager.IsNeedHelpActive()
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read override state"))
		return
	}

	result := sessionStatusResult{OverrideActive: overrideActive}
	if state != nil {
		remaining, err := s.manager.GetRemainingTime()
		if err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read remaining time"))
			return
		}
		result.Active = true
		result.SessionID = state.ID
		result.Mode = state.Config.Mode
		result.RemainingSeconds = int(remaining.Seconds())
		result.EndTimeEpochMs = state.EndTimeEpochMs
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) overrideStartHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.overrideStartHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	active, err := s.manager.IsSessionActive()
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read session state"))
		return
	}
	if !active {
		writeJSONResponse(w, http.StatusConflict, models.Error("No active session to override"))
		return
	}

	if err := s.override.Begin(); err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyActive):
			writeJSONResponse(w, http.StatusConflict, models.Error("An override is already in progress"))
		case errors.Is(err, models.ErrQuotaExhausted):
			writeJSONResponse(w, http.StatusTooManyRequests, models.Error("Daily override limit reached"))
		default:
			slog.Error("Server.overrideStartHandler: failed to begin override", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to begin override"))
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Override window opened", nil))
}

func (s *Server) otpSendHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.otpSendHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	msg, err := s.override.RequestCode(context.Background())
	if err != nil {
		var cd *models.CooldownError
		switch {
		case errors.Is(err, models.ErrNoOverride):
			writeJSONResponse(w, http.StatusConflict, models.Error(msg))
		case errors.Is(err, models.ErrAlreadySent):
			writeJSONResponse(w, http.StatusConflict, models.Error(msg))
		case errors.As(err, &cd):
			writeJSONResponse(w, http.StatusTooManyRequests, models.Error(msg))
		default:
			slog.Error("Server.otpSendHandler: failed to send code", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error(msg))
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(msg, nil))
}

func (s *Server) otpVerifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.otpVerifyHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	res, err := s.override.SubmitCode(req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoOverride):
			writeJSONResponse(w, http.StatusConflict, models.Error("No override in progress"))
		case errors.Is(err, models.ErrAttemptsExhausted):
			writeJSONResponse(w, http.StatusForbidden, models.APIResponse{
				Status: string(models.APIStatusError), Message: res.Message, Result: res,
			})
		case res != nil:
			writeJSONResponse(w, http.StatusBadRequest, models.APIResponse{
				Status: string(models.APIStatusError), Message: res.Message, Result: res,
			})
		default:
			slog.Error("Server.otpVerifyHandler: failed to verify code", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to verify code"))
		}
		return
	}
	slog.Info("Server.otpVerifyHandler: override granted")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(res.Message, res))
}

func (s *Server) quotaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	used, err := s.quota.UsedToday()
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read quota"))
		return
	}
	remaining, err := s.quota.RemainingToday()
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read quota"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(quotaResult{
		Used:      used,
		Remaining: remaining,
		Limit:     models.MaxDailyOverrides,
		Enforced:  s.quota.Enforced(),
	}))
}
