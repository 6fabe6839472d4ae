// Package store provides storage backends for GetYourLifeBack.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.PostgresDSN != "")

	if cfg.PostgresDSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(rec models.SessionState) error {
	apps, err := marshalApps(rec.Config.SelectedApps)
	if err != nil {
		slog.Error("PostgresStore SaveSession encode failed", "error", err)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO session_state
		(id, session_id, session_active, session_end_time, focus_duration, reminder_interval, cooldown_time, is_specific_apps_mode, selected_apps)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			session_active = EXCLUDED.session_active,
			session_end_time = EXCLUDED.session_end_time,
			focus_duration = EXCLUDED.focus_duration,
			reminder_interval = EXCLUDED.reminder_interval,
			cooldown_time = EXCLUDED.cooldown_time,
			is_specific_apps_mode = EXCLUDED.is_specific_apps_mode,
			selected_apps = EXCLUDED.selected_apps`,
		rec.ID, rec.Active, rec.EndTimeEpochMs,
		rec.Config.FocusDurationMinutes, rec.Config.ReminderIntervalSeconds, rec.Config.CooldownSeconds,
		rec.Config.Mode == models.ModeSpecificApps, apps)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "session_id", rec.ID)
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession() (*models.SessionState, error) {
	var rec models.SessionState
	var specificApps bool
	var apps string
	err := s.db.QueryRow(`SELECT session_id, session_active, session_end_time, focus_duration, reminder_interval, cooldown_time, is_specific_apps_mode, selected_apps
		FROM session_state WHERE id = 1`).Scan(
		&rec.ID, &rec.Active, &rec.EndTimeEpochMs,
		&rec.Config.FocusDurationMinutes, &rec.Config.ReminderIntervalSeconds, &rec.Config.CooldownSeconds,
		&specificApps, &apps)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	rec.Config.Mode = modeFor(specificApps)
	if rec.Config.SelectedApps, err = unmarshalApps(apps); err != nil {
		slog.Error("PostgresStore GetSession decode failed", "error", err)
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) ClearSession() error {
	_, err := s.db.Exec(`DELETE FROM session_state WHERE id = 1`)
	if err != nil {
		slog.Error("PostgresStore ClearSession failed", "error", err)
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveOverride(rec models.NeedHelpOverride) error {
	_, err := s.db.Exec(`INSERT INTO need_help_override (id, need_help_active, need_help_end_time, need_help_otp_sent)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			need_help_active = EXCLUDED.need_help_active,
			need_help_end_time = EXCLUDED.need_help_end_time,
			need_help_otp_sent = EXCLUDED.need_help_otp_sent`,
		rec.Active, rec.EndTimeEpochMs, rec.OTPSent)
	if err != nil {
		slog.Error("PostgresStore SaveOverride failed", "error", err)
		return fmt.Errorf("failed to save override state: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOverride() (*models.NeedHelpOverride, error) {
	var rec models.NeedHelpOverride
	err := s.db.QueryRow(`SELECT need_help_active, need_help_end_time, need_help_otp_sent
		FROM need_help_override WHERE id = 1`).Scan(&rec.Active, &rec.EndTimeEpochMs, &rec.OTPSent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetOverride failed", "error", err)
		return nil, fmt.Errorf("failed to read override state: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ClearOverride() error {
	_, err := s.db.Exec(`DELETE FROM need_help_override WHERE id = 1`)
	if err != nil {
		slog.Error("PostgresStore ClearOverride failed", "error", err)
		return fmt.Errorf("failed to clear override state: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveOTP(rec models.OTPRecord) error {
	_, err := s.db.Exec(`INSERT INTO otp_codes (id, current_otp, otp_timestamp) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET current_otp = EXCLUDED.current_otp, otp_timestamp = EXCLUDED.otp_timestamp`,
		rec.Code, rec.IssuedAtEpochMs)
	if err != nil {
		slog.Error("PostgresStore SaveOTP failed", "error", err)
		return fmt.Errorf("failed to save otp record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOTP() (*models.OTPRecord, error) {
	var rec models.OTPRecord
	err := s.db.QueryRow(`SELECT current_otp, otp_timestamp FROM otp_codes WHERE id = 1`).
		Scan(&rec.Code, &rec.IssuedAtEpochMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetOTP failed", "error", err)
		return nil, fmt.Errorf("failed to read otp record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ClearOTP() error {
	_, err := s.db.Exec(`DELETE FROM otp_codes WHERE id = 1`)
	if err != nil {
		slog.Error("PostgresStore ClearOTP failed", "error", err)
		return fmt.Errorf("failed to clear otp record: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveQuota(rec models.DailyQuota) error {
	_, err := s.db.Exec(`INSERT INTO need_help_quota (id, need_help_date, need_help_count) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET need_help_date = EXCLUDED.need_help_date, need_help_count = EXCLUDED.need_help_count`,
		rec.DateKey, rec.Count)
	if err != nil {
		slog.Error("PostgresStore SaveQuota failed", "error", err)
		return fmt.Errorf("failed to save quota: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetQuota() (*models.DailyQuota, error) {
	var rec models.DailyQuota
	err := s.db.QueryRow(`SELECT need_help_date, need_help_count FROM need_help_quota WHERE id = 1`).
		Scan(&rec.DateKey, &rec.Count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetQuota failed", "error", err)
		return nil, fmt.Errorf("failed to read quota: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) SaveHeartbeat(epochMs int64) error {
	_, err := s.db.Exec(`INSERT INTO enforcement_heartbeat (id, beat_time) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET beat_time = EXCLUDED.beat_time`, epochMs)
	if err != nil {
		slog.Error("PostgresStore SaveHeartbeat failed", "error", err)
		return fmt.Errorf("failed to save heartbeat: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetHeartbeat() (int64, error) {
	var beat int64
	err := s.db.QueryRow(`SELECT beat_time FROM enforcement_heartbeat WHERE id = 1`).Scan(&beat)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetHeartbeat failed", "error", err)
		return 0, fmt.Errorf("failed to read heartbeat: %w", err)
	}
	return beat, nil
}

// Close closes the PostgreSQL connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres connection", "error", err)
	}
	return err
}
