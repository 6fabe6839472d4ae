// Package store provides storage backends for GetYourLifeBack.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists state in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.SQLiteDSN != "")

	dsn := cfg.SQLiteDSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(rec models.SessionState) error {
	apps, err := marshalApps(rec.Config.SelectedApps)
	if err != nil {
		slog.Error("SQLiteStore SaveSession encode failed", "error", err)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO session_state
		(id, session_id, session_active, session_end_time, focus_duration, reminder_interval, cooldown_time, is_specific_apps_mode, selected_apps)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Active, rec.EndTimeEpochMs,
		rec.Config.FocusDurationMinutes, rec.Config.ReminderIntervalSeconds, rec.Config.CooldownSeconds,
		rec.Config.Mode == models.ModeSpecificApps, apps)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "session_id", rec.ID)
		return fmt.Errorf("failed to save session state: %w", err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "session_id", rec.ID, "active", rec.Active)
	return nil
}

func (s *SQLiteStore) GetSession() (*models.SessionState, error) {
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
		slog.Error("SQLiteStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	rec.Config.Mode = modeFor(specificApps)
	if rec.Config.SelectedApps, err = unmarshalApps(apps); err != nil {
		slog.Error("SQLiteStore GetSession decode failed", "error", err)
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) ClearSession() error {
	_, err := s.db.Exec(`DELETE FROM session_state WHERE id = 1`)
	if err != nil {
		slog.Error("SQLiteStore ClearSession failed", "error", err)
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveOverride(rec models.NeedHelpOverride) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO need_help_override
		(id, need_help_active, need_help_end_time, need_help_otp_sent) VALUES (1, ?, ?, ?)`,
		rec.Active, rec.EndTimeEpochMs, rec.OTPSent)
	if err != nil {
		slog.Error("SQLiteStore SaveOverride failed", "error", err)
		return fmt.Errorf("failed to save override state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOverride() (*models.NeedHelpOverride, error) {
	var rec models.NeedHelpOverride
	err := s.db.QueryRow(`SELECT need_help_active, need_help_end_time, need_help_otp_sent
		FROM need_help_override WHERE id = 1`).Scan(&rec.Active, &rec.EndTimeEpochMs, &rec.OTPSent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetOverride failed", "error", err)
		return nil, fmt.Errorf("failed to read override state: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) ClearOverride() error {
	_, err := s.db.Exec(`DELETE FROM need_help_override WHERE id = 1`)
	if err != nil {
		slog.Error("SQLiteStore ClearOverride failed", "error", err)
		return fmt.Errorf("failed to clear override state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveOTP(rec models.OTPRecord) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO otp_codes (id, current_otp, otp_timestamp) VALUES (1, ?, ?)`,
		rec.Code, rec.IssuedAtEpochMs)
	if err != nil {
		slog.Error("SQLiteStore SaveOTP failed", "error", err)
		return fmt.Errorf("failed to save otp record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOTP() (*models.OTPRecord, error) {
	var rec models.OTPRecord
	err := s.db.QueryRow(`SELECT current_otp, otp_timestamp FROM otp_codes WHERE id = 1`).
		Scan(&rec.Code, &rec.IssuedAtEpochMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetOTP failed", "error", err)
		return nil, fmt.Errorf("failed to read otp record: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) ClearOTP() error {
	_, err := s.db.Exec(`DELETE FROM otp_codes WHERE id = 1`)
	if err != nil {
		slog.Error("SQLiteStore ClearOTP failed", "error", err)
		return fmt.Errorf("failed to clear otp record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveQuota(rec models.DailyQuota) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO need_help_quota (id, need_help_date, need_help_count) VALUES (1, ?, ?)`,
		rec.DateKey, rec.Count)
	if err != nil {
		slog.Error("SQLiteStore SaveQuota failed", "error", err)
		return fmt.Errorf("failed to save quota: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetQuota() (*models.DailyQuota, error) {
	var rec models.DailyQuota
	err := s.db.QueryRow(`SELECT need_help_date, need_help_count FROM need_help_quota WHERE id = 1`).
		Scan(&rec.DateKey, &rec.Count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetQuota failed", "error", err)
		return nil, fmt.Errorf("failed to read quota: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) SaveHeartbeat(epochMs int64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO enforcement_heartbeat (id, beat_time) VALUES (1, ?)`, epochMs)
	if err != nil {
		slog.Error("SQLiteStore SaveHeartbeat failed", "error", err)
		return fmt.Errorf("failed to save heartbeat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHeartbeat() (int64, error) {
	var beat int64
	err := s.db.QueryRow(`SELECT beat_time FROM enforcement_heartbeat WHERE id = 1`).Scan(&beat)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetHeartbeat failed", "error", err)
		return 0, fmt.Errorf("failed to read heartbeat: %w", err)
	}
	return beat, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
