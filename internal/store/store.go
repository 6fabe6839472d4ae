// Package store provides durable storage backends for GetYourLifeBack.
//
// The store holds the session, override, OTP and quota namespaces plus the
// enforcement heartbeat. Every method commits atomically; multi-field writes
// run inside a transaction so independently-scheduled timers never observe a
// torn record.
package store

import (
	"strings"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

// Store is the durable key-value contract the session machinery runs on.
// Getters return (nil, nil) when the record does not exist.
type Store interface {
	SaveSession(s models.SessionState) error
	GetSession() (*models.SessionState, error)
	ClearSession() error

	SaveOverride(o models.NeedHelpOverride) error
	GetOverride() (*models.NeedHelpOverride, error)
	ClearOverride() error

	SaveOTP(r models.OTPRecord) error
	GetOTP() (*models.OTPRecord, error)
	ClearOTP() error

	SaveQuota(q models.DailyQuota) error
	GetQuota() (*models.DailyQuota, error)

	SaveHeartbeat(epochMs int64) error
	GetHeartbeat() (int64, error)

	Close() error
}

// Opts holds configuration options for building a store.
type Opts struct {
	SQLiteDSN   string
	PostgresDSN string
}

// Option defines a configuration option for building a store.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.SQLiteDSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL-shaped DSNs and "sqlite"
// for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
