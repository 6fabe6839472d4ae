package store

import (
	"sync"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

// InMemoryStore is a non-durable Store used in tests and as the fallback when
// no database DSN is configured. Safe for concurrent use.
type InMemoryStore struct {
	mu        sync.Mutex
	session   *models.SessionState
	override  *models.NeedHelpOverride
	otp       *models.OTPRecord
	quota     *models.DailyQuota
	heartbeat int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveSession(rec models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.session = &cp
	return nil
}

func (s *InMemoryStore) GetSession() (*models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *InMemoryStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *InMemoryStore) SaveOverride(rec models.NeedHelpOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.override = &cp
	return nil
}

func (s *InMemoryStore) GetOverride() (*models.NeedHelpOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override == nil {
		return nil, nil
	}
	cp := *s.override
	return &cp, nil
}

func (s *InMemoryStore) ClearOverride() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = nil
	return nil
}

func (s *InMemoryStore) SaveOTP(rec models.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.otp = &cp
	return nil
}

func (s *InMemoryStore) GetOTP() (*models.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.otp == nil {
		return nil, nil
	}
	cp := *s.otp
	return &cp, nil
}

func (s *InMemoryStore) ClearOTP() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otp = nil
	return nil
}

func (s *InMemoryStore) SaveQuota(rec models.DailyQuota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.quota = &cp
	return nil
}

func (s *InMemoryStore) GetQuota() (*models.DailyQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota == nil {
		return nil, nil
	}
	cp := *s.quota
	return &cp, nil
}

func (s *InMemoryStore) SaveHeartbeat(epochMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeat = epochMs
	return nil
}

func (s *InMemoryStore) GetHeartbeat() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeat, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
