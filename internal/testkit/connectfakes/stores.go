// Package connectfakes provides in-memory connect stores for tests.
package connectfakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
)

// OAuthStateStore is an in-memory OAuthStateStore fake. MarkOAuthStateUsed
// is atomic under the store mutex, like the conditional UPDATE in SQLite.
type OAuthStateStore struct {
	mu     sync.Mutex
	States map[string]storage.OAuthStateRecord

	PutErr    error
	GetErr    error
	MarkErr   error
	DeleteErr error
}

// NewOAuthStateStore constructs an OAuthStateStore fake.
func NewOAuthStateStore() *OAuthStateStore {
	return &OAuthStateStore{States: make(map[string]storage.OAuthStateRecord)}
}

func (s *OAuthStateStore) PutOAuthState(_ context.Context, rec storage.OAuthStateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	for _, existing := range s.States {
		if existing.WorkspaceID == rec.WorkspaceID && existing.Platform == rec.Platform && existing.State == rec.State {
			return storage.ErrConflict
		}
	}
	s.States[rec.ID] = rec
	return nil
}

func (s *OAuthStateStore) GetOAuthState(_ context.Context, workspaceID, platform, state string) (storage.OAuthStateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return storage.OAuthStateRecord{}, s.GetErr
	}
	for _, rec := range s.States {
		if rec.WorkspaceID == workspaceID && rec.Platform == platform && rec.State == state {
			return rec, nil
		}
	}
	return storage.OAuthStateRecord{}, storage.ErrNotFound
}

func (s *OAuthStateStore) GetOAuthStateByValue(_ context.Context, workspaceID, state string) (storage.OAuthStateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return storage.OAuthStateRecord{}, s.GetErr
	}
	for _, rec := range s.States {
		if rec.WorkspaceID == workspaceID && rec.State == state {
			return rec, nil
		}
	}
	return storage.OAuthStateRecord{}, storage.ErrNotFound
}

func (s *OAuthStateStore) MarkOAuthStateUsed(_ context.Context, stateID string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	rec, ok := s.States[stateID]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.Used {
		return storage.ErrConflict
	}
	rec.Used = true
	rec.UsedAt = &usedAt
	s.States[stateID] = rec
	return nil
}

func (s *OAuthStateStore) DeleteExpiredOAuthStates(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	var removed int64
	for id, rec := range s.States {
		if rec.ExpiresAt.Before(now) {
			delete(s.States, id)
			removed++
		}
	}
	return removed, nil
}

func (s *OAuthStateStore) DeleteOAuthStatesByWorkspace(_ context.Context, workspaceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	var removed int64
	for id, rec := range s.States {
		if rec.WorkspaceID == workspaceID {
			delete(s.States, id)
			removed++
		}
	}
	return removed, nil
}

// Get returns a state by id for assertions.
func (s *OAuthStateStore) Get(stateID string) (storage.OAuthStateRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.States[stateID]
	return rec, ok
}

// SocialAccountStore is an in-memory SocialAccountStore fake keyed by
// workspace and platform.
type SocialAccountStore struct {
	mu       sync.Mutex
	Accounts map[string]storage.SocialAccountRecord

	UpsertErr     error
	GetErr        error
	ListErr       error
	DisconnectErr error
	DeleteErr     error

	Upserts int
}

// NewSocialAccountStore constructs a SocialAccountStore fake.
func NewSocialAccountStore() *SocialAccountStore {
	return &SocialAccountStore{Accounts: make(map[string]storage.SocialAccountRecord)}
}

func accountKey(workspaceID, platform string) string {
	return workspaceID + ":" + platform
}

func (s *SocialAccountStore) UpsertSocialAccount(_ context.Context, rec storage.SocialAccountRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertErr != nil {
		return false, s.UpsertErr
	}
	s.Upserts++
	key := accountKey(rec.WorkspaceID, rec.Platform)
	existing, ok := s.Accounts[key]
	if !ok {
		s.Accounts[key] = rec
		return true, nil
	}
	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt
	if rec.ConnectedAt == nil {
		rec.ConnectedAt = existing.ConnectedAt
	}
	if rec.PageID == "" {
		rec.PageID = existing.PageID
	}
	if rec.PageName == "" {
		rec.PageName = existing.PageName
	}
	s.Accounts[key] = rec
	return false, nil
}

func (s *SocialAccountStore) GetSocialAccount(_ context.Context, workspaceID, platform string) (storage.SocialAccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return storage.SocialAccountRecord{}, s.GetErr
	}
	rec, ok := s.Accounts[accountKey(workspaceID, platform)]
	if !ok {
		return storage.SocialAccountRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *SocialAccountStore) ListSocialAccounts(_ context.Context, workspaceID string) ([]storage.SocialAccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	var out []storage.SocialAccountRecord
	for _, rec := range s.Accounts {
		if rec.WorkspaceID == workspaceID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (s *SocialAccountStore) DisconnectSocialAccount(_ context.Context, workspaceID, platform string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DisconnectErr != nil {
		return s.DisconnectErr
	}
	key := accountKey(workspaceID, platform)
	rec, ok := s.Accounts[key]
	if !ok {
		return storage.ErrNotFound
	}
	rec.IsConnected = false
	rec.CredentialsEncrypted = ""
	rec.RefreshTokenEncrypted = ""
	rec.ConnectedAt = nil
	rec.UpdatedAt = updatedAt
	s.Accounts[key] = rec
	return nil
}

func (s *SocialAccountStore) DeleteSocialAccount(_ context.Context, workspaceID, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	key := accountKey(workspaceID, platform)
	if _, ok := s.Accounts[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.Accounts, key)
	return nil
}

// Get returns an account for assertions.
func (s *SocialAccountStore) Get(workspaceID, platform string) (storage.SocialAccountRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.Accounts[accountKey(workspaceID, platform)]
	return rec, ok
}

// AuditEventStore is an in-memory AuditEventStore fake.
type AuditEventStore struct {
	mu     sync.Mutex
	Events []storage.AuditEventRecord

	PutErr error
}

// NewAuditEventStore constructs an AuditEventStore fake.
func NewAuditEventStore() *AuditEventStore {
	return &AuditEventStore{}
}

func (s *AuditEventStore) PutAuditEvent(_ context.Context, rec storage.AuditEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	rec.ID = int64(len(s.Events) + 1)
	s.Events = append(s.Events, rec)
	return nil
}

func (s *AuditEventStore) ListAuditEvents(_ context.Context, filter storage.AuditEventFilter, limit, offset int) ([]storage.AuditEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.AuditEventRecord
	for i := len(s.Events) - 1; i >= 0; i-- {
		rec := s.Events[i]
		if filter.WorkspaceID != "" && rec.WorkspaceID != filter.WorkspaceID ||
			filter.Platform != "" && rec.Platform != filter.Platform ||
			filter.Action != "" && rec.Action != filter.Action ||
			filter.Status != "" && rec.Status != filter.Status ||
			filter.Since != nil && rec.CreatedAt.Before(*filter.Since) ||
			filter.Until != nil && rec.CreatedAt.After(*filter.Until) {
			continue
		}
		out = append(out, rec)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[max(offset, 0):]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AuditEventStore) DeleteAuditEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Events[:0]
	var removed int64
	for _, rec := range s.Events {
		if rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.Events = kept
	return removed, nil
}

// Actions returns the recorded actions in order.
func (s *AuditEventStore) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Events))
	for i, rec := range s.Events {
		out[i] = rec.Action
	}
	return out
}

// Snapshot returns a copy of the recorded events.
func (s *AuditEventStore) Snapshot() []storage.AuditEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.AuditEventRecord(nil), s.Events...)
}
