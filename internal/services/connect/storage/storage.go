// Package storage defines the persistence contracts of the connect service.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a requested state transition is invalid.
var ErrConflict = errors.New("record conflict")

// OAuthStateRecord stores one pending CSRF state for an OAuth handshake.
type OAuthStateRecord struct {
	ID          string
	WorkspaceID string
	Platform    string
	State       string
	// CodeChallenge is empty when PKCE was not requested. The verifier is
	// never stored.
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Used                bool
	UsedAt              *time.Time
	IPAddress           string
	UserAgent           string
	CreatedAt           time.Time
}

// SocialAccountRecord stores the encrypted credentials of one workspace
// platform connection.
type SocialAccountRecord struct {
	ID          string
	WorkspaceID string
	Platform    string
	IsConnected bool
	// CredentialsEncrypted and RefreshTokenEncrypted hold sealed blobs only;
	// plaintext tokens must never cross into storage records.
	CredentialsEncrypted  string
	RefreshTokenEncrypted string
	ExpiresAt             *time.Time
	LastRefreshedAt       *time.Time
	ConnectedAt           *time.Time
	PageID                string
	PageName              string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AuditEventRecord stores one credential lifecycle audit entry.
type AuditEventRecord struct {
	ID           int64
	WorkspaceID  string
	Platform     string
	Action       string
	Status       string
	ErrorCode    string
	ErrorMessage string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

// AuditEventFilter narrows audit event reads. Empty fields match everything.
type AuditEventFilter struct {
	WorkspaceID string
	Platform    string
	Action      string
	Status      string
	Since       *time.Time
	Until       *time.Time
}

// OAuthStateStore persists CSRF state records.
type OAuthStateStore interface {
	PutOAuthState(ctx context.Context, record OAuthStateRecord) error
	// GetOAuthState looks a state up by its exact workspace, platform and value.
	GetOAuthState(ctx context.Context, workspaceID string, platform string, state string) (OAuthStateRecord, error)
	GetOAuthStateByValue(ctx context.Context, workspaceID string, state string) (OAuthStateRecord, error)
	// MarkOAuthStateUsed flips an unused state to used. It returns ErrConflict
	// when the state was already used, so exactly one concurrent caller wins.
	MarkOAuthStateUsed(ctx context.Context, stateID string, usedAt time.Time) error
	DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error)
	DeleteOAuthStatesByWorkspace(ctx context.Context, workspaceID string) (int64, error)
}

// SocialAccountStore persists encrypted platform credentials.
type SocialAccountStore interface {
	// UpsertSocialAccount inserts record or updates the existing row for its
	// workspace and platform. inserted reports which one happened.
	UpsertSocialAccount(ctx context.Context, record SocialAccountRecord) (inserted bool, err error)
	GetSocialAccount(ctx context.Context, workspaceID string, platform string) (SocialAccountRecord, error)
	ListSocialAccounts(ctx context.Context, workspaceID string) ([]SocialAccountRecord, error)
	DisconnectSocialAccount(ctx context.Context, workspaceID string, platform string, updatedAt time.Time) error
	DeleteSocialAccount(ctx context.Context, workspaceID string, platform string) error
}

// AuditEventStore persists credential audit events.
type AuditEventStore interface {
	PutAuditEvent(ctx context.Context, record AuditEventRecord) error
	ListAuditEvents(ctx context.Context, filter AuditEventFilter, limit int, offset int) ([]AuditEventRecord, error)
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
