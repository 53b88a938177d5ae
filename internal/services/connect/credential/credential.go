// Package credential manages sealed social platform credentials for a
// workspace: save, read, refresh on expiry, disconnect and delete.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"github.com/louisbranch/socialconnect/internal/platform/id"
	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/secret"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/louisbranch/socialconnect/internal/services/connect/credential"

// ExpiringSoonWindow marks tokens that expire within this window.
const ExpiringSoonWindow = 24 * time.Hour

var (
	// ErrNoCredentials reports that nothing is stored for the platform.
	ErrNoCredentials = apperrors.New(apperrors.CodeCredentialsNotFound, "no credentials found")
	// ErrNoRefreshToken reports an expired token that cannot be refreshed.
	ErrNoRefreshToken = apperrors.New(apperrors.CodeTokenExpired, "token expired, no refresh token available")
)

// Credentials is the provider payload sealed into credentials_encrypted.
type Credentials struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type,omitempty"`
	Scope       string            `json:"scope,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	Username    string            `json:"username,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// refreshPayload is sealed independently of Credentials.
type refreshPayload struct {
	Token string `json:"token"`
}

// SaveOptions carries the optional values stored next to the credentials.
type SaveOptions struct {
	RefreshToken string
	ExpiresAt    *time.Time
	PageID       string
	PageName     string
	IPAddress    string
	UserAgent    string
}

// Stored is a decrypted credential row.
type Stored struct {
	Credentials     Credentials
	RefreshToken    string
	ExpiresAt       *time.Time
	LastRefreshedAt *time.Time
	ConnectedAt     *time.Time
	PageID          string
	PageName        string
}

// Refreshed is what a RefreshFunc returns. An empty RefreshToken keeps the
// current one.
type Refreshed struct {
	Credentials  Credentials
	RefreshToken string
	ExpiresAt    *time.Time
}

// RefreshFunc exchanges a refresh token with the provider.
type RefreshFunc func(ctx context.Context, current Stored) (Refreshed, error)

// KeySource returns the encryption key of a workspace.
type KeySource interface {
	WorkspaceKey(workspaceID string) ([]byte, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithIDGenerator overrides account id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.idGenerator = fn
		}
	}
}

// WithCipher overrides the sealing cipher.
func WithCipher(c secret.Cipher) Option {
	return func(m *Manager) {
		m.cipher = c
	}
}

// WithPlatforms limits ConnectionStatus to the given platforms.
func WithPlatforms(platforms []socialplatform.Platform) Option {
	return func(m *Manager) {
		if len(platforms) > 0 {
			m.platforms = append([]socialplatform.Platform(nil), platforms...)
		}
	}
}

// WithLogger overrides operational logging.
func WithLogger(logf func(string, ...any)) Option {
	return func(m *Manager) {
		if logf != nil {
			m.logf = logf
		}
	}
}

// Manager owns the credential lifecycle.
type Manager struct {
	store       storage.SocialAccountStore
	keys        KeySource
	recorder    *audit.Recorder
	cipher      secret.Cipher
	clock       func() time.Time
	idGenerator func() (string, error)
	platforms   []socialplatform.Platform
	refreshes   singleflight.Group
	tracer      trace.Tracer
	logf        func(string, ...any)
}

// NewManager builds a manager. recorder may be nil.
func NewManager(store storage.SocialAccountStore, keys KeySource, recorder *audit.Recorder, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		keys:        keys,
		recorder:    recorder,
		clock:       time.Now,
		idGenerator: id.NewID,
		platforms:   socialplatform.All(),
		tracer:      otel.Tracer(tracerName),
		logf:        log.Printf,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func normalize(workspaceID, platform string) (string, socialplatform.Platform, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return "", "", apperrors.New(apperrors.CodeWorkspaceIDEmpty, "workspace id is required")
	}
	p, err := socialplatform.Parse(platform)
	if err != nil {
		return "", "", err
	}
	return workspaceID, p, nil
}

func (m *Manager) workspaceKey(workspaceID string) ([]byte, error) {
	key, err := m.keys.WorkspaceKey(workspaceID)
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeUnknown {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeKeyDerivationFailed, "derive workspace key", err)
	}
	return key, nil
}

func storageError(message string, err error) error {
	return apperrors.Wrap(apperrors.CodeCredentialsStorage, message, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func (m *Manager) recordFailure(ctx context.Context, workspaceID, platform string, action audit.Action, err error) {
	m.recorder.Record(ctx, audit.Failure(workspaceID, platform, action, "", err))
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

func describe(workspaceID string, platform socialplatform.Platform) string {
	return fmt.Sprintf("workspace %s platform %s", workspaceID, platform)
}
