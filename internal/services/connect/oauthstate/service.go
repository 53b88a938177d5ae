package oauthstate

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"github.com/louisbranch/socialconnect/internal/platform/id"
	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/securetoken"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TTL is how long an issued state stays verifiable.
const TTL = 5 * time.Minute

const tracerName = "github.com/louisbranch/socialconnect/internal/services/connect/oauthstate"

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides state row id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.idGenerator = fn
		}
	}
}

// WithRandomReader overrides the source used for states and verifiers.
func WithRandomReader(reader io.Reader) Option {
	return func(s *Service) {
		s.tokens = securetoken.Generator{Reader: reader}
	}
}

// WithCatalog enables AuthorizationURL.
func WithCatalog(catalog *socialplatform.Catalog) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// Service owns the CSRF state lifecycle.
type Service struct {
	store       storage.OAuthStateStore
	recorder    *audit.Recorder
	catalog     *socialplatform.Catalog
	tokens      securetoken.Generator
	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
}

// NewService builds a state service over store. recorder may be nil.
func NewService(store storage.OAuthStateStore, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:       store,
		recorder:    recorder,
		clock:       time.Now,
		idGenerator: id.NewID,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueInput describes a state to issue.
type IssueInput struct {
	WorkspaceID string
	Platform    string
	UsePKCE     bool
	IPAddress   string
	UserAgent   string
}

// IssueResult is handed to the caller once. CodeVerifier is never stored and
// cannot be retrieved again.
type IssueResult struct {
	ID                  string
	State               string
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
}

// Issue generates and persists a new unused state.
func (s *Service) Issue(ctx context.Context, input IssueInput) (IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "oauthstate.Issue")
	defer span.End()

	workspaceID := strings.TrimSpace(input.WorkspaceID)
	if workspaceID == "" {
		return IssueResult{}, apperrors.New(apperrors.CodeWorkspaceIDEmpty, "workspace id is required")
	}
	platform, err := socialplatform.Parse(input.Platform)
	if err != nil {
		return IssueResult{}, err
	}
	span.SetAttributes(
		attribute.String("connect.workspace_id", workspaceID),
		attribute.String("connect.platform", string(platform)),
		attribute.Bool("connect.pkce", input.UsePKCE),
	)

	result, err := s.issue(ctx, workspaceID, platform, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "issue state")
		event := audit.Failure(workspaceID, string(platform), audit.ActionStateIssued, "", err)
		event.IPAddress, event.UserAgent = input.IPAddress, input.UserAgent
		s.recorder.Record(ctx, event)
		return IssueResult{}, err
	}
	event := audit.Success(workspaceID, string(platform), audit.ActionStateIssued)
	event.IPAddress, event.UserAgent = input.IPAddress, input.UserAgent
	s.recorder.Record(ctx, event)
	return result, nil
}

func (s *Service) issue(ctx context.Context, workspaceID string, platform socialplatform.Platform, input IssueInput) (IssueResult, error) {
	state, err := s.tokens.RandomState(securetoken.DefaultStateBytes)
	if err != nil {
		return IssueResult{}, err
	}
	var pair securetoken.PKCE
	if input.UsePKCE {
		pair, err = s.tokens.PKCE()
		if err != nil {
			return IssueResult{}, err
		}
	}
	stateID, err := s.idGenerator()
	if err != nil {
		return IssueResult{}, apperrors.Wrap(apperrors.CodeStateIssueFailed, "generate state id", err)
	}

	now := s.clock().UTC()
	record := storage.OAuthStateRecord{
		ID:                  stateID,
		WorkspaceID:         workspaceID,
		Platform:            string(platform),
		State:               state,
		CodeChallenge:       pair.CodeChallenge,
		CodeChallengeMethod: pair.CodeChallengeMethod,
		ExpiresAt:           now.Add(TTL),
		IPAddress:           strings.TrimSpace(input.IPAddress),
		UserAgent:           strings.TrimSpace(input.UserAgent),
		CreatedAt:           now,
	}
	if err := s.store.PutOAuthState(ctx, record); err != nil {
		return IssueResult{}, apperrors.Wrap(apperrors.CodeStateIssueFailed, "persist oauth state", err)
	}
	return IssueResult{
		ID:                  stateID,
		State:               state,
		CodeVerifier:        pair.CodeVerifier,
		CodeChallenge:       pair.CodeChallenge,
		CodeChallengeMethod: pair.CodeChallengeMethod,
		ExpiresAt:           record.ExpiresAt,
	}, nil
}

// CleanupExpired deletes every state past its expiry and returns the count.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpiredOAuthStates(ctx, s.clock().UTC())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStateStorageFailed, "cleanup expired states", err)
	}
	return removed, nil
}

// PurgeWorkspace deletes every state of one workspace.
func (s *Service) PurgeWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return 0, apperrors.New(apperrors.CodeWorkspaceIDEmpty, "workspace id is required")
	}
	removed, err := s.store.DeleteOAuthStatesByWorkspace(ctx, workspaceID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStateStorageFailed, "purge workspace states", err)
	}
	return removed, nil
}

// Info reads a state without touching its used flag.
func (s *Service) Info(ctx context.Context, workspaceID, state string) (storage.OAuthStateRecord, bool, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" || state == "" {
		return storage.OAuthStateRecord{}, false, nil
	}
	record, err := s.store.GetOAuthStateByValue(ctx, workspaceID, state)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.OAuthStateRecord{}, false, nil
		}
		return storage.OAuthStateRecord{}, false, apperrors.Wrap(apperrors.CodeStateStorageFailed, "read oauth state", err)
	}
	return record, true, nil
}
