package oauthstate

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
	"go.opentelemetry.io/otel/attribute"
)

// Reason classifies a rejected verification.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonNotFound Reason = "not_found"
	ReasonReplayed Reason = "replayed"
	ReasonExpired  Reason = "expired"
	ReasonStorage  Reason = "storage"
)

// Rejection messages shown to the user by the callback handler.
const (
	MessageNotFound = "State not found"
	MessageReplayed = "State already used (replay attack detected)"
	MessageExpired  = "State expired"
	MessageStorage  = "State verification failed"
)

var reasonDetails = map[Reason]struct {
	message string
	code    apperrors.Code
}{
	ReasonNotFound: {MessageNotFound, apperrors.CodeStateNotFound},
	ReasonReplayed: {MessageReplayed, apperrors.CodeStateReplayed},
	ReasonExpired:  {MessageExpired, apperrors.CodeStateExpired},
	ReasonStorage:  {MessageStorage, apperrors.CodeStateStorageFailed},
}

// VerifyResult is the outcome of a verification.
type VerifyResult struct {
	Valid               bool
	Reason              Reason
	Error               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Err returns the rejection as a domain error, or nil when valid.
func (r VerifyResult) Err() error {
	if r.Valid {
		return nil
	}
	detail, ok := reasonDetails[r.Reason]
	if !ok {
		return apperrors.New(apperrors.CodeUnknown, r.Error)
	}
	return apperrors.New(detail.code, detail.message)
}

func rejected(reason Reason) VerifyResult {
	return VerifyResult{Reason: reason, Error: reasonDetails[reason].message}
}

// Verify consumes state for workspaceID and platform. Checks run in order:
// existence, prior use, expiry. The used flag flips through a conditional
// update so concurrent callers cannot both succeed.
func (s *Service) Verify(ctx context.Context, workspaceID, platform, state string) VerifyResult {
	ctx, span := s.tracer.Start(ctx, "oauthstate.Verify")
	defer span.End()

	workspaceID = strings.TrimSpace(workspaceID)
	platform = strings.ToLower(strings.TrimSpace(platform))
	span.SetAttributes(
		attribute.String("connect.workspace_id", workspaceID),
		attribute.String("connect.platform", platform),
	)

	result, cause := s.verify(ctx, workspaceID, platform, state)
	span.SetAttributes(attribute.Bool("connect.state_valid", result.Valid))
	if result.Valid {
		s.recorder.Record(ctx, audit.Success(workspaceID, platform, audit.ActionStateVerified))
		return result
	}

	span.SetAttributes(attribute.String("connect.reject_reason", string(result.Reason)))
	err := cause
	if err == nil {
		err = errors.New(result.Error)
	}
	code := string(reasonDetails[result.Reason].code)
	s.recorder.Record(ctx, audit.Failure(workspaceID, platform, audit.ActionStateVerifyFailed, code, err))
	return result
}

func (s *Service) verify(ctx context.Context, workspaceID, platform, state string) (VerifyResult, error) {
	if workspaceID == "" || platform == "" || state == "" {
		return rejected(ReasonNotFound), nil
	}

	record, err := s.store.GetOAuthState(ctx, workspaceID, platform, state)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return rejected(ReasonNotFound), nil
		}
		return rejected(ReasonStorage), err
	}
	if record.Used {
		return rejected(ReasonReplayed), nil
	}
	now := s.clock().UTC()
	if now.After(record.ExpiresAt) {
		return rejected(ReasonExpired), nil
	}

	if err := s.store.MarkOAuthStateUsed(ctx, record.ID, now); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return rejected(ReasonReplayed), nil
		case errors.Is(err, storage.ErrNotFound):
			return rejected(ReasonNotFound), nil
		default:
			return rejected(ReasonStorage), err
		}
	}
	return VerifyResult{
		Valid:               true,
		CodeChallenge:       record.CodeChallenge,
		CodeChallengeMethod: record.CodeChallengeMethod,
	}, nil
}
