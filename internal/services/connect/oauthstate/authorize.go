package oauthstate

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
)

// AuthorizeInput starts a connect handshake for one workspace platform.
type AuthorizeInput struct {
	WorkspaceID string
	Platform    string
	IPAddress   string
	UserAgent   string
}

// Authorization is the redirect the browser should follow plus the values
// the caller must keep for the token exchange.
type Authorization struct {
	URL          string
	State        string
	CodeVerifier string
	ExpiresAt    time.Time
}

// AuthorizationURL issues a PKCE state and builds the provider consent URL.
func (s *Service) AuthorizationURL(ctx context.Context, input AuthorizeInput) (Authorization, error) {
	if s.catalog == nil {
		return Authorization{}, apperrors.New(apperrors.CodeConfigPlatformUnavailable, "platform catalog is not configured")
	}
	platform, err := socialplatform.Parse(input.Platform)
	if err != nil {
		return Authorization{}, err
	}
	if _, err := s.catalog.Config(platform); err != nil {
		return Authorization{}, err
	}

	issued, err := s.Issue(ctx, IssueInput{
		WorkspaceID: input.WorkspaceID,
		Platform:    string(platform),
		UsePKCE:     true,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
	})
	if err != nil {
		return Authorization{}, err
	}
	url, err := s.catalog.AuthorizationURL(platform, issued.State, issued.CodeChallenge)
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{
		URL:          url,
		State:        issued.State,
		CodeVerifier: issued.CodeVerifier,
		ExpiresAt:    issued.ExpiresAt,
	}, nil
}
