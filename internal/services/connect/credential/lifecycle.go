package credential

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/secret"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
)

// Get returns the decrypted credentials. found is false when nothing is
// stored or the platform was disconnected. A refresh token that fails to
// decrypt is logged and left empty.
func (m *Manager) Get(ctx context.Context, workspaceID, platform string) (Stored, bool, error) {
	ws, p, err := normalize(workspaceID, platform)
	if err != nil {
		return Stored{}, false, err
	}
	record, err := m.store.GetSocialAccount(ctx, ws, string(p))
	if err != nil {
		if isNotFound(err) {
			return Stored{}, false, nil
		}
		return Stored{}, false, storageError("get credentials", err)
	}
	if record.CredentialsEncrypted == "" {
		return Stored{}, false, nil
	}

	key, err := m.workspaceKey(ws)
	if err != nil {
		return Stored{}, false, err
	}
	var creds Credentials
	if err := m.cipher.Decrypt(record.CredentialsEncrypted, key, &creds); err != nil {
		return Stored{}, false, apperrors.Wrap(apperrors.CodeDecryptionFailed, "decrypt credentials", err)
	}

	stored := Stored{
		Credentials:     creds,
		ExpiresAt:       record.ExpiresAt,
		LastRefreshedAt: record.LastRefreshedAt,
		ConnectedAt:     record.ConnectedAt,
		PageID:          record.PageID,
		PageName:        record.PageName,
	}
	if record.RefreshTokenEncrypted != "" {
		var refresh refreshPayload
		if err := m.cipher.Decrypt(record.RefreshTokenEncrypted, key, &refresh); err != nil {
			m.logf("refresh token unreadable for %s: %v", describe(ws, p), err)
		} else {
			stored.RefreshToken = refresh.Token
		}
	}
	return stored, true, nil
}

// VerifyAndRefresh returns usable credentials, refreshing them through
// refresh when the access token has expired. Concurrent refreshes of the
// same workspace platform share one refresh call.
func (m *Manager) VerifyAndRefresh(ctx context.Context, workspaceID, platform string, refresh RefreshFunc) (Credentials, error) {
	ctx, span := m.tracer.Start(ctx, "credential.VerifyAndRefresh")
	defer span.End()

	ws, p, err := normalize(workspaceID, platform)
	if err != nil {
		return Credentials{}, err
	}
	span.SetAttributes(attribute.String("connect.workspace_id", ws), attribute.String("connect.platform", string(p)))

	stored, found, err := m.Get(ctx, ws, string(p))
	if err != nil {
		return Credentials{}, err
	}
	if !found {
		return Credentials{}, ErrNoCredentials
	}
	if !m.expired(stored) {
		return stored.Credentials, nil
	}
	if stored.RefreshToken == "" || refresh == nil {
		return Credentials{}, ErrNoRefreshToken
	}

	span.SetAttributes(attribute.Bool("connect.refreshed", true))
	// The shared refresh outlives any one caller; each caller still stops
	// waiting when its own ctx ends.
	results := m.refreshes.DoChan(ws+":"+string(p), func() (any, error) {
		return m.refreshIfExpired(context.WithoutCancel(ctx), ws, p, refresh)
	})
	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		span.SetStatus(otelcodes.Error, "refresh credentials")
		return Credentials{}, ctx.Err()
	case result := <-results:
		span.SetAttributes(attribute.Bool("connect.refresh_shared", result.Shared))
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(otelcodes.Error, "refresh credentials")
			return Credentials{}, result.Err
		}
		return result.Val.(Credentials), nil
	}
}

func (m *Manager) expired(stored Stored) bool {
	return stored.ExpiresAt != nil && m.now().After(*stored.ExpiresAt)
}

// refreshIfExpired re-reads the row so a caller that saw the expired row
// before another refresh was saved reuses that result instead of replaying
// a rotated refresh token.
func (m *Manager) refreshIfExpired(ctx context.Context, ws string, p socialplatform.Platform, refresh RefreshFunc) (Credentials, error) {
	current, found, err := m.Get(ctx, ws, string(p))
	if err != nil {
		return Credentials{}, err
	}
	if !found {
		return Credentials{}, ErrNoCredentials
	}
	if !m.expired(current) {
		return current.Credentials, nil
	}
	if current.RefreshToken == "" {
		return Credentials{}, ErrNoRefreshToken
	}
	return m.refresh(ctx, ws, p, current, refresh)
}

func (m *Manager) refresh(ctx context.Context, ws string, p socialplatform.Platform, current Stored, refresh RefreshFunc) (Credentials, error) {
	refreshed, err := refresh(ctx, current)
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeTokenRefreshFailed, fmt.Sprintf("refresh %s token", p), err)
		m.recorder.Record(ctx, audit.Failure(ws, string(p), audit.ActionTokenRefreshFailed, string(apperrors.CodeTokenRefreshFailed), err))
		return Credentials{}, wrapped
	}

	refreshToken := refreshed.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken
	}
	inserted, err := m.save(ctx, ws, p, refreshed.Credentials, SaveOptions{
		RefreshToken: refreshToken,
		ExpiresAt:    refreshed.ExpiresAt,
	}, nil)
	if err != nil {
		m.recordFailure(ctx, ws, string(p), audit.ActionSaveFailed, err)
		return Credentials{}, err
	}
	saveAction := audit.ActionCredentialsUpdated
	if inserted {
		saveAction = audit.ActionPlatformConnected
	}
	m.recorder.Record(ctx, audit.Success(ws, string(p), saveAction))
	m.recorder.Record(ctx, audit.Success(ws, string(p), audit.ActionTokenRefreshed))
	return refreshed.Credentials, nil
}

// Disconnect clears the sealed credentials but keeps the row.
func (m *Manager) Disconnect(ctx context.Context, workspaceID, platform string) error {
	ws, p, err := normalize(workspaceID, platform)
	if err != nil {
		return err
	}
	if err := m.store.DisconnectSocialAccount(ctx, ws, string(p), m.now()); err != nil {
		if isNotFound(err) {
			err = apperrors.Wrap(apperrors.CodeCredentialsNotFound, "disconnect credentials", err)
		} else {
			err = storageError("disconnect credentials", err)
		}
		m.recordFailure(ctx, ws, string(p), audit.ActionDisconnectFailed, err)
		return err
	}
	m.recorder.Record(ctx, audit.Success(ws, string(p), audit.ActionPlatformDisconnected))
	return nil
}

// Delete removes the row entirely.
func (m *Manager) Delete(ctx context.Context, workspaceID, platform string) error {
	ws, p, err := normalize(workspaceID, platform)
	if err != nil {
		return err
	}
	if err := m.store.DeleteSocialAccount(ctx, ws, string(p)); err != nil {
		if isNotFound(err) {
			err = apperrors.Wrap(apperrors.CodeCredentialsNotFound, "delete credentials", err)
		} else {
			err = storageError("delete credentials", err)
		}
		m.recordFailure(ctx, ws, string(p), audit.ActionDeleteFailed, err)
		return err
	}
	m.recorder.Record(ctx, audit.Success(ws, string(p), audit.ActionCredentialsDeleted))
	return nil
}

// IsDecryptionFailure reports whether err came from an unreadable blob.
func IsDecryptionFailure(err error) bool {
	return errors.Is(err, secret.ErrDecryptionFailed)
}
