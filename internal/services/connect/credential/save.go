package credential

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
)

// Save seals creds and upserts the workspace platform row. It audits
// platform_connected on insert and credentials_updated on update.
func (m *Manager) Save(ctx context.Context, workspaceID, platform string, creds Credentials, opts SaveOptions) error {
	ctx, span := m.tracer.Start(ctx, "credential.Save")
	defer span.End()

	ws, p, err := normalize(workspaceID, platform)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("connect.workspace_id", ws), attribute.String("connect.platform", string(p)))

	now := m.now()
	inserted, err := m.save(ctx, ws, p, creds, opts, &now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "save credentials")
		event := audit.Failure(ws, string(p), audit.ActionSaveFailed, "", err)
		event.IPAddress, event.UserAgent = opts.IPAddress, opts.UserAgent
		m.recorder.Record(ctx, event)
		return err
	}

	action := audit.ActionCredentialsUpdated
	if inserted {
		action = audit.ActionPlatformConnected
	}
	span.SetAttributes(attribute.Bool("connect.inserted", inserted))
	event := audit.Success(ws, string(p), action)
	event.IPAddress, event.UserAgent = opts.IPAddress, opts.UserAgent
	m.recorder.Record(ctx, event)
	return nil
}

// save seals and upserts. connectedAt nil keeps the stored connection time.
func (m *Manager) save(ctx context.Context, ws string, p socialplatform.Platform, creds Credentials, opts SaveOptions, connectedAt *time.Time) (bool, error) {
	key, err := m.workspaceKey(ws)
	if err != nil {
		return false, err
	}
	sealed, err := m.cipher.Encrypt(creds, key)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeEncryptionFailed, "encrypt credentials", err)
	}
	var sealedRefresh string
	if opts.RefreshToken != "" {
		sealedRefresh, err = m.cipher.Encrypt(refreshPayload{Token: opts.RefreshToken}, key)
		if err != nil {
			return false, apperrors.Wrap(apperrors.CodeEncryptionFailed, "encrypt refresh token", err)
		}
	}

	accountID, err := m.idGenerator()
	if err != nil {
		return false, storageError("generate account id", err)
	}
	now := m.now()
	inserted, err := m.store.UpsertSocialAccount(ctx, storage.SocialAccountRecord{
		ID:                    accountID,
		WorkspaceID:           ws,
		Platform:              string(p),
		IsConnected:           true,
		CredentialsEncrypted:  sealed,
		RefreshTokenEncrypted: sealedRefresh,
		ExpiresAt:             opts.ExpiresAt,
		LastRefreshedAt:       &now,
		ConnectedAt:           connectedAt,
		PageID:                opts.PageID,
		PageName:              opts.PageName,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err != nil {
		return false, storageError("save credentials", err)
	}
	return inserted, nil
}
