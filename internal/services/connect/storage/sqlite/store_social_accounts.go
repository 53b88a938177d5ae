package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
)

const socialAccountColumns = `id, workspace_id, platform, is_connected, credentials_encrypted,
	refresh_token_encrypted, expires_at, last_refreshed_at, connected_at, page_id, page_name,
	created_at, updated_at`

// UpsertSocialAccount inserts or updates the row for the record's workspace
// and platform in one statement. record.ID is only used on insert, so the
// returned id tells the two cases apart.
func (s *Store) UpsertSocialAccount(ctx context.Context, record storage.SocialAccountRecord) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return false, fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(record.WorkspaceID) == "" {
		return false, fmt.Errorf("workspace id is required")
	}
	if strings.TrimSpace(record.Platform) == "" {
		return false, fmt.Errorf("platform is required")
	}
	if strings.TrimSpace(record.CredentialsEncrypted) == "" {
		return false, fmt.Errorf("credentials ciphertext is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return false, fmt.Errorf("created at and updated at are required")
	}

	var storedID string
	err := s.sqlDB.QueryRowContext(ctx, `
INSERT INTO social_accounts (
	id, workspace_id, platform, is_connected, credentials_encrypted, refresh_token_encrypted,
	expires_at, last_refreshed_at, connected_at, page_id, page_name, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(workspace_id, platform) DO UPDATE SET
	is_connected = excluded.is_connected,
	credentials_encrypted = excluded.credentials_encrypted,
	refresh_token_encrypted = excluded.refresh_token_encrypted,
	expires_at = excluded.expires_at,
	last_refreshed_at = excluded.last_refreshed_at,
	connected_at = COALESCE(excluded.connected_at, social_accounts.connected_at),
	page_id = COALESCE(excluded.page_id, social_accounts.page_id),
	page_name = COALESCE(excluded.page_name, social_accounts.page_name),
	updated_at = excluded.updated_at
RETURNING id
`,
		record.ID,
		strings.TrimSpace(record.WorkspaceID),
		strings.TrimSpace(record.Platform),
		boolToInt(record.IsConnected),
		record.CredentialsEncrypted,
		toNullString(record.RefreshTokenEncrypted),
		toNullMillis(record.ExpiresAt),
		toNullMillis(record.LastRefreshedAt),
		toNullMillis(record.ConnectedAt),
		toNullString(record.PageID),
		toNullString(record.PageName),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	).Scan(&storedID)
	if err != nil {
		return false, fmt.Errorf("upsert social account: %w", err)
	}
	return storedID == record.ID, nil
}

// GetSocialAccount fetches the account row for one workspace platform.
func (s *Store) GetSocialAccount(ctx context.Context, workspaceID string, platform string) (storage.SocialAccountRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SocialAccountRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+socialAccountColumns+`
FROM social_accounts
WHERE workspace_id = ? AND platform = ?
`, strings.TrimSpace(workspaceID), strings.TrimSpace(platform))

	rec, err := scanSocialAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SocialAccountRecord{}, storage.ErrNotFound
		}
		return storage.SocialAccountRecord{}, fmt.Errorf("get social account: %w", err)
	}
	return rec, nil
}

// ListSocialAccounts returns every account row of one workspace ordered by platform.
func (s *Store) ListSocialAccounts(ctx context.Context, workspaceID string) ([]storage.SocialAccountRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+socialAccountColumns+`
FROM social_accounts
WHERE workspace_id = ?
ORDER BY platform
`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}
	defer rows.Close()

	var accounts []storage.SocialAccountRecord
	for rows.Next() {
		rec, err := scanSocialAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan social account: %w", err)
		}
		accounts = append(accounts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate social accounts: %w", err)
	}
	return accounts, nil
}

// DisconnectSocialAccount clears the sealed blobs and connection time but
// keeps the row and its page metadata.
func (s *Store) DisconnectSocialAccount(ctx context.Context, workspaceID string, platform string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE social_accounts
SET is_connected = 0,
	credentials_encrypted = NULL,
	refresh_token_encrypted = NULL,
	connected_at = NULL,
	updated_at = ?
WHERE workspace_id = ? AND platform = ?
`, toMillis(updatedAt), strings.TrimSpace(workspaceID), strings.TrimSpace(platform))
	if err != nil {
		return fmt.Errorf("disconnect social account: %w", err)
	}
	return requireAffected(res)
}

// DeleteSocialAccount removes the account row entirely.
func (s *Store) DeleteSocialAccount(ctx context.Context, workspaceID string, platform string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM social_accounts
WHERE workspace_id = ? AND platform = ?
`, strings.TrimSpace(workspaceID), strings.TrimSpace(platform))
	if err != nil {
		return fmt.Errorf("delete social account: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSocialAccount(row rowScanner) (storage.SocialAccountRecord, error) {
	var (
		rec                   storage.SocialAccountRecord
		isConnected           int
		credentialsEncrypted  sql.NullString
		refreshTokenEncrypted sql.NullString
		expiresAt             sql.NullInt64
		lastRefreshedAt       sql.NullInt64
		connectedAt           sql.NullInt64
		pageID                sql.NullString
		pageName              sql.NullString
		createdAt             int64
		updatedAt             int64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.WorkspaceID,
		&rec.Platform,
		&isConnected,
		&credentialsEncrypted,
		&refreshTokenEncrypted,
		&expiresAt,
		&lastRefreshedAt,
		&connectedAt,
		&pageID,
		&pageName,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.SocialAccountRecord{}, err
	}
	rec.IsConnected = isConnected != 0
	rec.CredentialsEncrypted = credentialsEncrypted.String
	rec.RefreshTokenEncrypted = refreshTokenEncrypted.String
	rec.ExpiresAt = fromNullMillis(expiresAt)
	rec.LastRefreshedAt = fromNullMillis(lastRefreshedAt)
	rec.ConnectedAt = fromNullMillis(connectedAt)
	rec.PageID = pageID.String
	rec.PageName = pageName.String
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
