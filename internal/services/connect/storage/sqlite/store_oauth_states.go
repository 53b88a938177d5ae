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

const oauthStateColumns = `id, workspace_id, platform, state, code_challenge, code_challenge_method,
	expires_at, used, used_at, ip_address, user_agent, created_at`

// PutOAuthState persists a freshly issued state.
func (s *Store) PutOAuthState(ctx context.Context, record storage.OAuthStateRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("state id is required")
	}
	if strings.TrimSpace(record.WorkspaceID) == "" {
		return fmt.Errorf("workspace id is required")
	}
	if strings.TrimSpace(record.Platform) == "" {
		return fmt.Errorf("platform is required")
	}
	if strings.TrimSpace(record.State) == "" {
		return fmt.Errorf("state is required")
	}
	if record.ExpiresAt.IsZero() || record.CreatedAt.IsZero() {
		return fmt.Errorf("created at and expires at are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO oauth_states (
	id, workspace_id, platform, state, code_challenge, code_challenge_method,
	expires_at, used, used_at, ip_address, user_agent, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		strings.TrimSpace(record.WorkspaceID),
		strings.TrimSpace(record.Platform),
		record.State,
		toNullString(record.CodeChallenge),
		toNullString(record.CodeChallengeMethod),
		toMillis(record.ExpiresAt),
		boolToInt(record.Used),
		toNullMillis(record.UsedAt),
		record.IPAddress,
		record.UserAgent,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put oauth state: %w", err)
	}
	return nil
}

// GetOAuthState fetches a state by workspace, platform and value.
func (s *Store) GetOAuthState(ctx context.Context, workspaceID string, platform string, state string) (storage.OAuthStateRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OAuthStateRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+oauthStateColumns+`
FROM oauth_states
WHERE workspace_id = ? AND platform = ? AND state = ?
`, strings.TrimSpace(workspaceID), strings.TrimSpace(platform), state)
	return scanOAuthState(row)
}

// GetOAuthStateByValue fetches a state by workspace and value, regardless of platform.
func (s *Store) GetOAuthStateByValue(ctx context.Context, workspaceID string, state string) (storage.OAuthStateRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OAuthStateRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+oauthStateColumns+`
FROM oauth_states
WHERE workspace_id = ? AND state = ?
ORDER BY created_at DESC
LIMIT 1
`, strings.TrimSpace(workspaceID), state)
	return scanOAuthState(row)
}

// MarkOAuthStateUsed marks one unused state as used.
func (s *Store) MarkOAuthStateUsed(ctx context.Context, stateID string, usedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return fmt.Errorf("state id is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE oauth_states
SET used = 1, used_at = ?
WHERE id = ? AND used = 0
`, toMillis(usedAt), stateID)
	if err != nil {
		return fmt.Errorf("mark oauth state used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark oauth state used rows affected: %w", err)
	}
	if affected == 0 {
		var used int
		err := s.sqlDB.QueryRowContext(ctx, `SELECT used FROM oauth_states WHERE id = ?`, stateID).Scan(&used)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check oauth state: %w", err)
		}
		return storage.ErrConflict
	}
	return nil
}

// DeleteExpiredOAuthStates removes states whose expiry is before now.
func (s *Store) DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired oauth states: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOAuthStatesByWorkspace removes every state of one workspace.
func (s *Store) DeleteOAuthStatesByWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return 0, fmt.Errorf("workspace id is required")
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM oauth_states WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("delete workspace oauth states: %w", err)
	}
	return res.RowsAffected()
}

func scanOAuthState(row *sql.Row) (storage.OAuthStateRecord, error) {
	var (
		rec                 storage.OAuthStateRecord
		codeChallenge       sql.NullString
		codeChallengeMethod sql.NullString
		expiresAt           int64
		used                int
		usedAt              sql.NullInt64
		createdAt           int64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.WorkspaceID,
		&rec.Platform,
		&rec.State,
		&codeChallenge,
		&codeChallengeMethod,
		&expiresAt,
		&used,
		&usedAt,
		&rec.IPAddress,
		&rec.UserAgent,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OAuthStateRecord{}, storage.ErrNotFound
		}
		return storage.OAuthStateRecord{}, fmt.Errorf("scan oauth state: %w", err)
	}
	rec.CodeChallenge = codeChallenge.String
	rec.CodeChallengeMethod = codeChallengeMethod.String
	rec.ExpiresAt = fromMillis(expiresAt)
	rec.Used = used != 0
	rec.UsedAt = fromNullMillis(usedAt)
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}
