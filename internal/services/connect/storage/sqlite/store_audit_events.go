package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/socialconnect/internal/platform/pagination"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
)

// PutAuditEvent appends one audit event.
func (s *Store) PutAuditEvent(ctx context.Context, record storage.AuditEventRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.WorkspaceID) == "" {
		return fmt.Errorf("workspace id is required")
	}
	if strings.TrimSpace(record.Platform) == "" {
		return fmt.Errorf("platform is required")
	}
	if strings.TrimSpace(record.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(record.Status) == "" {
		return fmt.Errorf("status is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("created at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credential_audit_log (
	workspace_id, platform, action, status, error_code, error_message, ip_address, user_agent, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		strings.TrimSpace(record.WorkspaceID),
		strings.TrimSpace(record.Platform),
		strings.TrimSpace(record.Action),
		strings.TrimSpace(record.Status),
		record.ErrorCode,
		record.ErrorMessage,
		record.IPAddress,
		record.UserAgent,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns matching events newest first. limit is clamped to
// the audit page cap.
func (s *Store) ListAuditEvents(ctx context.Context, filter storage.AuditEventFilter, limit int, offset int) ([]storage.AuditEventRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	limit = pagination.ClampPageSize(limit, pagination.AuditEvents)
	offset = pagination.ClampOffset(offset)

	whereParts := make([]string, 0, 6)
	args := make([]any, 0, 8)
	for _, eq := range []struct {
		column string
		value  string
	}{
		{"workspace_id", filter.WorkspaceID},
		{"platform", filter.Platform},
		{"action", filter.Action},
		{"status", filter.Status},
	} {
		if value := strings.TrimSpace(eq.value); value != "" {
			whereParts = append(whereParts, eq.column+" = ?")
			args = append(args, value)
		}
	}
	if filter.Since != nil {
		whereParts = append(whereParts, "created_at >= ?")
		args = append(args, toMillis(*filter.Since))
	}
	if filter.Until != nil {
		whereParts = append(whereParts, "created_at <= ?")
		args = append(args, toMillis(*filter.Until))
	}

	query := `
SELECT id, workspace_id, platform, action, status, error_code, error_message, ip_address, user_agent, created_at
FROM credential_audit_log`
	if len(whereParts) > 0 {
		query += "\nWHERE " + strings.Join(whereParts, " AND ")
	}
	query += "\nORDER BY created_at DESC, id DESC\nLIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]storage.AuditEventRecord, 0, min(limit, 64))
	for rows.Next() {
		var (
			rec       storage.AuditEventRecord
			createdAt int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.WorkspaceID,
			&rec.Platform,
			&rec.Action,
			&rec.Status,
			&rec.ErrorCode,
			&rec.ErrorMessage,
			&rec.IPAddress,
			&rec.UserAgent,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// DeleteAuditEventsBefore removes events created before cutoff.
func (s *Store) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM credential_audit_log WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return res.RowsAffected()
}
