package maintenance

import (
	"context"
	"time"

	"github.com/louisbranch/socialconnect/internal/services/connect/credential"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
)

// stateMaintainer removes OAuth state rows.
type stateMaintainer interface {
	CleanupExpired(ctx context.Context) (int64, error)
	PurgeWorkspace(ctx context.Context, workspaceID string) (int64, error)
}

// auditInspector reads and prunes the credential audit log.
type auditInspector interface {
	ListAuditEvents(ctx context.Context, filter storage.AuditEventFilter, limit int, offset int) ([]storage.AuditEventRecord, error)
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// credentialMaintainer reports and removes stored credentials.
type credentialMaintainer interface {
	ConnectionStatus(ctx context.Context, workspaceID string) map[socialplatform.Platform]credential.Status
	Disconnect(ctx context.Context, workspaceID, platform string) error
	Delete(ctx context.Context, workspaceID, platform string) error
}
