package maintenance

import (
	"context"
	"time"

	"github.com/louisbranch/socialconnect/internal/services/connect/credential"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
)

type fakeStates struct {
	expired   int64
	purged    int64
	err       error
	workspace string
}

func (f *fakeStates) CleanupExpired(context.Context) (int64, error) {
	return f.expired, f.err
}

func (f *fakeStates) PurgeWorkspace(_ context.Context, workspaceID string) (int64, error) {
	f.workspace = workspaceID
	return f.purged, f.err
}

type fakeAudit struct {
	records []storage.AuditEventRecord
	err     error
	filter  storage.AuditEventFilter
	limit   int
	offset  int
	cutoff  time.Time
	pruned  int64
}

func (f *fakeAudit) ListAuditEvents(_ context.Context, filter storage.AuditEventFilter, limit int, offset int) ([]storage.AuditEventRecord, error) {
	f.filter = filter
	f.limit = limit
	f.offset = offset
	return f.records, f.err
}

func (f *fakeAudit) DeleteAuditEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.pruned, f.err
}

type fakeCredentials struct {
	statuses map[socialplatform.Platform]credential.Status
	err      error
	calls    []string
}

func (f *fakeCredentials) ConnectionStatus(context.Context, string) map[socialplatform.Platform]credential.Status {
	return f.statuses
}

func (f *fakeCredentials) Disconnect(_ context.Context, workspaceID, platform string) error {
	f.calls = append(f.calls, "disconnect:"+workspaceID+":"+platform)
	return f.err
}

func (f *fakeCredentials) Delete(_ context.Context, workspaceID, platform string) error {
	f.calls = append(f.calls, "delete:"+workspaceID+":"+platform)
	return f.err
}
