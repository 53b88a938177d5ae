// Package audit records credential lifecycle events.
package audit

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"github.com/louisbranch/socialconnect/internal/platform/requestctx"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
)

// Action names one audited transition.
type Action string

const (
	ActionStateIssued          Action = "state_issued"
	ActionStateVerified        Action = "state_verified"
	ActionStateVerifyFailed    Action = "state_verify_failed"
	ActionPlatformConnected    Action = "platform_connected"
	ActionCredentialsUpdated   Action = "credentials_updated"
	ActionSaveFailed           Action = "credentials_save_failed"
	ActionTokenRefreshed       Action = "token_refreshed"
	ActionTokenRefreshFailed   Action = "token_refresh_failed"
	ActionPlatformDisconnected Action = "platform_disconnected"
	ActionDisconnectFailed     Action = "disconnect_failed"
	ActionCredentialsDeleted   Action = "credentials_deleted"
	ActionDeleteFailed         Action = "credentials_delete_failed"
)

// Status is the outcome of an audited transition.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// maxMessageLength bounds stored error messages.
const maxMessageLength = 500

// Event describes one transition to record.
type Event struct {
	WorkspaceID string
	Platform    string
	Action      Action
	Status      Status
	ErrorCode   string
	Err         error
	IPAddress   string
	UserAgent   string
}

// Success builds a success event.
func Success(workspaceID, platform string, action Action) Event {
	return Event{WorkspaceID: workspaceID, Platform: platform, Action: action, Status: StatusSuccess}
}

// Failure builds a failure event. An empty code is taken from err when it
// carries one.
func Failure(workspaceID, platform string, action Action, code string, err error) Event {
	if code == "" {
		if domainCode := apperrors.CodeOf(err); domainCode != apperrors.CodeUnknown {
			code = string(domainCode)
		}
	}
	return Event{WorkspaceID: workspaceID, Platform: platform, Action: action, Status: StatusFailure, ErrorCode: code, Err: err}
}

// Recorder writes events to an audit store. Write failures are logged and
// never returned.
type Recorder struct {
	store storage.AuditEventStore
	clock func() time.Time
	logf  func(string, ...any)
}

// NewRecorder builds a recorder. A nil store makes Record a no-op.
func NewRecorder(store storage.AuditEventStore) *Recorder {
	return &Recorder{store: store, clock: time.Now, logf: log.Printf}
}

// WithClock overrides the event timestamp source.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	if r != nil && clock != nil {
		r.clock = clock
	}
	return r
}

// WithLogger overrides where write failures are reported.
func (r *Recorder) WithLogger(logf func(string, ...any)) *Recorder {
	if r != nil && logf != nil {
		r.logf = logf
	}
	return r
}

// Record appends event. Missing caller fields fall back to the request
// context client. It never fails the caller.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.store == nil {
		return
	}
	record := storage.AuditEventRecord{
		WorkspaceID: event.WorkspaceID,
		Platform:    event.Platform,
		Action:      string(event.Action),
		Status:      string(event.Status),
		ErrorCode:   event.ErrorCode,
		IPAddress:   event.IPAddress,
		UserAgent:   event.UserAgent,
		CreatedAt:   r.clock().UTC(),
	}
	if record.IPAddress == "" || record.UserAgent == "" {
		client := requestctx.ClientFromContext(ctx)
		if record.IPAddress == "" {
			record.IPAddress = client.IPAddress
		}
		if record.UserAgent == "" {
			record.UserAgent = client.UserAgent
		}
	}
	if event.Err != nil {
		record.ErrorMessage = truncate(event.Err.Error(), maxMessageLength)
	}
	if err := r.store.PutAuditEvent(ctx, record); err != nil {
		r.logf("audit %s for workspace %s platform %s: %v", event.Action, event.WorkspaceID, event.Platform, err)
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
