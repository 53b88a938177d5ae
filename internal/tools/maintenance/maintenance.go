// Package maintenance implements operator commands against the connect database.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	platformgrpc "github.com/louisbranch/socialconnect/internal/platform/grpc"
	"github.com/louisbranch/socialconnect/internal/platform/pagination"
	"github.com/louisbranch/socialconnect/internal/platform/timeouts"
	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/credential"
	"github.com/louisbranch/socialconnect/internal/services/connect/keyring"
	"github.com/louisbranch/socialconnect/internal/services/connect/oauthstate"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage/sqlite"
)

const defaultHealthService = "socialconnect.Connect"

// Config holds maintenance command configuration.
type Config struct {
	DBPath         string
	MasterSecret   string
	Timeout        time.Duration
	JSONOutput     bool
	CleanupStates  bool
	PurgeWorkspace string
	Audit          bool
	PruneAudit     time.Duration
	Status         string
	Disconnect     bool
	Delete         bool
	WorkspaceID    string
	Platform       string
	Action         string
	AuditStatus    string
	Since          string
	Until          string
	Limit          int
	Offset         int
	ProbeAddr      string
	ProbeService   string
}

type envConfig struct {
	DBPath       string        `env:"SOCIALCONNECT_DB_PATH"`
	MasterSecret string        `env:"SOCIALCONNECT_MASTER_SECRET"`
	Timeout      time.Duration `env:"SOCIALCONNECT_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses env and flags into a Config. lookup overrides the
// process environment when non-nil.
func ParseConfig(fs *flag.FlagSet, args []string, lookup func(string) (string, bool)) (Config, error) {
	var envCfg envConfig
	opts := env.Options{}
	if lookup != nil {
		opts.Environment = lookupEnvironment(lookup, "SOCIALCONNECT_DB_PATH", "SOCIALCONNECT_MASTER_SECRET", "SOCIALCONNECT_MAINTENANCE_TIMEOUT")
	}
	if err := env.ParseWithOptions(&envCfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:       envCfg.DBPath,
		MasterSecret: envCfg.MasterSecret,
		Timeout:      envCfg.Timeout,
		Limit:        pagination.AuditEvents.Default,
		ProbeService: defaultHealthService,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "connect.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to connect sqlite database (default: SOCIALCONNECT_DB_PATH or data/connect.db)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.BoolVar(&cfg.CleanupStates, "cleanup-states", false, "delete expired OAuth states")
	fs.StringVar(&cfg.PurgeWorkspace, "purge-workspace", "", "delete every OAuth state of a workspace")
	fs.BoolVar(&cfg.Audit, "audit", false, "list credential audit events")
	fs.DurationVar(&cfg.PruneAudit, "prune-audit", 0, "delete audit events older than this age")
	fs.StringVar(&cfg.Status, "status", "", "report platform connection status for a workspace")
	fs.BoolVar(&cfg.Disconnect, "disconnect", false, "disconnect -workspace/-platform credentials")
	fs.BoolVar(&cfg.Delete, "delete", false, "delete -workspace/-platform credentials")
	fs.StringVar(&cfg.WorkspaceID, "workspace", "", "workspace id filter or target")
	fs.StringVar(&cfg.Platform, "platform", "", "platform filter or target")
	fs.StringVar(&cfg.Action, "action", "", "audit action filter")
	fs.StringVar(&cfg.AuditStatus, "audit-status", "", "audit status filter (success|failure)")
	fs.StringVar(&cfg.Since, "since", "", "only audit events at or after this RFC3339 time")
	fs.StringVar(&cfg.Until, "until", "", "only audit events at or before this RFC3339 time")
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "max audit events to list")
	fs.IntVar(&cfg.Offset, "offset", 0, "audit events to skip")
	fs.StringVar(&cfg.ProbeAddr, "probe-addr", "", "check gRPC health of a running connect server")
	fs.StringVar(&cfg.ProbeService, "probe-service", cfg.ProbeService, "health service name for -probe-addr")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func lookupEnvironment(lookup func(string) (string, bool), keys ...string) map[string]string {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		if value, ok := lookup(key); ok {
			values[key] = value
		}
	}
	return values
}

type mode int

const (
	modeNone mode = iota
	modeCleanupStates
	modePurgeWorkspace
	modeAudit
	modePruneAudit
	modeStatus
	modeDisconnect
	modeDelete
	modeProbe
)

func selectMode(cfg Config) (mode, error) {
	var selected []mode
	if cfg.CleanupStates {
		selected = append(selected, modeCleanupStates)
	}
	if strings.TrimSpace(cfg.PurgeWorkspace) != "" {
		selected = append(selected, modePurgeWorkspace)
	}
	if cfg.Audit {
		selected = append(selected, modeAudit)
	}
	if cfg.PruneAudit != 0 {
		selected = append(selected, modePruneAudit)
	}
	if strings.TrimSpace(cfg.Status) != "" {
		selected = append(selected, modeStatus)
	}
	if cfg.Disconnect {
		selected = append(selected, modeDisconnect)
	}
	if cfg.Delete {
		selected = append(selected, modeDelete)
	}
	if strings.TrimSpace(cfg.ProbeAddr) != "" {
		selected = append(selected, modeProbe)
	}
	switch len(selected) {
	case 0:
		return modeNone, errors.New("one of -cleanup-states, -purge-workspace, -audit, -prune-audit, -status, -disconnect, -delete or -probe-addr is required")
	case 1:
		return selected[0], nil
	default:
		return modeNone, errors.New("only one maintenance operation may be given at a time")
	}
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	selected, err := selectMode(cfg)
	if err != nil {
		return err
	}
	if cfg.PruneAudit < 0 {
		return errors.New("-prune-audit must be > 0")
	}
	if selected == modeDisconnect || selected == modeDelete {
		if strings.TrimSpace(cfg.WorkspaceID) == "" || strings.TrimSpace(cfg.Platform) == "" {
			return errors.New("-workspace and -platform are required")
		}
	}
	if selected == modeProbe {
		return runProbe(ctx, cfg.ProbeAddr, cfg.ProbeService, out, errOut)
	}

	var filter storage.AuditEventFilter
	if selected == modeAudit {
		filter, err = auditFilter(cfg)
		if err != nil {
			return err
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open connect store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close connect store: %v\n", closeErr)
		}
	}()
	recorder := audit.NewRecorder(store).WithLogger(func(format string, args ...any) {
		fmt.Fprintf(errOut, format+"\n", args...)
	})

	switch selected {
	case modeCleanupStates:
		return runCleanupStates(ctx, oauthstate.NewService(store, recorder), cfg.JSONOutput, out)
	case modePurgeWorkspace:
		return runPurgeWorkspace(ctx, oauthstate.NewService(store, recorder), cfg.PurgeWorkspace, cfg.JSONOutput, out)
	case modeAudit:
		return runAuditReport(ctx, store, filter, cfg.Limit, cfg.Offset, cfg.JSONOutput, out)
	case modePruneAudit:
		return runPruneAudit(ctx, store, time.Now().UTC().Add(-cfg.PruneAudit), cfg.JSONOutput, out)
	}

	keys, err := keyring.NewDeriver(cfg.MasterSecret)
	if err != nil {
		return err
	}
	manager := credential.NewManager(store, keys, recorder)
	switch selected {
	case modeStatus:
		return runStatus(ctx, manager, cfg.Status, cfg.JSONOutput, out)
	case modeDisconnect:
		return runRemoveCredentials(ctx, manager, "disconnect", cfg.WorkspaceID, cfg.Platform, cfg.JSONOutput, out)
	case modeDelete:
		return runRemoveCredentials(ctx, manager, "delete", cfg.WorkspaceID, cfg.Platform, cfg.JSONOutput, out)
	}
	return fmt.Errorf("unsupported maintenance mode %d", selected)
}

func auditFilter(cfg Config) (storage.AuditEventFilter, error) {
	filter := storage.AuditEventFilter{
		WorkspaceID: strings.TrimSpace(cfg.WorkspaceID),
		Platform:    strings.TrimSpace(cfg.Platform),
		Action:      strings.TrimSpace(cfg.Action),
		Status:      strings.TrimSpace(cfg.AuditStatus),
	}
	if filter.Platform != "" {
		platform, err := socialplatform.Parse(filter.Platform)
		if err != nil {
			return storage.AuditEventFilter{}, err
		}
		filter.Platform = platform.String()
	}
	since, err := parseTime("-since", cfg.Since)
	if err != nil {
		return storage.AuditEventFilter{}, err
	}
	until, err := parseTime("-until", cfg.Until)
	if err != nil {
		return storage.AuditEventFilter{}, err
	}
	if since != nil && until != nil && until.Before(*since) {
		return storage.AuditEventFilter{}, errors.New("-until must not be before -since")
	}
	filter.Since = since
	filter.Until = until
	return filter, nil
}

func parseTime(flagName, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", flagName, err)
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

type countReport struct {
	Mode        string `json:"mode"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Removed     int64  `json:"removed"`
}

func writeJSON(out io.Writer, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}

func runCleanupStates(ctx context.Context, states stateMaintainer, jsonOutput bool, out io.Writer) error {
	if states == nil {
		return fmt.Errorf("state maintainer is not configured")
	}
	removed, err := states.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup expired states: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, countReport{Mode: "cleanup-states", Removed: removed})
	}
	fmt.Fprintf(out, "Deleted %d expired OAuth states\n", removed)
	return nil
}

func runPurgeWorkspace(ctx context.Context, states stateMaintainer, workspaceID string, jsonOutput bool, out io.Writer) error {
	if states == nil {
		return fmt.Errorf("state maintainer is not configured")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	removed, err := states.PurgeWorkspace(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("purge workspace states: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, countReport{Mode: "purge-workspace", WorkspaceID: workspaceID, Removed: removed})
	}
	fmt.Fprintf(out, "Deleted %d OAuth states for workspace %s\n", removed, workspaceID)
	return nil
}

type auditRow struct {
	ID           int64     `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	Platform     string    `json:"platform"`
	Action       string    `json:"action"`
	Status       string    `json:"status"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type auditReport struct {
	Mode   string     `json:"mode"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Events []auditRow `json:"events"`
}

func runAuditReport(ctx context.Context, inspector auditInspector, filter storage.AuditEventFilter, limit, offset int, jsonOutput bool, out io.Writer) error {
	if inspector == nil {
		return fmt.Errorf("audit inspector is not configured")
	}
	limit = pagination.ClampPageSize(limit, pagination.AuditEvents)
	offset = pagination.ClampOffset(offset)

	records, err := inspector.ListAuditEvents(ctx, filter, limit, offset)
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}
	rows := make([]auditRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, auditRow(record))
	}

	if jsonOutput {
		return writeJSON(out, auditReport{Mode: "audit", Limit: limit, Offset: offset, Events: rows})
	}
	fmt.Fprintf(out, "Audit events (limit=%d, offset=%d): %d\n", limit, offset, len(rows))
	for _, row := range rows {
		line := fmt.Sprintf("- %s %s/%s %s %s", row.CreatedAt.Format(time.RFC3339), row.WorkspaceID, row.Platform, row.Action, row.Status)
		if row.ErrorCode != "" {
			line += " " + row.ErrorCode
		}
		if row.ErrorMessage != "" {
			line += ": " + row.ErrorMessage
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runPruneAudit(ctx context.Context, inspector auditInspector, cutoff time.Time, jsonOutput bool, out io.Writer) error {
	if inspector == nil {
		return fmt.Errorf("audit inspector is not configured")
	}
	removed, err := inspector.DeleteAuditEventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune audit events: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, countReport{Mode: "prune-audit", Removed: removed})
	}
	fmt.Fprintf(out, "Deleted %d audit events before %s\n", removed, cutoff.Format(time.RFC3339))
	return nil
}

type statusRow struct {
	Platform       string     `json:"platform"`
	IsConnected    bool       `json:"is_connected"`
	Username       string     `json:"username,omitempty"`
	PageName       string     `json:"page_name,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsExpiringSoon bool       `json:"is_expiring_soon"`
	IsExpired      bool       `json:"is_expired"`
}

func runStatus(ctx context.Context, credentials credentialMaintainer, workspaceID string, jsonOutput bool, out io.Writer) error {
	if credentials == nil {
		return fmt.Errorf("credential maintainer is not configured")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	statuses := credentials.ConnectionStatus(ctx, workspaceID)

	rows := make([]statusRow, 0, len(statuses))
	for _, platform := range socialplatform.All() {
		status, ok := statuses[platform]
		if !ok {
			continue
		}
		rows = append(rows, statusRow{
			Platform:       platform.String(),
			IsConnected:    status.IsConnected,
			Username:       status.Username,
			PageName:       status.PageName,
			ExpiresAt:      status.ExpiresAt,
			IsExpiringSoon: status.IsExpiringSoon,
			IsExpired:      status.IsExpired,
		})
	}

	if jsonOutput {
		return writeJSON(out, struct {
			Mode        string      `json:"mode"`
			WorkspaceID string      `json:"workspace_id"`
			Platforms   []statusRow `json:"platforms"`
		}{Mode: "status", WorkspaceID: workspaceID, Platforms: rows})
	}
	fmt.Fprintf(out, "Workspace %s:\n", workspaceID)
	for _, row := range rows {
		state := "disconnected"
		switch {
		case row.IsExpired:
			state = "expired"
		case row.IsExpiringSoon:
			state = "expiring soon"
		case row.IsConnected:
			state = "connected"
		}
		line := fmt.Sprintf("- %s: %s", row.Platform, state)
		if row.Username != "" {
			line += " as " + row.Username
		}
		if row.ExpiresAt != nil {
			line += " until " + row.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runRemoveCredentials(ctx context.Context, credentials credentialMaintainer, op, workspaceID, platform string, jsonOutput bool, out io.Writer) error {
	if credentials == nil {
		return fmt.Errorf("credential maintainer is not configured")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	platform = strings.TrimSpace(platform)

	var (
		err  error
		done string
	)
	switch op {
	case "disconnect":
		err = credentials.Disconnect(ctx, workspaceID, platform)
		done = "disconnected"
	case "delete":
		err = credentials.Delete(ctx, workspaceID, platform)
		done = "deleted"
	default:
		return fmt.Errorf("unsupported credential operation %q", op)
	}
	if err != nil {
		return fmt.Errorf("%s credentials: %w", op, err)
	}
	if jsonOutput {
		return writeJSON(out, countReport{Mode: op, WorkspaceID: workspaceID, Platform: platform, Removed: 1})
	}
	fmt.Fprintf(out, "Credentials %s: %s/%s\n", done, workspaceID, platform)
	return nil
}

func runProbe(ctx context.Context, addr, service string, out io.Writer, errOut io.Writer) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeouts.HealthProbe)
	defer cancel()
	logf := func(format string, args ...any) {
		fmt.Fprintf(errOut, format+"\n", args...)
	}
	if err := platformgrpc.Probe(probeCtx, strings.TrimSpace(addr), service, logf); err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}
	fmt.Fprintf(out, "%s is SERVING at %s\n", service, addr)
	return nil
}
