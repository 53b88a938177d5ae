package app

import (
	"context"
	"log"
	"time"

	"github.com/louisbranch/socialconnect/internal/platform/timeouts"
)

const (
	defaultSweepInterval  = 5 * time.Minute
	defaultAuditRetention = 90 * 24 * time.Hour
)

// StateCleaner deletes expired OAuth states.
type StateCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// AuditPruner deletes audit events older than a cutoff.
type AuditPruner interface {
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweepResult counts rows removed by one sweep.
type SweepResult struct {
	States      int64
	AuditEvents int64
}

// Sweeper periodically removes expired states and old audit events.
type Sweeper struct {
	states    StateCleaner
	audits    AuditPruner
	interval  time.Duration
	retention time.Duration
	clock     func() time.Time
	logf      func(string, ...any)
}

// NewSweeper builds a sweeper. A nil audits or non-positive retention keeps
// audit events forever.
func NewSweeper(states StateCleaner, audits AuditPruner, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		states:    states,
		audits:    audits,
		interval:  interval,
		retention: retention,
		clock:     time.Now,
		logf:      log.Printf,
	}
}

// RunOnce performs a single sweep. Failures are logged and do not stop the
// other half of the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Sweep)
	defer cancel()

	var result SweepResult
	if s.states != nil {
		removed, err := s.states.CleanupExpired(ctx)
		if err != nil {
			s.logf("sweep expired oauth states: %v", err)
		} else {
			result.States = removed
		}
	}
	if s.audits != nil && s.retention > 0 {
		cutoff := s.clock().UTC().Add(-s.retention)
		removed, err := s.audits.DeleteAuditEventsBefore(ctx, cutoff)
		if err != nil {
			s.logf("sweep audit events before %s: %v", cutoff.Format(time.RFC3339), err)
		} else {
			result.AuditEvents = removed
		}
	}
	if result.States > 0 || result.AuditEvents > 0 {
		s.logf("sweep removed %d oauth states and %d audit events", result.States, result.AuditEvents)
	}
	return result
}

// Run sweeps immediately and then on every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) error {
	s.RunOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
