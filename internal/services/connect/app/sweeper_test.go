package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeCleaner struct {
	mu      sync.Mutex
	removed int64
	err     error
	calls   int
}

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.removed, f.err
}

func (f *fakeCleaner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePruner struct {
	removed int64
	err     error
	cutoff  time.Time
	calls   int
}

func (f *fakePruner) DeleteAuditEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.removed, f.err
}

func TestSweeperRunOnceCountsRemovals(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	states := &fakeCleaner{removed: 3}
	audits := &fakePruner{removed: 7}
	sweeper := NewSweeper(states, audits, time.Minute, 24*time.Hour)
	sweeper.clock = func() time.Time { return now }
	var logs []string
	sweeper.logf = func(format string, args ...any) { logs = append(logs, format) }

	result := sweeper.RunOnce(context.Background())
	if result.States != 3 || result.AuditEvents != 7 {
		t.Fatalf("result = %+v, want 3 states and 7 audit events", result)
	}
	if want := now.Add(-24 * time.Hour); !audits.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", audits.cutoff, want)
	}
	if len(logs) != 1 {
		t.Fatalf("logs = %v, want one summary line", logs)
	}
}

func TestSweeperRunOnceSkipsAuditWithoutRetention(t *testing.T) {
	audits := &fakePruner{removed: 7}
	sweeper := NewSweeper(&fakeCleaner{}, audits, time.Minute, 0)
	sweeper.logf = func(string, ...any) {}

	result := sweeper.RunOnce(context.Background())
	if audits.calls != 0 {
		t.Fatalf("audit pruner calls = %d, want 0", audits.calls)
	}
	if result.AuditEvents != 0 {
		t.Fatalf("audit events = %d, want 0", result.AuditEvents)
	}
}

func TestSweeperRunOnceContinuesAfterStateFailure(t *testing.T) {
	states := &fakeCleaner{err: errors.New("boom")}
	audits := &fakePruner{removed: 2}
	sweeper := NewSweeper(states, audits, time.Minute, time.Hour)
	var logs []string
	sweeper.logf = func(format string, args ...any) { logs = append(logs, format) }

	result := sweeper.RunOnce(context.Background())
	if result.States != 0 || result.AuditEvents != 2 {
		t.Fatalf("result = %+v", result)
	}
	if len(logs) == 0 || !strings.Contains(logs[0], "oauth states") {
		t.Fatalf("logs = %v, want state failure logged", logs)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	states := &fakeCleaner{}
	sweeper := NewSweeper(states, nil, 10*time.Millisecond, 0)
	sweeper.logf = func(string, ...any) {}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for states.Calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	if states.Calls() < 2 {
		t.Fatalf("cleanup calls = %d, want at least 2", states.Calls())
	}
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	sweeper := NewSweeper(nil, nil, 0, 0)
	if sweeper.interval != defaultSweepInterval {
		t.Fatalf("interval = %v, want %v", sweeper.interval, defaultSweepInterval)
	}
	if got := sweeper.RunOnce(context.Background()); got != (SweepResult{}) {
		t.Fatalf("result = %+v, want zero", got)
	}
}
