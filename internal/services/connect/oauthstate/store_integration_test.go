package oauthstate

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/storage/sqlite"
)

func TestVerifyConcurrentAgainstSQLite(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "connect.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	clock := &testClock{now: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}
	service := NewService(store, audit.NewRecorder(store), WithClock(clock.Now))
	ctx := context.Background()

	issued, err := service.Issue(ctx, IssueInput{WorkspaceID: "ws-1", Platform: "twitter", UsePKCE: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const callers = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		valid int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := service.Verify(ctx, "ws-1", "twitter", issued.State)
			mu.Lock()
			defer mu.Unlock()
			if result.Valid {
				valid++
			} else if result.Reason != ReasonReplayed {
				t.Errorf("unexpected rejection %+v", result)
			}
		}()
	}
	wg.Wait()

	if valid != 1 {
		t.Fatalf("valid = %d, want exactly 1", valid)
	}

	info, found, err := service.Info(ctx, "ws-1", issued.State)
	if err != nil || !found {
		t.Fatalf("info found=%v err=%v", found, err)
	}
	if !info.Used || info.CodeChallenge != issued.CodeChallenge {
		t.Fatalf("info = %+v", info)
	}
}
