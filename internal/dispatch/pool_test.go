package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkordell/murmur/internal/mastodon"
)

func collectResults(t *testing.T, out <-chan Result, n int, timeout time.Duration) []Result {
	t.Helper()
	var results []Result
	deadline := time.After(timeout)
	for len(results) < n {
		select {
		case r := <-out:
			results = append(results, r)
		case <-deadline:
			t.Fatalf("timed out with %d/%d results", len(results), n)
		}
	}
	return results
}

func TestPoolDeliversResultsWithCorrelationIDs(t *testing.T) {
	out := make(chan Result, 16)
	pool := NewPool(context.Background(), 2, out)
	defer pool.Shutdown(time.Second)

	ids := []string{NewCorrID(), NewCorrID(), NewCorrID()}
	for i, id := range ids {
		payload := i
		ok := pool.Submit(Job{
			CorrID: id,
			Label:  "test",
			Run:    func(ctx context.Context) (any, error) { return payload, nil },
		})
		if !ok {
			t.Fatalf("Submit rejected job %d", i)
		}
	}

	results := collectResults(t, out, 3, 3*time.Second)
	seen := map[string]int{}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("unexpected error for %s: %v", r.CorrID, r.Err)
		}
		seen[r.CorrID] = r.Payload.(int)
	}
	for i, id := range ids {
		if got, ok := seen[id]; !ok || got != i {
			t.Errorf("corr id %s: payload = %v, want %d", id, got, i)
		}
	}
}

func TestPoolClassifiesFailures(t *testing.T) {
	out := make(chan Result, 16)
	pool := NewPool(context.Background(), 1, out)
	defer pool.Shutdown(time.Second)

	pool.Submit(Job{
		CorrID: "auth",
		Run: func(ctx context.Context) (any, error) {
			return nil, &mastodon.APIError{StatusCode: 401, Message: "bad token"}
		},
	})

	results := collectResults(t, out, 1, 3*time.Second)
	if results[0].Failure != mastodon.FailureAuth {
		t.Errorf("Failure = %q, want %q", results[0].Failure, mastodon.FailureAuth)
	}
	if results[0].Payload != nil {
		t.Errorf("Payload = %v, want nil on error", results[0].Payload)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	out := make(chan Result, 32)
	pool := NewPool(context.Background(), 2, out)
	defer pool.Shutdown(2 * time.Second)

	var running, peak int32
	var mu sync.Mutex
	gate := make(chan struct{})

	for i := 0; i < 6; i++ {
		pool.Submit(Job{
			CorrID: NewCorrID(),
			Run: func(ctx context.Context) (any, error) {
				n := atomic.AddInt32(&running, 1)
				mu.Lock()
				if n > peak {
					peak = n
				}
				mu.Unlock()
				<-gate
				atomic.AddInt32(&running, -1)
				return nil, nil
			},
		})
	}

	// Give the pool time to admit as many as it will.
	time.Sleep(200 * time.Millisecond)
	close(gate)
	collectResults(t, out, 6, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	out := make(chan Result, 16)
	pool := NewPool(context.Background(), 1, out)
	defer pool.Shutdown(time.Second)

	pool.Submit(Job{
		CorrID: "boom",
		Label:  "panicky",
		Run:    func(ctx context.Context) (any, error) { panic("nope") },
	})
	pool.Submit(Job{
		CorrID: "after",
		Run:    func(ctx context.Context) (any, error) { return "ok", nil },
	})

	results := collectResults(t, out, 2, 3*time.Second)
	byID := map[string]Result{}
	for _, r := range results {
		byID[r.CorrID] = r
	}
	if byID["boom"].Err == nil {
		t.Error("panicking job produced no error result")
	}
	if byID["after"].Err != nil || byID["after"].Payload != "ok" {
		t.Errorf("pool did not survive panic: %+v", byID["after"])
	}
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	out := make(chan Result, 1)
	pool := NewPool(context.Background(), 1, out)
	pool.Shutdown(time.Second)

	ok := pool.Submit(Job{
		CorrID: "late",
		Run:    func(ctx context.Context) (any, error) { return nil, nil },
	})
	if ok {
		t.Error("Submit accepted a job after shutdown")
	}
}

func TestPoolJobContextCancelledOnShutdown(t *testing.T) {
	out := make(chan Result, 1)
	pool := NewPool(context.Background(), 1, out)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	pool.Submit(Job{
		CorrID: "slow",
		Run: func(ctx context.Context) (any, error) {
			close(started)
			select {
			case <-ctx.Done():
				close(cancelled)
				return nil, ctx.Err()
			case <-time.After(10 * time.Second):
				return nil, errors.New("never cancelled")
			}
		},
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}
	pool.Shutdown(2 * time.Second)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight job context was not cancelled on shutdown")
	}
}
