package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetwise/internal/log"
)

func newTestScheduler(t *testing.T, timeout time.Duration) *Scheduler {
	t.Helper()
	logger := log.NewWithHandler("test", slog.NewTextHandler(io.Discard, nil))
	return New(timeout, logger)
}

func TestAddJob_RejectsBadSpec(t *testing.T) {
	s := newTestScheduler(t, time.Minute)

	noop := func(context.Context, time.Time) error { return nil }
	if err := s.AddJob("bad", "not a cron spec", noop); err == nil {
		t.Error("AddJob accepted an unparseable spec")
	}
	if err := s.AddJob("good", "0 1 * * *", noop); err != nil {
		t.Errorf("AddJob rejected a valid spec: %v", err)
	}
}

func TestRunNow_PassesTriggerTime(t *testing.T) {
	s := newTestScheduler(t, time.Minute)

	var got time.Time
	before := time.Now()
	s.RunNow("clock", func(_ context.Context, now time.Time) error {
		got = now
		return nil
	})
	if got.Before(before) || got.After(time.Now()) {
		t.Errorf("trigger time %v outside run window", got)
	}
}

func TestRun_CancelsContextOnTimeout(t *testing.T) {
	s := newTestScheduler(t, 20*time.Millisecond)

	s.RunNow("slow", func(ctx context.Context, _ time.Time) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			t.Error("context never cancelled")
			return nil
		}
	})
}

func TestRun_OverlappingRunsShareOneExecution(t *testing.T) {
	s := newTestScheduler(t, time.Minute)

	var runs atomic.Int32
	release := make(chan struct{})
	job := func(context.Context, time.Time) error {
		runs.Add(1)
		<-release
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunNow("overlap", job)
		}()
	}

	// Let all three callers reach the guard before releasing the run.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := runs.Load(); n != 1 {
		t.Errorf("job executed %d times, want 1", n)
	}
}
