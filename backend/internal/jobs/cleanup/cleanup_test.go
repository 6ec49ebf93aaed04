package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunDeletesCountersOlderThanRetention(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	pruner := &fakePruner{windows: map[int64]time.Time{
		1: now.Add(-8 * 24 * time.Hour),
		2: now.Add(-6 * 24 * time.Hour),
		3: now.Add(-time.Hour),
	}}

	job := New(pruner, 7*24*time.Hour, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	if _, ok := pruner.windows[1]; ok {
		t.Fatalf("expected idle counter to be deleted")
	}
	if len(pruner.windows) != 2 {
		t.Fatalf("unexpected remaining counters: %d", len(pruner.windows))
	}
}

func TestRetentionNeverShorterThanQuotaWindow(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	pruner := &fakePruner{windows: map[int64]time.Time{
		1: now.Add(-2 * time.Hour),
	}}

	job := New(pruner, time.Hour, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if _, ok := pruner.windows[1]; !ok {
		t.Fatalf("live counter must survive a too-short retention")
	}
}

func TestRunWrapsStoreError(t *testing.T) {
	job := New(&fakePruner{err: errors.New("db down")}, 0, nil)

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from pruner")
	}
}

type fakePruner struct {
	windows map[int64]time.Time
	err     error
}

func (f *fakePruner) DeleteIdleCounters(_ context.Context, cutoff time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var deleted int64
	for id, start := range f.windows {
		if start.Before(cutoff) {
			delete(f.windows, id)
			deleted++
		}
	}
	return deleted, nil
}
