package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runlog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.StartRun(ctx, "run-1", started); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := store.RecordChannel(ctx, ChannelOutcome{
		RunID: "run-1", Channel: "techtalks", Fetched: 2, Skipped: 5, Summarized: 1,
	}); err != nil {
		t.Fatalf("RecordChannel: %v", err)
	}
	if err := store.FinishRun(ctx, Run{
		ID: "run-1", FinishedAt: started.Add(time.Minute),
		ChannelsTotal: 1, ItemsFetched: 2, ItemsSkipped: 5, ItemsSummed: 1,
	}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != "run-1" || run.ItemsFetched != 2 || run.ChannelsTotal != 1 {
		t.Fatalf("unexpected run row: %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Fatalf("start time mangled: %v", run.StartedAt)
	}

	outcomes, err := store.ChannelOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("ChannelOutcomes: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Channel != "techtalks" || outcomes[0].Fetched != 2 {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
}

func TestRecentRunsOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.StartRun(ctx, id, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("StartRun %s: %v", id, err)
		}
	}
	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("expected newest first, got %+v", runs)
	}
}

func TestRecordChannelUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.StartRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	first := ChannelOutcome{RunID: "run-1", Channel: "techtalks", Fetched: 1}
	second := ChannelOutcome{RunID: "run-1", Channel: "techtalks", Fetched: 3, Error: "partial"}
	if err := store.RecordChannel(ctx, first); err != nil {
		t.Fatalf("RecordChannel: %v", err)
	}
	if err := store.RecordChannel(ctx, second); err != nil {
		t.Fatalf("RecordChannel upsert: %v", err)
	}

	outcomes, err := store.ChannelOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("ChannelOutcomes: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Fetched != 3 || outcomes[0].Error != "partial" {
		t.Fatalf("upsert did not replace row: %+v", outcomes)
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runlog.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := store.StartRun(context.Background(), "run-1", time.Now()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected persisted run, got %d", len(runs))
	}
}
