package catalog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"podharvest/internal/config"
	"podharvest/internal/services"
	"podharvest/internal/services/ytdlp"
)

type stubLister struct {
	items []ytdlp.RemoteItem
	err   error
	calls int
}

func (s *stubLister) List(ctx context.Context, channelURL string, limit int) ([]ytdlp.RemoteItem, error) {
	s.calls++
	return s.items, s.err
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func testChannel(cutoff string) config.Channel {
	return config.Channel{
		Name:       "techtalks",
		URL:        "https://example.com/channel",
		CutoffDate: cutoff,
	}
}

var sourceItems = []ytdlp.RemoteItem{
	{ID: "old1", Title: "Archive Episode", UploadDate: "20230801", DurationSeconds: 900, URL: "https://example.com/old1"},
	{ID: "new1", Title: "January Episode", UploadDate: "20240105", DurationSeconds: 700, URL: "https://example.com/new1"},
	{ID: "new2", Title: "February Episode", UploadDate: "20240210", DurationSeconds: 800, URL: "https://example.com/new2"},
	{ID: "new3", Title: "March Episode", UploadDate: "20240301", DurationSeconds: 600, URL: "https://example.com/new3"},
}

func TestBuildFiltersByCutoff(t *testing.T) {
	builder := NewBuilder(&stubLister{items: sourceItems}, nil, WithClock(fixedClock()))

	cat, err := builder.Build(context.Background(), testChannel("2024-01-01"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cat.TotalItems != 3 {
		t.Fatalf("expected 3 items after cutoff, got %d", cat.TotalItems)
	}
	if _, ok := cat.Items["old1"]; ok {
		t.Fatal("item before cutoff must not be persisted")
	}
	if cat.MinPublishDate != "20240105" || cat.MaxPublishDate != "20240301" {
		t.Fatalf("unexpected date bounds: %s..%s", cat.MinPublishDate, cat.MaxPublishDate)
	}
	if len(cat.IndexHistory) != 1 || cat.IndexHistory[0].ItemsAdded != 3 {
		t.Fatalf("unexpected index history: %+v", cat.IndexHistory)
	}
}

func TestBuildEarlierCutoffWidensWindow(t *testing.T) {
	builder := NewBuilder(&stubLister{items: sourceItems}, nil, WithClock(fixedClock()))
	ctx := context.Background()

	first, err := builder.Build(ctx, testChannel("2024-01-01"), nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := builder.Build(ctx, testChannel("2023-06-01"), first)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}

	if second.TotalItems != 4 {
		t.Fatalf("earlier cutoff should admit the archive item, got %d items", second.TotalItems)
	}
	if _, ok := second.Items["old1"]; !ok {
		t.Fatal("retroactive window missing archive item")
	}
	want := []string{"2023-06-01", "2024-01-01"}
	if len(second.CutoffHistory) != 2 || second.CutoffHistory[0] != want[0] || second.CutoffHistory[1] != want[1] {
		t.Fatalf("cutoff history not ascending unique: %v", second.CutoffHistory)
	}
	for _, id := range []string{"new1", "new2", "new3"} {
		if _, ok := second.Items[id]; !ok {
			t.Fatalf("original entry %s lost during merge", id)
		}
	}
}

func TestBuildLaterCutoffNeverShrinks(t *testing.T) {
	builder := NewBuilder(&stubLister{items: sourceItems}, nil, WithClock(fixedClock()))
	ctx := context.Background()

	first, err := builder.Build(ctx, testChannel("2023-06-01"), nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := builder.Build(ctx, testChannel("2024-02-01"), first)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if second.TotalItems != first.TotalItems {
		t.Fatalf("later cutoff removed entries: %d -> %d", first.TotalItems, second.TotalItems)
	}
	if second.EarliestCutoff() != "2023-06-01" {
		t.Fatalf("earliest cutoff lost: %s", second.EarliestCutoff())
	}
}

func TestBuildRefreshesTitleAndDuration(t *testing.T) {
	lister := &stubLister{items: sourceItems}
	builder := NewBuilder(lister, nil, WithClock(fixedClock()))
	ctx := context.Background()

	first, err := builder.Build(ctx, testChannel("2024-01-01"), nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}

	lister.items = []ytdlp.RemoteItem{
		{ID: "new1", Title: "January Episode (corrected)", UploadDate: "20240105", DurationSeconds: 710, URL: "https://example.com/new1"},
	}
	second, err := builder.Build(ctx, testChannel("2024-01-01"), first)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	got := second.Items["new1"]
	if got.Title != "January Episode (corrected)" || got.DurationSeconds != 710 {
		t.Fatalf("refresh failed: %+v", got)
	}
	if second.TotalItems != 3 {
		t.Fatalf("refresh must not drop entries: %d", second.TotalItems)
	}
}

func TestBuildRejectsBadCutoff(t *testing.T) {
	builder := NewBuilder(&stubLister{}, nil)
	_, err := builder.Build(context.Background(), testChannel("sometime"), nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildSkipsUnparsableDates(t *testing.T) {
	lister := &stubLister{items: []ytdlp.RemoteItem{
		{ID: "bad", Title: "No Date", UploadDate: "", URL: "https://example.com/bad"},
		{ID: "good", Title: "Dated", UploadDate: "20240110", URL: "https://example.com/good"},
	}}
	builder := NewBuilder(lister, nil, WithClock(fixedClock()))

	cat, err := builder.Build(context.Background(), testChannel("2024-01-01"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cat.TotalItems != 1 {
		t.Fatalf("expected undated entry excluded, got %d items", cat.TotalItems)
	}
}

func TestLoadOrRebuildRecoversFromCorruption(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("seed corrupt catalog: %v", err)
	}

	lister := &stubLister{items: sourceItems}
	builder := NewBuilder(lister, nil, WithClock(fixedClock()))

	cat, err := builder.LoadOrRebuild(context.Background(), testChannel("2024-01-01"), dir)
	if err != nil {
		t.Fatalf("LoadOrRebuild: %v", err)
	}
	if cat.TotalItems != 3 {
		t.Fatalf("rebuild from source produced %d items", cat.TotalItems)
	}
	if lister.calls != 1 {
		t.Fatalf("expected a single fresh listing, got %d", lister.calls)
	}
	if cat.IndexHistory[0].Source != "rebuild" {
		t.Fatalf("expected rebuild provenance, got %q", cat.IndexHistory[0].Source)
	}
}

func TestLoadOrRebuildFirstRun(t *testing.T) {
	builder := NewBuilder(&stubLister{items: sourceItems}, nil, WithClock(fixedClock()))
	cat, err := builder.LoadOrRebuild(context.Background(), testChannel("2024-01-01"), t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrRebuild: %v", err)
	}
	if cat.TotalItems != 3 {
		t.Fatalf("first run produced %d items", cat.TotalItems)
	}
}

func TestRebuildIgnoresPersistedCatalog(t *testing.T) {
	dir := t.TempDir()
	lister := &stubLister{items: sourceItems}
	builder := NewBuilder(lister, nil, WithClock(fixedClock()))
	ctx := context.Background()

	first, err := builder.Build(ctx, testChannel("2024-01-01"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := Save(dir, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The source dropped an item; a forced rebuild takes the listing as is.
	lister.items = sourceItems[:3]
	cat, err := builder.Rebuild(ctx, testChannel("2024-01-01"), dir)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if cat.TotalItems != 2 {
		t.Fatalf("forced rebuild kept stale entries: %d items", cat.TotalItems)
	}
	if cat.IndexHistory[0].Source != "rebuild" {
		t.Fatalf("expected rebuild provenance, got %q", cat.IndexHistory[0].Source)
	}
}
