package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"podharvest/internal/catalog"
	"podharvest/internal/config"
	"podharvest/internal/ledger"
	"podharvest/internal/manifest"
	"podharvest/internal/services"
	"podharvest/internal/services/ytdlp"
	"podharvest/internal/summarize"
	"podharvest/internal/testsupport"
)

type stubIndexer struct {
	mu             sync.Mutex
	itemsByChannel map[string][]catalog.Item
	errByChannel   map[string]error
	rebuilds       int
}

func (s *stubIndexer) LoadOrRebuild(ctx context.Context, channel config.Channel, channelDir string) (*catalog.Catalog, error) {
	if err := s.errByChannel[channel.Name]; err != nil {
		return nil, err
	}
	cat := catalog.New(channel.Name, channel.URL, time.Now())
	cat.RecordCutoff(channel.CutoffDate)
	for _, item := range s.itemsByChannel[channel.Name] {
		cat.Upsert(item)
	}
	cat.Finalize(time.Now())
	return cat, nil
}

func (s *stubIndexer) Rebuild(ctx context.Context, channel config.Channel, channelDir string) (*catalog.Catalog, error) {
	s.mu.Lock()
	s.rebuilds++
	s.mu.Unlock()
	return s.LoadOrRebuild(ctx, channel, channelDir)
}

type stubFetcher struct {
	mu        sync.Mutex
	calls     []string
	failItems map[string]error
	subtitles bool
}

func (s *stubFetcher) Download(ctx context.Context, channelDir string, req ytdlp.DownloadRequest, opts ytdlp.DownloadOptions) (manifest.Manifest, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.ID)
	s.mu.Unlock()
	if err := s.failItems[req.ID]; err != nil {
		return manifest.Manifest{}, err
	}

	itemDir := filepath.Join(channelDir, req.ID)
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		return manifest.Manifest{}, err
	}
	mediaRel := filepath.Join(req.ID, req.ID+".m4a")
	if err := os.WriteFile(filepath.Join(channelDir, mediaRel), []byte("media for "+req.ID), 0o644); err != nil {
		return manifest.Manifest{}, err
	}
	man := manifest.Manifest{Media: mediaRel}
	if s.subtitles {
		subRel := filepath.Join(req.ID, req.ID+".en.srt")
		srt := "1\n00:00:01,000 --> 00:00:04,000\nhello world\n"
		if err := os.WriteFile(filepath.Join(channelDir, subRel), []byte(srt), 0o644); err != nil {
			return manifest.Manifest{}, err
		}
		man.Subtitles = []string{subRel}
	}
	return man, nil
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubSummarizer struct {
	mu        sync.Mutex
	calls     int
	languages []string
}

func (s *stubSummarizer) Run(ctx context.Context, itemDir, subtitlePath, preferredLanguage string) (summarize.Result, error) {
	s.mu.Lock()
	s.calls++
	s.languages = append(s.languages, preferredLanguage)
	s.mu.Unlock()
	if _, err := os.Stat(summarize.SummaryPath(itemDir)); err == nil {
		return summarize.Result{Skipped: true, Final: summarize.FinalSummary{Complete: true}}, nil
	}
	if err := os.MkdirAll(filepath.Dir(summarize.SummaryPath(itemDir)), 0o755); err != nil {
		return summarize.Result{}, err
	}
	if err := os.WriteFile(summarize.SummaryPath(itemDir), []byte(`{"summary":{"complete":true}}`), 0o644); err != nil {
		return summarize.Result{}, err
	}
	return summarize.Result{Final: summarize.FinalSummary{Complete: true}}, nil
}

func testConfig(t *testing.T, channels ...config.Channel) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithChannels(channels...))
}

func channelNamed(name string) config.Channel {
	return config.Channel{
		Name:        name,
		URL:         "https://example.com/" + name,
		CutoffDate:  "2024-01-01",
		ContentType: "audio",
	}
}

func items(ids ...string) []catalog.Item {
	var out []catalog.Item
	for i, id := range ids {
		out = append(out, catalog.Item{
			ID:          id,
			Title:       "Episode " + id,
			PublishDate: fmt.Sprintf("202401%02d", i+5),
			URL:         "https://example.com/watch/" + id,
		})
	}
	return out
}

func noDelay(context.Context, time.Duration) {}

func newTestOrchestrator(cfg *config.Config, indexer Indexer, fetcher Fetcher, opts ...Option) *Orchestrator {
	opts = append([]Option{WithDelay(noDelay)}, opts...)
	return New(cfg, indexer, fetcher, nil, nil, opts...)
}

func TestRunFetchesNewItems(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1", "v2")}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Channels) != 1 {
		t.Fatalf("expected 1 channel report, got %d", len(report.Channels))
	}
	ch := report.Channels[0]
	if ch.Fetched != 2 || ch.Skipped != 0 || ch.Failed != 0 {
		t.Fatalf("unexpected channel report: %+v", ch)
	}

	dir := cfg.ChannelDir("alpha")
	led, err := ledger.Load(dir)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	entry, ok := led.Entry("v1")
	if !ok || entry.Deleted || entry.SizeBytes == 0 {
		t.Fatalf("ledger entry not recorded: %+v", entry)
	}
	if len(entry.Hashes) == 0 {
		t.Fatal("content hashes missing")
	}
	if _, err := catalog.Load(dir); err != nil {
		t.Fatalf("catalog not persisted: %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1", "v2", "v3")}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	if _, err := o.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	callsAfterFirst := fetcher.callCount()

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if fetcher.callCount() != callsAfterFirst {
		t.Fatalf("second run issued %d extra fetch calls", fetcher.callCount()-callsAfterFirst)
	}
	if report.Channels[0].Skipped != 3 || report.Channels[0].Fetched != 0 {
		t.Fatalf("second run should skip everything: %+v", report.Channels[0])
	}
}

func TestRunPermanentFailureDoesNotStopChannel(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1", "v2", "v3")}}
	fetcher := &stubFetcher{failItems: map[string]error{
		"v2": services.Wrap(services.ErrPermanent, "download", "fetch", "video unavailable", nil),
	}}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ch := report.Channels[0]
	if ch.Fetched != 2 || ch.Failed != 1 || ch.Err != nil {
		t.Fatalf("unexpected report: %+v", ch)
	}

	led, err := ledger.Load(cfg.ChannelDir("alpha"))
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if _, ok := led.Entry("v2"); ok {
		t.Fatal("failed fetch must not create a ledger entry")
	}
	if _, ok := led.Entry("v3"); !ok {
		t.Fatal("channel must continue past the failed item")
	}
}

func TestRunIsolatesChannelFailures(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"), channelNamed("beta"))
	indexer := &stubIndexer{
		itemsByChannel: map[string][]catalog.Item{"beta": items("b1")},
		errByChannel:   map[string]error{"alpha": errors.New("listing failed")},
	}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Channels[0].Err == nil {
		t.Fatal("alpha should carry its failure")
	}
	if report.Channels[1].Err != nil || report.Channels[1].Fetched != 1 {
		t.Fatalf("beta should succeed despite alpha: %+v", report.Channels[1])
	}
	if report.FailedChannels() != 1 {
		t.Fatalf("expected 1 failed channel, got %d", report.FailedChannels())
	}
}

func TestRunLedgerCorruptionFailsClosed(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	dir := cfg.ChannelDir("alpha")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(ledger.Path(dir), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("seed corrupt ledger: %v", err)
	}

	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1")}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Channels[0].Err == nil || !services.IsCorrupted(report.Channels[0].Err) {
		t.Fatalf("expected corruption failure, got %+v", report.Channels[0])
	}
	if fetcher.callCount() != 0 {
		t.Fatal("no fetches allowed on a corrupt ledger")
	}
}

func TestRunAllowListAndBound(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"), channelNamed("beta"), channelNamed("gamma"))
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	report, err := o.Run(context.Background(), RunOptions{Channels: []string{"beta"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Channels) != 1 || report.Channels[0].Channel != "beta" {
		t.Fatalf("allow-list ignored: %+v", report.Channels)
	}

	report, err = o.Run(context.Background(), RunOptions{MaxChannels: 2})
	if err != nil {
		t.Fatalf("Run with bound: %v", err)
	}
	if len(report.Channels) != 2 {
		t.Fatalf("channel bound ignored: %d channels", len(report.Channels))
	}

	if _, err := o.Run(context.Background(), RunOptions{Channels: []string{"nope"}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown channel should fail validation, got %v", err)
	}
}

func TestRunRedownloadDeleted(t *testing.T) {
	ch := channelNamed("alpha")
	ch.RedownloadDeleted = true
	cfg := testConfig(t, ch)
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1")}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	if _, err := o.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	dir := cfg.ChannelDir("alpha")
	led, err := ledger.Load(dir)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	led.MarkDeleted("v1", time.Now())
	if err := ledger.Save(dir, led); err != nil {
		t.Fatalf("save ledger: %v", err)
	}

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Channels[0].Redownloaded != 1 {
		t.Fatalf("expected one redownload: %+v", report.Channels[0])
	}
}

func TestRunSummarizesFetchedItems(t *testing.T) {
	ch := channelNamed("alpha")
	ch.Summarize = true
	ch.TranscriptLanguage = "en"
	cfg := testConfig(t, ch)
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1", "v2")}}
	fetcher := &stubFetcher{subtitles: true}
	summarizer := &stubSummarizer{}
	o := newTestOrchestrator(cfg, indexer, fetcher, WithSummarizer(summarizer))

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Channels[0].Summarized != 2 {
		t.Fatalf("expected 2 summaries: %+v", report.Channels[0])
	}
	for _, lang := range summarizer.languages {
		if lang != "en" {
			t.Fatalf("channel transcript language not passed through, got %q", lang)
		}
	}

	// A second run re-invokes the pipeline but counts nothing new.
	report, err = o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Channels[0].Summarized != 0 {
		t.Fatalf("already complete summaries must not be recounted: %+v", report.Channels[0])
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	store := testsupport.MustOpenRunlog(t, cfg.Runlog.Path)
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1", "v2")}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher, WithHistory(store))

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := store.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != report.RunID {
		t.Fatalf("expected one recorded run with ID %s, got %+v", report.RunID, runs)
	}
	if runs[0].ItemsFetched != 2 || runs[0].ChannelsFailed != 0 {
		t.Fatalf("unexpected run totals: %+v", runs[0])
	}

	outcomes, err := store.ChannelOutcomes(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("ChannelOutcomes: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Channel != "alpha" || outcomes[0].Fetched != 2 {
		t.Fatalf("unexpected channel outcomes: %+v", outcomes)
	}
}

func TestRunNoSkipRefetchesEverything(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1", "v2")}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	if _, err := o.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	callsAfterFirst := fetcher.callCount()

	report, err := o.Run(context.Background(), RunOptions{NoSkip: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	ch := report.Channels[0]
	if ch.Skipped != 0 || ch.Redownloaded != 2 {
		t.Fatalf("no-skip run should refetch everything: %+v", ch)
	}
	if fetcher.callCount() != callsAfterFirst+2 {
		t.Fatalf("expected 2 extra fetch calls, got %d", fetcher.callCount()-callsAfterFirst)
	}
}

func TestRunForceReindexRebuildsCatalog(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1")}}
	fetcher := &stubFetcher{}
	o := newTestOrchestrator(cfg, indexer, fetcher)

	if _, err := o.Run(context.Background(), RunOptions{ForceReindex: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if indexer.rebuilds != 1 {
		t.Fatalf("expected a full rebuild, got %d", indexer.rebuilds)
	}

	if _, err := o.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if indexer.rebuilds != 1 {
		t.Fatal("rebuild must only happen when forced")
	}
}

func TestRunCancellationBetweenItems(t *testing.T) {
	cfg := testConfig(t, channelNamed("alpha"))
	indexer := &stubIndexer{itemsByChannel: map[string][]catalog.Item{"alpha": items("v1", "v2", "v3")}}
	fetcher := &stubFetcher{}
	ctx, cancel := context.WithCancel(context.Background())

	o := newTestOrchestrator(cfg, indexer, fetcher, WithDelay(func(context.Context, time.Duration) {
		cancel()
	}))

	report, err := o.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ch := report.Channels[0]
	if ch.Err == nil || !errors.Is(ch.Err, context.Canceled) {
		t.Fatalf("expected cancellation to surface: %+v", ch)
	}

	// Work completed before the cancellation stays committed.
	led, err := ledger.Load(cfg.ChannelDir("alpha"))
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if _, ok := led.Entry("v1"); !ok {
		t.Fatal("first fetch should have been recorded before cancellation")
	}
}
