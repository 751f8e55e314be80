package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"podharvest/internal/catalog"
	"podharvest/internal/config"
	"podharvest/internal/fileutil"
	"podharvest/internal/ledger"
	"podharvest/internal/logging"
	"podharvest/internal/manifest"
	"podharvest/internal/notifications"
	"podharvest/internal/runlog"
	"podharvest/internal/services"
	"podharvest/internal/services/ytdlp"
	"podharvest/internal/summarize"
)

// Indexer builds or refreshes a channel catalog.
type Indexer interface {
	LoadOrRebuild(ctx context.Context, channel config.Channel, channelDir string) (*catalog.Catalog, error)
	Rebuild(ctx context.Context, channel config.Channel, channelDir string) (*catalog.Catalog, error)
}

// Fetcher downloads one item into a channel directory.
type Fetcher interface {
	Download(ctx context.Context, channelDir string, req ytdlp.DownloadRequest, opts ytdlp.DownloadOptions) (manifest.Manifest, error)
}

// Summarizer turns one item's transcript into a persisted summary.
type Summarizer interface {
	Run(ctx context.Context, itemDir, subtitlePath, preferredLanguage string) (summarize.Result, error)
}

// History persists run outcomes for later inspection.
type History interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	RecordChannel(ctx context.Context, outcome runlog.ChannelOutcome) error
	FinishRun(ctx context.Context, run runlog.Run) error
}

// RunOptions narrow one harvest run.
type RunOptions struct {
	// Channels is an allow-list of channel names. Empty means all.
	Channels []string
	// MaxChannels bounds how many channels are processed. Zero falls back
	// to the configured bound; negative means unbounded.
	MaxChannels int
	// ForceReindex rebuilds each channel catalog from the source listing,
	// ignoring any persisted catalog.
	ForceReindex bool
	// NoSkip fetches items the ledger would otherwise skip.
	NoSkip bool
}

// Orchestrator drives index, classify, fetch, and summarize for every
// configured channel.
type Orchestrator struct {
	cfg        *config.Config
	indexer    Indexer
	fetcher    Fetcher
	summarizer Summarizer
	notifier   notifications.Service
	history    History
	logger     *slog.Logger

	now      func() time.Time
	newRunID func() string
	delay    func(context.Context, time.Duration)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunID overrides run id generation (for tests).
func WithRunID(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newRunID = gen
		}
	}
}

// WithHistory attaches a run history store.
func WithHistory(history History) Option {
	return func(o *Orchestrator) { o.history = history }
}

// WithSummarizer attaches the transcript pipeline.
func WithSummarizer(summarizer Summarizer) Option {
	return func(o *Orchestrator) { o.summarizer = summarizer }
}

// WithDelay overrides the politeness pause between item fetches (for tests).
func WithDelay(delay func(context.Context, time.Duration)) Option {
	return func(o *Orchestrator) {
		if delay != nil {
			o.delay = delay
		}
	}
}

// New constructs an Orchestrator.
func New(cfg *config.Config, indexer Indexer, fetcher Fetcher, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	o := &Orchestrator{
		cfg:      cfg,
		indexer:  indexer,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "harvest")),
		now:      time.Now,
		newRunID: uuid.NewString,
		delay:    sleepWithContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Run processes the selected channels and returns the per-channel report.
// Channels fail independently; only lock contention, selection errors, and
// run-level bookkeeping failures abort the run.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	selected, err := o.selectChannels(opts)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "harvest", "run", "no channels selected", nil)
	}

	lock := flock.New(o.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire harvest lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "harvest", "run", "another harvest run holds the lock", nil)
	}
	defer func() { _ = lock.Unlock() }()

	report := &Report{
		RunID:     o.newRunID(),
		StartedAt: o.now().UTC(),
		Channels:  make([]ChannelReport, len(selected)),
	}
	ctx = services.WithRunID(ctx, report.RunID)
	o.logger.Info("harvest run started",
		logging.String(logging.FieldRunID, report.RunID),
		logging.Int("channels", len(selected)),
	)

	if o.history != nil {
		if err := o.history.StartRun(ctx, report.RunID, report.StartedAt); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}
	if err := o.notifier.NotifyHarvestStarted(ctx, len(selected)); err != nil {
		o.logger.Warn("start notification failed", logging.Error(err))
	}

	workers := o.cfg.Harvest.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(selected) {
		workers = len(selected)
	}

	type job struct {
		index   int
		channel config.Channel
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				report.Channels[j.index] = o.processChannel(ctx, j.channel, report.RunID, opts)
			}
		}()
	}
	for i, ch := range selected {
		jobs <- job{index: i, channel: ch}
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = o.now().UTC()
	o.finishRun(ctx, report)
	return report, nil
}

// selectChannels applies the allow-list and channel bound before any work.
func (o *Orchestrator) selectChannels(opts RunOptions) ([]config.Channel, error) {
	channels := o.cfg.Channels
	if len(opts.Channels) > 0 {
		var missing []string
		var picked []config.Channel
		for _, name := range opts.Channels {
			ch, ok := o.cfg.ChannelByName(name)
			if !ok {
				missing = append(missing, name)
				continue
			}
			picked = append(picked, ch)
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, services.Wrap(services.ErrValidation, "harvest", "select",
				"unknown channels: "+strings.Join(missing, ", "), nil)
		}
		channels = picked
	}

	limit := opts.MaxChannels
	if limit == 0 {
		limit = o.cfg.Harvest.MaxChannels
	}
	if limit > 0 && len(channels) > limit {
		channels = channels[:limit]
	}
	return channels, nil
}

func (o *Orchestrator) processChannel(ctx context.Context, ch config.Channel, runID string, opts RunOptions) ChannelReport {
	rep := ChannelReport{Channel: ch.Name}
	ctx = services.WithChannel(ctx, ch.Name)
	log := o.logger.With(logging.String(logging.FieldChannel, ch.Name))

	if _, err := ch.CutoffTime(); err != nil {
		rep.Err = services.Wrap(services.ErrValidation, "harvest", "channel", "invalid cutoff date", err)
		return rep
	}

	dir := o.cfg.ChannelDir(ch.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		rep.Err = fmt.Errorf("create channel directory: %w", err)
		return rep
	}

	var cat *catalog.Catalog
	var err error
	if opts.ForceReindex {
		cat, err = o.indexer.Rebuild(ctx, ch, dir)
	} else {
		cat, err = o.indexer.LoadOrRebuild(ctx, ch, dir)
	}
	if err != nil {
		rep.Err = fmt.Errorf("index channel: %w", err)
		return rep
	}
	if err := catalog.Save(dir, cat); err != nil {
		rep.Err = fmt.Errorf("persist catalog: %w", err)
		return rep
	}

	// A corrupt ledger has no source of truth to rebuild from, so the
	// channel fails closed here.
	led, err := ledger.LoadOrCreate(ch.Name, dir)
	if err != nil {
		rep.Err = fmt.Errorf("load ledger: %w", err)
		return rep
	}

	policy := ledger.Policy{RedownloadDeleted: ch.RedownloadDeleted, TrustDisk: ch.TrustDisk}
	channelDelay := time.Duration(o.cfg.Harvest.ChannelDelaySeconds) * time.Second
	fetchedAny := false

	for _, item := range cat.OrderedItems() {
		if ctx.Err() != nil {
			rep.Err = ctx.Err()
			return rep
		}
		itemCtx := services.WithVideoID(ctx, item.ID)
		decision := led.Classify(item.ID, policy)
		if opts.NoSkip && decision == ledger.Skip {
			decision = ledger.Redownload
		}

		switch decision {
		case ledger.Skip:
			rep.Skipped++
		case ledger.Fetch, ledger.Redownload:
			if fetchedAny {
				o.delay(itemCtx, channelDelay)
			}
			fetchedAny = true
			if err := o.fetchItem(itemCtx, ch, dir, item, led); err != nil {
				rep.Failed++
				log.Warn("item fetch failed",
					logging.String(logging.FieldVideoID, item.ID),
					logging.String("decision", decision.String()),
					logging.Bool("retryable", services.IsRetryable(err)),
					logging.Error(err),
				)
				continue
			}
			if decision == ledger.Redownload {
				rep.Redownloaded++
			} else {
				rep.Fetched++
			}
		}

		if ch.Summarize && o.summarizer != nil {
			if summarized := o.summarizeItem(itemCtx, ch, dir, item, led, log); summarized {
				rep.Summarized++
			}
		}
	}

	log.Info("channel processed",
		logging.String(logging.FieldRunID, runID),
		logging.Int("fetched", rep.Fetched),
		logging.Int("skipped", rep.Skipped),
		logging.Int("redownloaded", rep.Redownloaded),
		logging.Int("failed", rep.Failed),
		logging.Int("summarized", rep.Summarized),
	)
	return rep
}

// fetchItem downloads one item and records it in the ledger. The ledger is
// saved immediately after the record so cancellation between items never
// loses a completed fetch.
func (o *Orchestrator) fetchItem(ctx context.Context, ch config.Channel, dir string, item catalog.Item, led *ledger.Ledger) error {
	man, err := o.fetcher.Download(ctx, dir, ytdlp.DownloadRequest{
		ID:    item.ID,
		Title: item.Title,
		URL:   item.URL,
	}, ytdlp.DownloadOptions{
		ContentType:       ch.ContentType,
		Sidecars:          true,
		SubtitleLanguages: ch.SubtitleLanguages,
	})
	if err != nil {
		return err
	}

	hashes, size := o.fingerprint(dir, man)
	led.Record(item.ID, item.Title, item.PublishDate, man, hashes, size, o.now())
	if err := ledger.Save(dir, led); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// fingerprint hashes every manifest file and measures the media size.
// Unreadable files are skipped rather than failing a completed fetch.
func (o *Orchestrator) fingerprint(dir string, man manifest.Manifest) (map[string]string, int64) {
	hashes := map[string]string{}
	for _, rel := range man.AllPaths() {
		sum, err := fileutil.HashFile(filepath.Join(dir, rel))
		if err != nil {
			continue
		}
		hashes[rel] = sum
	}
	var size int64
	if info, err := os.Stat(filepath.Join(dir, man.Media)); err == nil {
		size = info.Size()
	}
	return hashes, size
}

// summarizeItem runs the transcript pipeline for an active ledger entry. It
// reports whether a new summary was completed this run.
func (o *Orchestrator) summarizeItem(ctx context.Context, ch config.Channel, dir string, item catalog.Item, led *ledger.Ledger, log *slog.Logger) bool {
	entry, ok := led.Entry(item.ID)
	if !ok || entry.Deleted {
		return false
	}
	subtitle := entry.Manifest.SubtitleForLanguage(ch.TranscriptLanguage)
	if subtitle == "" && len(entry.Manifest.Subtitles) > 0 {
		subtitle = entry.Manifest.Subtitles[0]
	}
	subtitlePath := ""
	if subtitle != "" {
		subtitlePath = filepath.Join(dir, subtitle)
	}

	result, err := o.summarizer.Run(ctx, filepath.Join(dir, item.ID), subtitlePath, ch.TranscriptLanguage)
	if err != nil {
		log.Warn("summarization failed",
			logging.String(logging.FieldVideoID, item.ID),
			logging.Error(err),
		)
		return false
	}
	if result.Skipped || !result.Final.Complete {
		return false
	}
	if err := o.notifier.NotifySummaryReady(ctx, ch.Name, item.Title); err != nil {
		log.Warn("summary notification failed", logging.Error(err))
	}
	return true
}

func (o *Orchestrator) finishRun(ctx context.Context, report *Report) {
	var fetched, skipped, redone, failed, summed int
	for _, ch := range report.Channels {
		fetched += ch.Fetched
		skipped += ch.Skipped
		redone += ch.Redownloaded
		failed += ch.Failed
		summed += ch.Summarized

		if o.history != nil {
			outcome := runlog.ChannelOutcome{
				RunID:        report.RunID,
				Channel:      ch.Channel,
				Fetched:      ch.Fetched,
				Skipped:      ch.Skipped,
				Redownloaded: ch.Redownloaded,
				Failed:       ch.Failed,
				Summarized:   ch.Summarized,
			}
			if ch.Err != nil {
				outcome.Error = ch.Err.Error()
			}
			if err := o.history.RecordChannel(ctx, outcome); err != nil {
				o.logger.Warn("record channel outcome failed", logging.Error(err))
			}
		}
		if err := o.notifier.NotifyChannelCompleted(ctx, ch.Channel, ch.Fetched+ch.Redownloaded, ch.Skipped, ch.Failed); err != nil {
			o.logger.Warn("channel notification failed", logging.Error(err))
		}
		if ch.Err != nil {
			o.logger.Error("channel failed",
				logging.String(logging.FieldChannel, ch.Channel),
				logging.Error(ch.Err),
			)
			if err := o.notifier.NotifyError(ctx, ch.Err, ch.Channel); err != nil {
				o.logger.Warn("error notification failed", logging.Error(err))
			}
		}
	}

	if o.history != nil {
		if err := o.history.FinishRun(ctx, runlog.Run{
			ID:             report.RunID,
			StartedAt:      report.StartedAt,
			FinishedAt:     report.FinishedAt,
			ChannelsTotal:  len(report.Channels),
			ChannelsFailed: report.FailedChannels(),
			ItemsFetched:   fetched,
			ItemsSkipped:   skipped,
			ItemsRedone:    redone,
			ItemsFailed:    failed,
			ItemsSummed:    summed,
		}); err != nil {
			o.logger.Warn("record run finish failed", logging.Error(err))
		}
	}
	if err := o.notifier.NotifyHarvestCompleted(ctx, fetched+redone, failed, report.FinishedAt.Sub(report.StartedAt)); err != nil {
		o.logger.Warn("completion notification failed", logging.Error(err))
	}

	o.logger.Info("harvest run finished",
		logging.String(logging.FieldRunID, report.RunID),
		logging.Int("fetched", fetched+redone),
		logging.Int("skipped", skipped),
		logging.Int("failed", failed),
		logging.Int("summarized", summed),
		logging.Int("channels_failed", report.FailedChannels()),
	)
}
