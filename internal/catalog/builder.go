package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podharvest/internal/config"
	"podharvest/internal/logging"
	"podharvest/internal/services"
	"podharvest/internal/services/ytdlp"
)

// Builder constructs and merges channel catalogs from fetch tool listings.
type Builder struct {
	lister ytdlp.Lister
	logger *slog.Logger
	now    func() time.Time
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder constructs a Builder around a fetch tool lister.
func NewBuilder(lister ytdlp.Lister, logger *slog.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Builder{
		lister: lister,
		logger: logger.With(logging.String(logging.FieldComponent, "catalog")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build queries the channel listing, filters to items published at or after
// the cutoff, and merges the result into the previous catalog. A nil previous
// catalog starts fresh. Items already present are never removed, even when
// the cutoff moved later; an earlier cutoff widens the admitted window.
func (b *Builder) Build(ctx context.Context, channel config.Channel, previous *Catalog) (*Catalog, error) {
	cutoff, err := channel.CutoffTime()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "index", "build", "invalid cutoff date for "+channel.Name, err)
	}

	remote, err := b.lister.List(ctx, channel.URL, channel.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("list channel %s: %w", channel.Name, err)
	}

	now := b.now()
	cat := previous
	source := "merge"
	if cat == nil {
		cat = New(channel.Name, channel.URL, now)
		source = "rebuild"
	}
	cat.RecordCutoff(channel.CutoffDate)

	seen := 0
	added := 0
	for _, entry := range remote {
		item, ok := admitItem(entry, cutoff)
		if !ok {
			continue
		}
		seen++
		if cat.Upsert(item) {
			added++
		}
	}
	cat.Finalize(now)
	cat.IndexHistory = append(cat.IndexHistory, IndexEvent{
		Cutoff:     channel.CutoffDate,
		IndexedAt:  now.UTC(),
		ItemsSeen:  seen,
		ItemsAdded: added,
		Source:     source,
	})

	b.logger.Info("channel indexed",
		logging.String(logging.FieldChannel, channel.Name),
		logging.Int("items_seen", seen),
		logging.Int("items_added", added),
		logging.Int("items_total", cat.TotalItems),
		logging.String("cutoff", channel.CutoffDate),
	)
	return cat, nil
}

// LoadOrRebuild loads the persisted catalog for the channel directory and
// merges a fresh listing into it. Corruption triggers a full rebuild from the
// listing; a missing catalog is the normal first-run path.
func (b *Builder) LoadOrRebuild(ctx context.Context, channel config.Channel, channelDir string) (*Catalog, error) {
	previous, err := Load(channelDir)
	switch {
	case err == nil:
	case services.IsNotFound(err):
		previous = nil
	case services.IsCorrupted(err):
		b.logger.Warn("catalog unreadable, rebuilding from source",
			logging.String(logging.FieldChannel, channel.Name),
			logging.Error(err),
		)
		previous = nil
	default:
		return nil, err
	}
	return b.Build(ctx, channel, previous)
}

// Rebuild discards any persisted catalog and builds a fresh one from the
// source listing alone.
func (b *Builder) Rebuild(ctx context.Context, channel config.Channel, channelDir string) (*Catalog, error) {
	return b.Build(ctx, channel, nil)
}

// admitItem converts a remote listing entry into a catalog item when it falls
// inside the cutoff window. Entries with unparsable dates are excluded.
func admitItem(entry ytdlp.RemoteItem, cutoff time.Time) (Item, bool) {
	item := Item{
		ID:              entry.ID,
		Title:           entry.Title,
		PublishDate:     entry.UploadDate,
		DurationSeconds: entry.DurationSeconds,
		URL:             entry.CanonicalURL(),
		Uploader:        entry.Uploader,
	}
	published, err := item.PublishTime()
	if err != nil {
		return Item{}, false
	}
	if published.Before(cutoff) {
		return Item{}, false
	}
	return item, true
}
