package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"podharvest/internal/manifest"
)

// Decision is the outcome of classifying one catalog item against the ledger.
type Decision int

const (
	// Skip means the item was already fetched and stays untouched.
	Skip Decision = iota
	// Fetch means the item has never been recorded.
	Fetch
	// Redownload means the item should be fetched again.
	Redownload
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Fetch:
		return "fetch"
	case Redownload:
		return "redownload"
	default:
		return "unknown"
	}
}

// Policy controls how deleted or missing entries are treated.
type Policy struct {
	// RedownloadDeleted re-fetches entries whose deleted flag is set.
	// Without it, deleted entries stay skipped; ledger history is
	// authoritative and never silently replayed.
	RedownloadDeleted bool
	// TrustDisk promotes an active entry to Redownload when its media file
	// is missing from the channel directory. Consistency check only; the
	// deleted flag remains the single authoritative signal.
	TrustDisk bool
}

// Entry records one completed fetch.
type Entry struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	PublishDate  string            `json:"publish_date,omitempty"`
	DownloadedAt time.Time         `json:"downloaded_at"`
	Manifest     manifest.Manifest `json:"manifest"`
	// Hashes maps manifest relative paths to their SHA-256 content hashes.
	Hashes    map[string]string `json:"hashes,omitempty"`
	SizeBytes int64             `json:"size_bytes"`
	Deleted   bool              `json:"deleted"`
}

// Stats are aggregate counters derived from the entry map.
type Stats struct {
	TotalEntries  int   `json:"total_entries"`
	ActiveEntries int   `json:"active_entries"`
	TotalBytes    int64 `json:"total_bytes"`
}

// Ledger is the per-channel record of what has actually been fetched.
// Entries are only ever added or updated, never dropped.
type Ledger struct {
	Channel     string           `json:"channel"`
	LastUpdated time.Time        `json:"last_updated"`
	Entries     map[string]Entry `json:"entries"`
	Stats       Stats            `json:"stats"`

	// channelDir anchors TrustDisk presence checks. Not persisted.
	channelDir string
}

// New creates an empty ledger for a channel.
func New(channel, channelDir string) *Ledger {
	return &Ledger{
		Channel:    channel,
		Entries:    map[string]Entry{},
		channelDir: channelDir,
	}
}

// SetChannelDir anchors filesystem presence checks after a Load.
func (l *Ledger) SetChannelDir(dir string) {
	l.channelDir = dir
}

// Classify decides what to do with a catalog item. Every item maps to exactly
// one of Skip, Fetch, or Redownload; Fetch occurs iff no entry exists.
func (l *Ledger) Classify(itemID string, policy Policy) Decision {
	entry, ok := l.Entries[itemID]
	if !ok {
		return Fetch
	}
	if entry.Deleted {
		if policy.RedownloadDeleted {
			return Redownload
		}
		return Skip
	}
	if policy.TrustDisk && l.mediaMissing(entry) {
		return Redownload
	}
	return Skip
}

// Record upserts an active entry after a successful fetch. Failed fetches
// must never reach this method; partial work is not recorded as success.
func (l *Ledger) Record(itemID, title, publishDate string, m manifest.Manifest, hashes map[string]string, sizeBytes int64, at time.Time) {
	if l.Entries == nil {
		l.Entries = map[string]Entry{}
	}
	l.Entries[itemID] = Entry{
		ID:           itemID,
		Title:        title,
		PublishDate:  publishDate,
		DownloadedAt: at.UTC(),
		Manifest:     m,
		Hashes:       hashes,
		SizeBytes:    sizeBytes,
		Deleted:      false,
	}
	l.LastUpdated = at.UTC()
	l.recomputeStats()
}

// MarkDeleted flips the deleted flag on an existing entry. It reports whether
// the entry existed.
func (l *Ledger) MarkDeleted(itemID string, at time.Time) bool {
	entry, ok := l.Entries[itemID]
	if !ok {
		return false
	}
	entry.Deleted = true
	l.Entries[itemID] = entry
	l.LastUpdated = at.UTC()
	l.recomputeStats()
	return true
}

// Entry returns the entry for an item id.
func (l *Ledger) Entry(itemID string) (Entry, bool) {
	entry, ok := l.Entries[itemID]
	return entry, ok
}

func (l *Ledger) recomputeStats() {
	stats := Stats{}
	for _, entry := range l.Entries {
		stats.TotalEntries++
		if !entry.Deleted {
			stats.ActiveEntries++
			stats.TotalBytes += entry.SizeBytes
		}
	}
	l.Stats = stats
}

func (l *Ledger) mediaMissing(entry Entry) bool {
	media := strings.TrimSpace(entry.Manifest.Media)
	if media == "" || l.channelDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(l.channelDir, media))
	return os.IsNotExist(err)
}
