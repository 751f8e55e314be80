package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Item is one discoverable channel entry. Title and duration may be
// refreshed on re-index; the remaining fields are fixed once written.
type Item struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	PublishDate     string  `json:"publish_date"`
	DurationSeconds float64 `json:"duration_seconds"`
	URL             string  `json:"url"`
	Uploader        string  `json:"uploader,omitempty"`
}

// PublishTime parses the YYYYMMDD publish date.
func (i Item) PublishTime() (time.Time, error) {
	return time.Parse("20060102", strings.TrimSpace(i.PublishDate))
}

// IndexEvent records one index pass for auditability.
type IndexEvent struct {
	Cutoff     string    `json:"cutoff"`
	IndexedAt  time.Time `json:"indexed_at"`
	ItemsSeen  int       `json:"items_seen"`
	ItemsAdded int       `json:"items_added"`
	Source     string    `json:"source"`
}

// Catalog is the per-channel index of items at or after the cutoff date.
// Entries are never removed; later cutoffs do not shrink the catalog.
type Catalog struct {
	Channel        string          `json:"channel"`
	URL            string          `json:"url"`
	CreatedAt      time.Time       `json:"created_at"`
	LastUpdated    time.Time       `json:"last_updated"`
	Cutoff         string          `json:"cutoff"`
	CutoffHistory  []string        `json:"cutoff_history"`
	TotalItems     int             `json:"total_items"`
	Items          map[string]Item `json:"items"`
	Order          []string        `json:"order"`
	MinPublishDate string          `json:"min_publish_date,omitempty"`
	MaxPublishDate string          `json:"max_publish_date,omitempty"`
	IndexHistory   []IndexEvent    `json:"index_history,omitempty"`
}

// New creates an empty catalog for a channel.
func New(channel, url string, now time.Time) *Catalog {
	return &Catalog{
		Channel:     channel,
		URL:         url,
		CreatedAt:   now.UTC(),
		LastUpdated: now.UTC(),
		Items:       map[string]Item{},
	}
}

// Upsert adds a new item or refreshes title and duration on an existing one.
// It reports whether the item was newly added.
func (c *Catalog) Upsert(item Item) bool {
	if c.Items == nil {
		c.Items = map[string]Item{}
	}
	existing, ok := c.Items[item.ID]
	if ok {
		if item.Title != "" {
			existing.Title = item.Title
		}
		if item.DurationSeconds > 0 {
			existing.DurationSeconds = item.DurationSeconds
		}
		c.Items[item.ID] = existing
		return false
	}
	c.Items[item.ID] = item
	c.Order = append(c.Order, item.ID)
	return true
}

// RecordCutoff appends the cutoff to the history if not already present and
// keeps the history ascending and unique.
func (c *Catalog) RecordCutoff(cutoff string) {
	for _, existing := range c.CutoffHistory {
		if existing == cutoff {
			c.Cutoff = cutoff
			return
		}
	}
	c.CutoffHistory = append(c.CutoffHistory, cutoff)
	sort.Strings(c.CutoffHistory)
	c.Cutoff = cutoff
}

// EarliestCutoff returns the smallest cutoff ever applied, or the current one
// when no history exists.
func (c *Catalog) EarliestCutoff() string {
	if len(c.CutoffHistory) == 0 {
		return c.Cutoff
	}
	return c.CutoffHistory[0]
}

// Finalize recomputes derived fields after a merge pass.
func (c *Catalog) Finalize(now time.Time) {
	c.TotalItems = len(c.Items)
	c.LastUpdated = now.UTC()
	c.MinPublishDate = ""
	c.MaxPublishDate = ""
	for _, item := range c.Items {
		if item.PublishDate == "" {
			continue
		}
		if c.MinPublishDate == "" || item.PublishDate < c.MinPublishDate {
			c.MinPublishDate = item.PublishDate
		}
		if c.MaxPublishDate == "" || item.PublishDate > c.MaxPublishDate {
			c.MaxPublishDate = item.PublishDate
		}
	}
}

// OrderedItems returns items in stable insertion order.
func (c *Catalog) OrderedItems() []Item {
	items := make([]Item, 0, len(c.Order))
	for _, id := range c.Order {
		if item, ok := c.Items[id]; ok {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks the structural invariants of a loaded catalog document.
func (c *Catalog) Validate() error {
	if strings.TrimSpace(c.Channel) == "" {
		return fmt.Errorf("catalog missing channel name")
	}
	if len(c.Order) != len(c.Items) {
		return fmt.Errorf("catalog order list has %d ids but item map has %d", len(c.Order), len(c.Items))
	}
	seen := make(map[string]struct{}, len(c.Order))
	for _, id := range c.Order {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("catalog order list repeats id %s", id)
		}
		seen[id] = struct{}{}
		if _, ok := c.Items[id]; !ok {
			return fmt.Errorf("catalog order list references unknown id %s", id)
		}
	}
	return nil
}
