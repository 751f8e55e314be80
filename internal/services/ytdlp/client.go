package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"podharvest/internal/manifest"
	"podharvest/internal/services"
)

// RemoteItem is one playlist entry reported by the fetch tool.
type RemoteItem struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	UploadDate      string  `json:"upload_date"`
	DurationSeconds float64 `json:"duration"`
	URL             string  `json:"webpage_url"`
	FlatURL         string  `json:"url"`
	Uploader        string  `json:"uploader"`
}

// CanonicalURL prefers the full page URL over the flat playlist URL.
func (r RemoteItem) CanonicalURL() string {
	if r.URL != "" {
		return r.URL
	}
	return r.FlatURL
}

// DownloadRequest identifies one item to fetch.
type DownloadRequest struct {
	ID    string
	Title string
	URL   string
}

// DownloadOptions selects what the fetch produces.
type DownloadOptions struct {
	// ContentType is audio or video.
	ContentType string
	// Sidecars requests the metadata json, description, and thumbnail.
	Sidecars bool
	// SubtitleLanguages requests subtitle files converted to SRT.
	SubtitleLanguages []string
}

// Lister enumerates available channel items without fetching media.
type Lister interface {
	List(ctx context.Context, channelURL string, limit int) ([]RemoteItem, error)
}

// Downloader fetches one item into a channel directory and reports the
// produced files.
type Downloader interface {
	Download(ctx context.Context, channelDir string, req DownloadRequest, opts DownloadOptions) (manifest.Manifest, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client drives the yt-dlp binary.
type Client struct {
	binary          string
	listTimeout     time.Duration
	downloadTimeout time.Duration
	exec            Executor
}

// New constructs a yt-dlp client.
func New(binary string, listTimeoutSeconds, downloadTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:          binary,
		listTimeout:     time.Duration(listTimeoutSeconds) * time.Second,
		downloadTimeout: time.Duration(downloadTimeoutSeconds) * time.Second,
		exec:            commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// List enumerates channel entries as flat playlist metadata, one JSON object
// per output line. Unparsable lines are skipped; limit 0 means unbounded.
func (c *Client) List(ctx context.Context, channelURL string, limit int) ([]RemoteItem, error) {
	channelURL = strings.TrimSpace(channelURL)
	if channelURL == "" {
		return nil, services.Wrap(services.ErrValidation, "index", "list", "channel url required", nil)
	}

	listCtx := ctx
	if c.listTimeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, c.listTimeout)
		defer cancel()
	}

	args := []string{"--dump-json", "--flat-playlist", "--ignore-errors", "--no-warnings"}
	if limit > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(limit))
	}
	args = append(args, channelURL)

	var items []RemoteItem
	tail := newLineTail(8)
	err := c.exec.Run(listCtx, c.binary, args, func(line string) {
		tail.add(line)
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "{") {
			return
		}
		var item RemoteItem
		if err := json.Unmarshal([]byte(trimmed), &item); err != nil {
			return
		}
		if item.ID == "" {
			return
		}
		items = append(items, item)
	})
	if err != nil {
		return nil, classifyRunError("index", "list", err, listCtx, tail.String())
	}
	return items, nil
}

// Download fetches one item into channelDir/<id>/ and returns a manifest of
// the produced files with paths relative to channelDir.
func (c *Client) Download(ctx context.Context, channelDir string, req DownloadRequest, opts DownloadOptions) (manifest.Manifest, error) {
	var empty manifest.Manifest
	if strings.TrimSpace(channelDir) == "" {
		return empty, services.Wrap(services.ErrValidation, "download", "fetch", "channel directory required", nil)
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.URL) == "" {
		return empty, services.Wrap(services.ErrValidation, "download", "fetch", "item id and url required", nil)
	}

	itemDir := filepath.Join(channelDir, req.ID)
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		return empty, fmt.Errorf("create item directory: %w", err)
	}

	dlCtx := ctx
	if c.downloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, c.downloadTimeout)
		defer cancel()
	}

	args := c.downloadArgs(itemDir, req, opts)
	tail := newLineTail(8)
	if err := c.exec.Run(dlCtx, c.binary, args, tail.add); err != nil {
		return empty, classifyRunError("download", "fetch", err, dlCtx, tail.String())
	}

	built, err := buildManifest(channelDir, itemDir)
	if err != nil {
		return empty, err
	}
	if built.Media == "" {
		return empty, services.Wrap(services.ErrExternalTool, "download", "fetch", "fetch tool produced no media file: "+tail.String(), nil)
	}
	return built, nil
}

func (c *Client) downloadArgs(itemDir string, req DownloadRequest, opts DownloadOptions) []string {
	args := []string{"--no-progress", "--newline", "--no-warnings"}
	switch opts.ContentType {
	case "video":
		args = append(args, "-f", "bestvideo*+bestaudio/best")
	default:
		args = append(args, "-f", "bestaudio/best")
	}
	if opts.Sidecars {
		args = append(args, "--write-info-json", "--write-description", "--write-thumbnail")
	}
	if len(opts.SubtitleLanguages) > 0 {
		args = append(args,
			"--write-subs", "--write-auto-subs",
			"--sub-langs", strings.Join(opts.SubtitleLanguages, ","),
			"--convert-subs", "srt",
		)
	}
	args = append(args, "-o", filepath.Join(itemDir, req.ID+".%(ext)s"), req.URL)
	return args
}

// buildManifest classifies the files present in itemDir by extension. Paths
// in the returned manifest are relative to channelDir.
func buildManifest(channelDir, itemDir string) (manifest.Manifest, error) {
	var m manifest.Manifest
	entries, err := os.ReadDir(itemDir)
	if err != nil {
		return m, fmt.Errorf("inspect fetch outputs: %w", err)
	}

	var mediaCandidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		rel, err := filepath.Rel(channelDir, filepath.Join(itemDir, name))
		if err != nil {
			return m, fmt.Errorf("relativize %s: %w", name, err)
		}
		lower := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lower, ".info.json"):
			m.Metadata = rel
		case strings.HasSuffix(lower, ".description"):
			m.Description = rel
		case hasAnySuffix(lower, ".jpg", ".jpeg", ".png", ".webp"):
			m.Thumbnails = append(m.Thumbnails, rel)
		case hasAnySuffix(lower, ".srt", ".vtt"):
			m.Subtitles = append(m.Subtitles, rel)
		case hasAnySuffix(lower, ".m4a", ".mp3", ".opus", ".ogg", ".webm", ".mp4", ".mkv", ".wav"):
			mediaCandidates = append(mediaCandidates, rel)
		}
	}
	sort.Strings(m.Thumbnails)
	sort.Strings(m.Subtitles)

	if len(mediaCandidates) > 0 {
		// Prefer the largest file when the tool leaves several media
		// artifacts behind.
		best := mediaCandidates[0]
		var bestSize int64 = -1
		for _, rel := range mediaCandidates {
			info, err := os.Stat(filepath.Join(channelDir, rel))
			if err != nil {
				continue
			}
			if info.Size() > bestSize {
				bestSize = info.Size()
				best = rel
			}
		}
		m.Media = best
	}
	return m, nil
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// permanentMarkers are stderr fragments that mean the item can never be
// fetched; retrying is pointless.
var permanentMarkers = []string{
	"video unavailable",
	"private video",
	"this video has been removed",
	"account associated with this video has been terminated",
	"members-only content",
	"blocked in your country",
	"copyright claim",
	"sign in to confirm your age",
}

func classifyRunError(stage, op string, err error, ctx context.Context, tail string) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrTimeout, stage, op, "fetch tool timed out", ctx.Err())
	}
	lowered := strings.ToLower(tail)
	for _, marker := range permanentMarkers {
		if strings.Contains(lowered, marker) {
			return services.Wrap(services.ErrPermanent, stage, op, strings.TrimSpace(tail), err)
		}
	}
	message := strings.TrimSpace(tail)
	if message == "" {
		message = "fetch tool failed"
	}
	return services.Wrap(services.ErrExternalTool, stage, op, message, err)
}

// lineTail keeps the most recent output lines for error reporting.
type lineTail struct {
	lines []string
	max   int
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, " | ")
}
