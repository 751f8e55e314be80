package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"podharvest/internal/logging"
	"podharvest/internal/retry"
	"podharvest/internal/transcript"
)

// Completer is the language model collaborator. A single call either returns
// text or a classified error; all retrying happens in this package.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
	Endpoint() string
}

// Options configures one pipeline instance.
type Options struct {
	ChunkWindow          time.Duration
	Retry                retry.Policy
	ChunkInstruction     string
	AggregateInstruction string
	// ContextLength bounds the prompt size, measured in model tokens.
	ContextLength int
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithSleeper overrides the retry sleep function (for tests).
func WithSleeper(sleep retry.Sleeper) PipelineOption {
	return func(p *Pipeline) { p.sleep = sleep }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline turns one item's transcript into a persisted hierarchical summary.
type Pipeline struct {
	client Completer
	opts   Options
	logger *slog.Logger
	sleep  retry.Sleeper
	now    func() time.Time
}

// New constructs a summarization pipeline.
func New(client Completer, opts Options, logger *slog.Logger, popts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.ChunkWindow <= 0 {
		opts.ChunkWindow = transcript.DefaultChunkWindow
	}
	p := &Pipeline{
		client: client,
		opts:   opts,
		logger: logger.With(logging.String(logging.FieldComponent, "summarize")),
		now:    time.Now,
	}
	for _, opt := range popts {
		opt(p)
	}
	return p
}

// Run summarizes the transcript at subtitlePath into itemDir/summary/.
// preferredLanguage labels the summary when the subtitle file name carries no
// language code. An already complete summary short-circuits. A missing or
// empty transcript is recorded as a failed summary with a reason, not
// returned as an error; only persistence problems are.
func (p *Pipeline) Run(ctx context.Context, itemDir, subtitlePath, preferredLanguage string) (Result, error) {
	if existing, meta, ok, err := LoadSummary(itemDir); err == nil && ok && existing.Complete {
		p.logger.Debug("summary already complete, skipping", logging.String("item_dir", itemDir))
		return Result{Final: existing, Meta: meta, Skipped: true}, nil
	}

	started := p.now()
	chunks, err := p.loadChunks(itemDir, subtitlePath)
	if err != nil {
		return Result{}, err
	}

	meta := Metadata{
		Endpoint:    p.client.Endpoint(),
		Model:       p.client.Model(),
		ChunksTotal: len(chunks),
	}

	if len(chunks) == 0 {
		final := FinalSummary{
			GeneratedAt:   p.now().UTC(),
			FailureReason: "no transcript available",
		}
		meta.ElapsedSeconds = p.now().Sub(started).Seconds()
		if err := saveSummary(itemDir, final, meta); err != nil {
			return Result{}, fmt.Errorf("persist summary: %w", err)
		}
		return Result{Final: final, Meta: meta}, nil
	}

	summaries, err := p.summarizeChunks(ctx, itemDir, chunks)
	if err != nil {
		return Result{}, err
	}

	final, aggregateOK := p.aggregate(ctx, chunks, summaries, p.sourceLanguage(subtitlePath, preferredLanguage, chunks))
	succeeded := 0
	for _, s := range summaries {
		if s.Success {
			succeeded++
		}
	}
	meta.ChunksSucceeded = succeeded
	meta.ChunkStageOK = succeeded == len(chunks)
	meta.AggregateOK = aggregateOK
	meta.ElapsedSeconds = p.now().Sub(started).Seconds()

	if err := saveSummary(itemDir, final, meta); err != nil {
		return Result{}, fmt.Errorf("persist summary: %w", err)
	}

	p.logger.Info("summary generated",
		logging.String("item_dir", itemDir),
		logging.Int("chunks_total", len(chunks)),
		logging.Int("chunks_succeeded", succeeded),
		logging.Bool("complete", final.Complete),
	)
	return Result{Final: final, Meta: meta}, nil
}

// loadChunks parses the subtitle file and persists the chunk windows. A
// missing subtitle path yields zero chunks.
func (p *Pipeline) loadChunks(itemDir, subtitlePath string) ([]transcript.Chunk, error) {
	if strings.TrimSpace(subtitlePath) == "" {
		return nil, nil
	}
	f, err := os.Open(subtitlePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	cues, err := transcript.ParseSRT(f)
	if err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", subtitlePath, err)
	}
	chunks := transcript.ChunkCues(cues, p.opts.ChunkWindow)
	if len(chunks) == 0 {
		return nil, nil
	}
	if err := saveChunks(itemDir, chunks); err != nil {
		return nil, fmt.Errorf("persist chunks: %w", err)
	}
	return chunks, nil
}

// summarizeChunks runs the model over each chunk in order. A chunk that
// exhausts its retries is recorded as failed and never halts its siblings.
// Results are persisted after every chunk so an interrupted run loses at most
// the in-flight call.
func (p *Pipeline) summarizeChunks(ctx context.Context, itemDir string, chunks []transcript.Chunk) ([]ChunkSummary, error) {
	summaries := make([]ChunkSummary, 0, len(chunks))
	for _, chunk := range chunks {
		prompt := p.truncate(chunk.Text)
		var text string
		err := retry.Do(ctx, p.opts.Retry, p.sleep, func(ctx context.Context, attempt int) error {
			out, callErr := p.client.Complete(ctx, p.opts.ChunkInstruction, prompt)
			if callErr != nil {
				return callErr
			}
			text = out
			return nil
		})

		summary := ChunkSummary{Number: chunk.Number}
		if err != nil {
			summary.FailureReason = err.Error()
			p.logger.Warn("chunk summary failed",
				logging.String("item_dir", itemDir),
				logging.Int("chunk", chunk.Number),
				logging.Error(err),
			)
		} else {
			summary.Success = true
			summary.Text = strings.TrimSpace(text)
		}
		summaries = append(summaries, summary)
		if err := saveChunkSummaries(itemDir, summaries); err != nil {
			return nil, fmt.Errorf("persist chunk summaries: %w", err)
		}
	}
	return summaries, nil
}

// aggregate combines the successful chunk summaries into a final summary.
// With zero successes no model call is made and the summary is persisted as
// failed with a reason.
func (p *Pipeline) aggregate(ctx context.Context, chunks []transcript.Chunk, summaries []ChunkSummary, language string) (FinalSummary, bool) {
	final := FinalSummary{
		ChunksTotal: len(chunks),
		GeneratedAt: p.now().UTC(),
		Language:    language,
	}

	var parts []string
	skipped := 0
	for _, summary := range summaries {
		if !summary.Success {
			skipped++
			continue
		}
		final.ChunksSucceeded++
		parts = append(parts, fmt.Sprintf("Segment %d:\n%s", summary.Number, summary.Text))
	}

	if final.ChunksSucceeded == 0 {
		final.FailureReason = "all chunk summaries failed"
		return final, false
	}

	prompt := strings.Join(parts, "\n\n")
	if skipped > 0 {
		prompt += fmt.Sprintf("\n\nNote: %d of %d segments could not be summarized and are missing above.", skipped, len(summaries))
	}
	prompt = p.truncate(prompt)

	var text string
	err := retry.Do(ctx, p.opts.Retry, p.sleep, func(ctx context.Context, attempt int) error {
		out, callErr := p.client.Complete(ctx, p.opts.AggregateInstruction, prompt)
		if callErr != nil {
			return callErr
		}
		text = out
		return nil
	})
	if err != nil {
		final.FailureReason = "aggregate summary failed: " + err.Error()
		return final, false
	}

	final.Text = strings.TrimSpace(text)
	final.Complete = final.Text != ""
	if !final.Complete {
		final.FailureReason = "aggregate summary empty"
		return final, false
	}
	return final, true
}

// sourceLanguage prefers the language code embedded in the subtitle file
// name, then the channel's configured preference, then statistical detection
// over the transcript text.
func (p *Pipeline) sourceLanguage(subtitlePath, preferred string, chunks []transcript.Chunk) string {
	if code := languageFromSubtitlePath(subtitlePath); code != "" {
		return code
	}
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		return strings.ToLower(preferred)
	}
	var sample strings.Builder
	for _, chunk := range chunks {
		sample.WriteString(chunk.Text)
		sample.WriteString(" ")
		if sample.Len() > 4000 {
			break
		}
	}
	return detectLanguage(sample.String())
}

// truncate bounds a prompt to roughly the configured context length,
// approximating four characters per token.
func (p *Pipeline) truncate(text string) string {
	if p.opts.ContextLength <= 0 {
		return text
	}
	limit := p.opts.ContextLength * 4
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
