package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"podharvest/internal/catalog"
	"podharvest/internal/config"
	"podharvest/internal/harvest"
	"podharvest/internal/logging"
	"podharvest/internal/notifications"
	"podharvest/internal/retry"
	"podharvest/internal/runlog"
	"podharvest/internal/services/llm"
	"podharvest/internal/services/ytdlp"
	"podharvest/internal/summarize"
	"podharvest/internal/transcript"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// newFetchClient builds the yt-dlp driver from configured timeouts.
func newFetchClient(cfg *config.Config) (*ytdlp.Client, error) {
	return ytdlp.New(cfg.YtdlpBinary(), cfg.Harvest.ListTimeout, cfg.Harvest.DownloadTimeout)
}

// newSummarizePipeline wires the language-model client and retry policy for
// channels that opt into summarization.
func newSummarizePipeline(cfg *config.Config, logger *slog.Logger) *summarize.Pipeline {
	llmCfg := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		Temperature:    llmCfg.Temperature,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})

	window := time.Duration(cfg.Summarize.ChunkWindowSeconds) * time.Second
	if window <= 0 {
		window = transcript.DefaultChunkWindow
	}
	return summarize.New(client, summarize.Options{
		ChunkWindow: window,
		Retry: retry.Policy{
			MaxRetries: cfg.Summarize.MaxRetries,
			Delay:      time.Duration(cfg.Summarize.RetryDelaySeconds) * time.Second,
			Backoff:    cfg.Summarize.RetryBackoff,
			MaxDelay:   time.Duration(cfg.Summarize.RetryMaxDelaySeconds) * time.Second,
		},
		ChunkInstruction:     cfg.Summarize.ChunkInstruction,
		AggregateInstruction: cfg.Summarize.AggregateInstruction,
		ContextLength:        llmCfg.ContextLength,
	}, logger)
}

// newOrchestrator assembles the full harvest pipeline. The returned closer
// releases the run history store when one is configured.
func (c *commandContext) newOrchestrator() (*harvest.Orchestrator, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := newFetchClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build fetch client: %w", err)
	}
	builder := catalog.NewBuilder(fetcher, logger)
	notifier := notifications.NewService(cfg)

	opts := []harvest.Option{
		harvest.WithSummarizer(newSummarizePipeline(cfg, logger)),
	}
	closer := func() {}
	if cfg.Runlog.Enabled {
		history, err := runlog.Open(cfg.Runlog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open run history: %w", err)
		}
		opts = append(opts, harvest.WithHistory(history))
		closer = func() { _ = history.Close() }
	}

	return harvest.New(cfg, builder, fetcher, notifier, logger, opts...), closer, nil
}
