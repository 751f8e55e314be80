package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeChannels()
	c.normalizeHarvest()
	c.normalizeLLM()
	c.normalizeSummarize()
	c.normalizeNotifications()
	if err := c.normalizeRunlog(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeChannels() {
	for i := range c.Channels {
		ch := &c.Channels[i]
		ch.Name = strings.TrimSpace(ch.Name)
		ch.URL = strings.TrimSpace(ch.URL)
		ch.CutoffDate = strings.TrimSpace(ch.CutoffDate)
		ch.ContentType = strings.ToLower(strings.TrimSpace(ch.ContentType))
		if ch.ContentType == "" {
			ch.ContentType = defaultContentType
		}
		ch.SubtitleLanguages = normalizeLanguages(ch.SubtitleLanguages)
		ch.TranscriptLanguage = strings.ToLower(strings.TrimSpace(ch.TranscriptLanguage))
		if ch.TranscriptLanguage == "" {
			ch.TranscriptLanguage = ch.SubtitleLanguages[0]
		}
		if ch.MaxItems < 0 {
			ch.MaxItems = 0
		}
	}
}

func normalizeLanguages(langs []string) []string {
	out := make([]string, 0, len(langs))
	seen := make(map[string]struct{}, len(langs))
	for _, lang := range langs {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		out = []string{"en"}
	}
	return out
}

func (c *Config) normalizeHarvest() {
	if c.Harvest.Workers <= 0 {
		c.Harvest.Workers = defaultHarvestWorkers
	}
	if c.Harvest.MaxChannels < 0 {
		c.Harvest.MaxChannels = 0
	}
	if c.Harvest.ChannelDelaySeconds < 0 {
		c.Harvest.ChannelDelaySeconds = 0
	}
	if c.Harvest.DownloadTimeout <= 0 {
		c.Harvest.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Harvest.ListTimeout <= 0 {
		c.Harvest.ListTimeout = defaultListTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("PODHARVEST_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = defaultLLMTemperature
	}
	if c.LLM.ContextLength <= 0 {
		c.LLM.ContextLength = defaultLLMContextLength
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeSummarize() {
	if c.Summarize.ChunkWindowSeconds <= 0 {
		c.Summarize.ChunkWindowSeconds = defaultChunkWindowSeconds
	}
	if c.Summarize.MaxRetries < 0 {
		c.Summarize.MaxRetries = defaultSummarizeMaxRetries
	}
	if c.Summarize.RetryDelaySeconds < 0 {
		c.Summarize.RetryDelaySeconds = defaultRetryDelaySeconds
	}
	if c.Summarize.RetryBackoff == 0 {
		c.Summarize.RetryBackoff = defaultRetryBackoff
	}
	if c.Summarize.RetryMaxDelaySeconds <= 0 {
		c.Summarize.RetryMaxDelaySeconds = defaultRetryMaxDelaySeconds
	}
	if strings.TrimSpace(c.Summarize.ChunkInstruction) == "" {
		c.Summarize.ChunkInstruction = defaultChunkInstruction
	}
	if strings.TrimSpace(c.Summarize.AggregateInstruction) == "" {
		c.Summarize.AggregateInstruction = defaultAggregateInstruction
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeRunlog() error {
	var err error
	if strings.TrimSpace(c.Runlog.Path) == "" {
		c.Runlog.Path = defaultRunlogPath
	}
	if c.Runlog.Path, err = expandPath(c.Runlog.Path); err != nil {
		return fmt.Errorf("runlog.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
