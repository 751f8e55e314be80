package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Channel problems are rejected
// here, before any catalog or fetch work begins.
func (c *Config) Validate() error {
	if err := c.validateChannels(); err != nil {
		return err
	}
	if err := c.validateHarvest(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSummarize(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateChannels() error {
	seen := make(map[string]struct{}, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d].name must be set", i)
		}
		if SanitizeChannelName(ch.Name) == "" {
			return fmt.Errorf("channels[%d].name %q has no filesystem-safe characters", i, ch.Name)
		}
		if _, dup := seen[ch.Name]; dup {
			return fmt.Errorf("duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = struct{}{}
		if ch.URL == "" {
			return fmt.Errorf("channel %q: url must be set", ch.Name)
		}
		if ch.CutoffDate == "" {
			return fmt.Errorf("channel %q: cutoff_date must be set (YYYY-MM-DD)", ch.Name)
		}
		if _, err := ch.CutoffTime(); err != nil {
			return fmt.Errorf("channel %q: cutoff_date %q is not YYYY-MM-DD", ch.Name, ch.CutoffDate)
		}
		switch ch.ContentType {
		case "audio", "video":
		default:
			return fmt.Errorf("channel %q: content_type must be audio or video, got %q", ch.Name, ch.ContentType)
		}
	}
	return nil
}

func (c *Config) validateHarvest() error {
	if c.Harvest.Workers <= 0 {
		return errors.New("harvest.workers must be positive")
	}
	if c.Harvest.DownloadTimeout <= 0 {
		return errors.New("harvest.download_timeout must be positive (seconds)")
	}
	if c.Harvest.ListTimeout <= 0 {
		return errors.New("harvest.list_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.anyChannelSummarizes() {
		return nil
	}
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/podharvest/config.toml"
		}
		return fmt.Errorf("llm.api_key is required when a channel enables summarize. Set OPENROUTER_API_KEY env var or edit %s (create with 'podharvest config init')", defaultPath)
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateSummarize() error {
	if c.Summarize.ChunkWindowSeconds <= 0 {
		return errors.New("summarize.chunk_window_seconds must be positive")
	}
	if c.Summarize.MaxRetries < 0 {
		return errors.New("summarize.max_retries must be >= 0")
	}
	if c.Summarize.RetryBackoff < 1 {
		return errors.New("summarize.retry_backoff must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) anyChannelSummarizes() bool {
	for _, ch := range c.Channels {
		if ch.Summarize {
			return true
		}
	}
	return false
}
