package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Channel describes one harvested channel.
type Channel struct {
	Name              string   `toml:"name"`
	URL               string   `toml:"url"`
	CutoffDate        string   `toml:"cutoff_date"`
	ContentType       string   `toml:"content_type"`
	SubtitleLanguages []string `toml:"subtitle_languages"`
	// TranscriptLanguage is the preferred subtitle language for
	// summarization. Defaults to the first subtitle language.
	TranscriptLanguage string `toml:"transcript_language"`
	Summarize          bool   `toml:"summarize"`
	RedownloadDeleted  bool   `toml:"redownload_deleted"`
	// TrustDisk promotes active ledger entries whose media file is missing
	// from disk to redownload. The ledger deleted flag stays authoritative;
	// this is a consistency check only.
	TrustDisk bool `toml:"trust_disk"`
	// MaxItems bounds how many catalog entries the index query requests.
	// Zero means no bound.
	MaxItems int `toml:"max_items"`
}

// CutoffTime parses the channel cutoff date (YYYY-MM-DD).
func (c Channel) CutoffTime() (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(c.CutoffDate))
}

// Harvest contains orchestrator settings.
type Harvest struct {
	Workers             int `toml:"workers"`
	MaxChannels         int `toml:"max_channels"`
	ChannelDelaySeconds int `toml:"channel_delay_seconds"`
	DownloadTimeout     int `toml:"download_timeout"`
	ListTimeout         int `toml:"list_timeout"`
}

// LLM contains connection settings for the language-model endpoint.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	Temperature    float64 `toml:"temperature"`
	ContextLength  int     `toml:"context_length"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Summarize contains transcript pipeline settings.
type Summarize struct {
	ChunkWindowSeconds   int     `toml:"chunk_window_seconds"`
	MaxRetries           int     `toml:"max_retries"`
	RetryDelaySeconds    int     `toml:"retry_delay_seconds"`
	RetryBackoff         float64 `toml:"retry_backoff"`
	RetryMaxDelaySeconds int     `toml:"retry_max_delay_seconds"`
	ChunkInstruction     string  `toml:"chunk_instruction"`
	AggregateInstruction string  `toml:"aggregate_instruction"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	HarvestStart   bool   `toml:"harvest_start"`
	ChannelDone    bool   `toml:"channel_done"`
	Summaries      bool   `toml:"summaries"`
	Errors         bool   `toml:"errors"`
}

// Runlog contains configuration for the SQLite run history.
type Runlog struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podharvest.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Channels: per-channel source, cutoff, and policy settings
//   - Harvest: worker bounds and collaborator timeouts
//   - LLM: language-model connection settings for summarization
//   - Summarize: chunk window, retry policy, and prompt instructions
//   - Notifications: ntfy push notification settings
//   - Runlog: SQLite run history audit log
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Channels      []Channel     `toml:"channels"`
	Harvest       Harvest       `toml:"harvest"`
	LLM           LLM           `toml:"llm"`
	Summarize     Summarize     `toml:"summarize"`
	Notifications Notifications `toml:"notifications"`
	Runlog        Runlog        `toml:"runlog"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podharvest/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/podharvest/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podharvest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for harvest operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the configured log directory.
func (c *Config) LogDir() string {
	return c.Paths.LogDir
}

// ChannelDir returns the state directory for a channel, creating a stable
// filesystem-safe name from the channel name.
func (c *Config) ChannelDir(channelName string) string {
	return filepath.Join(c.Paths.DataDir, SanitizeChannelName(channelName))
}

// LockPath returns the lock file guarding concurrent harvest runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, ".harvest.lock")
}

// ChannelByName returns the channel config with the given name.
func (c *Config) ChannelByName(name string) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}

// YtdlpBinary returns the fetch tool executable name.
func (c *Config) YtdlpBinary() string {
	return "yt-dlp"
}

// SanitizeChannelName maps a channel name to a filesystem-safe directory name.
func SanitizeChannelName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(name))
	return strings.Trim(mapped, "._")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved LLM connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	Temperature    float64
	ContextLength  int
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		Temperature:    c.LLM.Temperature,
		ContextLength:  c.LLM.ContextLength,
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
