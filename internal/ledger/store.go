package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"podharvest/internal/fileutil"
	"podharvest/internal/services"
)

// FileName is the ledger document name inside a channel directory.
const FileName = "ledger.json"

// Path returns the ledger document path for a channel directory.
func Path(channelDir string) string {
	return filepath.Join(channelDir, FileName)
}

// Load reads a persisted ledger. A missing file returns services.ErrNotFound.
// Unlike the catalog, a corrupt ledger has no authoritative source to rebuild
// from, so corruption must fail closed for the channel.
func Load(channelDir string) (*Ledger, error) {
	path := Path(channelDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "ledger", "load", "no ledger at "+path, nil)
		}
		return nil, services.Wrap(services.ErrCorrupted, "ledger", "load", "read "+path, err)
	}
	var led Ledger
	if err := json.Unmarshal(data, &led); err != nil {
		return nil, services.Wrap(services.ErrCorrupted, "ledger", "load", "parse "+path, err)
	}
	if strings.TrimSpace(led.Channel) == "" {
		return nil, services.Wrap(services.ErrCorrupted, "ledger", "load", "ledger missing channel name", nil)
	}
	if led.Entries == nil {
		led.Entries = map[string]Entry{}
	}
	led.channelDir = channelDir
	led.recomputeStats()
	return &led, nil
}

// LoadOrCreate loads the channel ledger, creating an empty one on first run.
// Corruption is returned as-is so callers fail closed.
func LoadOrCreate(channel, channelDir string) (*Ledger, error) {
	led, err := Load(channelDir)
	if err == nil {
		return led, nil
	}
	if services.IsNotFound(err) {
		return New(channel, channelDir), nil
	}
	return nil, err
}

// Save persists the ledger atomically (temp file + rename) so a crash
// mid-write never leaves a truncated document.
func Save(channelDir string, led *Ledger) error {
	if strings.TrimSpace(led.Channel) == "" {
		return services.Wrap(services.ErrValidation, "ledger", "save", "refusing to persist ledger without channel name", nil)
	}
	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "ledger", "save", "encode ledger", err)
	}
	return fileutil.WriteFileAtomic(Path(channelDir), data, 0o644)
}
