package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"podharvest/internal/fileutil"
	"podharvest/internal/services"
)

// FileName is the catalog document name inside a channel directory.
const FileName = "catalog.json"

// Path returns the catalog document path for a channel directory.
func Path(channelDir string) string {
	return filepath.Join(channelDir, FileName)
}

// Load reads a persisted catalog. A missing file returns services.ErrNotFound
// so callers can distinguish first runs from corruption; unparsable or
// structurally invalid documents return services.ErrCorrupted.
func Load(channelDir string) (*Catalog, error) {
	path := Path(channelDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "index", "load", "no catalog at "+path, nil)
		}
		return nil, services.Wrap(services.ErrCorrupted, "index", "load", "read "+path, err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, services.Wrap(services.ErrCorrupted, "index", "load", "parse "+path, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, services.Wrap(services.ErrCorrupted, "index", "load", "validate "+path, err)
	}
	if cat.Items == nil {
		cat.Items = map[string]Item{}
	}
	return &cat, nil
}

// Save persists the catalog atomically (temp file + rename).
func Save(channelDir string, cat *Catalog) error {
	if err := cat.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "index", "save", "refusing to persist invalid catalog", err)
	}
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "index", "save", "encode catalog", err)
	}
	return fileutil.WriteFileAtomic(Path(channelDir), data, 0o644)
}
