// Package config loads, normalizes, and validates the TOML configuration that
// drives harvest runs. Load applies repository defaults, decodes the file,
// expands ~ paths, fills env-var fallbacks, and rejects malformed channel
// definitions before any catalog or fetch work can start.
package config
