// Package manifest defines the file manifest shared between the fetch client,
// the download ledger, and the summarization pipeline. Paths are always
// relative to the owning channel directory so state stays relocatable.
package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Roles for single-file manifest slots.
const (
	RoleMedia       = "media"
	RoleMetadata    = "metadata"
	RoleDescription = "description"
)

// Manifest maps file roles to channel-relative paths for one fetched item.
type Manifest struct {
	Media       string   `json:"media,omitempty"`
	Metadata    string   `json:"metadata,omitempty"`
	Description string   `json:"description,omitempty"`
	Thumbnails  []string `json:"thumbnails,omitempty"`
	Subtitles   []string `json:"subtitles,omitempty"`
}

// IsEmpty reports whether the manifest records no files at all.
func (m Manifest) IsEmpty() bool {
	return m.Media == "" && m.Metadata == "" && m.Description == "" &&
		len(m.Thumbnails) == 0 && len(m.Subtitles) == 0
}

// Validate rejects manifests with absolute or escaping paths.
func (m Manifest) Validate() error {
	for role, path := range m.singleRoles() {
		if path == "" {
			continue
		}
		if err := validatePath(role, path); err != nil {
			return err
		}
	}
	for i, path := range m.Thumbnails {
		if err := validatePath(fmt.Sprintf("thumbnails[%d]", i), path); err != nil {
			return err
		}
	}
	for i, path := range m.Subtitles {
		if err := validatePath(fmt.Sprintf("subtitles[%d]", i), path); err != nil {
			return err
		}
	}
	return nil
}

// AllPaths returns every recorded path, single roles first, lists sorted.
func (m Manifest) AllPaths() []string {
	paths := make([]string, 0, 3+len(m.Thumbnails)+len(m.Subtitles))
	for _, p := range []string{m.Media, m.Metadata, m.Description} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	thumbs := append([]string(nil), m.Thumbnails...)
	sort.Strings(thumbs)
	paths = append(paths, thumbs...)
	subs := append([]string(nil), m.Subtitles...)
	sort.Strings(subs)
	paths = append(paths, subs...)
	return paths
}

// SubtitleForLanguage returns the subtitle path whose filename carries the
// given language code (item.<lang>.srt), or "" when absent.
func (m Manifest) SubtitleForLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return ""
	}
	suffix := "." + lang + ".srt"
	for _, path := range m.Subtitles {
		if strings.HasSuffix(strings.ToLower(path), suffix) {
			return path
		}
	}
	return ""
}

func (m Manifest) singleRoles() map[string]string {
	return map[string]string{
		RoleMedia:       m.Media,
		RoleMetadata:    m.Metadata,
		RoleDescription: m.Description,
	}
}

func validatePath(role, path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("manifest %s: path %q must be relative", role, path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("manifest %s: path %q escapes the channel directory", role, path)
	}
	return nil
}
