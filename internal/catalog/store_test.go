package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podharvest/internal/services"
)

func sampleCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat := New("techtalks", "https://example.com/channel", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	cat.RecordCutoff("2024-01-01")
	cat.Upsert(Item{ID: "new1", Title: "January Episode", PublishDate: "20240105", DurationSeconds: 700, URL: "https://example.com/new1"})
	cat.Upsert(Item{ID: "new2", Title: "February Episode", PublishDate: "20240210", DurationSeconds: 800, URL: "https://example.com/new2"})
	cat.Finalize(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	return cat
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cat := sampleCatalog(t)

	if err := Save(dir, cat); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.TotalItems != 2 || loaded.Channel != "techtalks" {
		t.Fatalf("unexpected loaded catalog: %+v", loaded)
	}
	if len(loaded.Order) != 2 || loaded.Order[0] != "new1" {
		t.Fatalf("iteration order not preserved: %v", loaded.Order)
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestLoadCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("not json at all"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := Load(dir)
	if !services.IsCorrupted(err) {
		t.Fatalf("expected corruption error, got %v", err)
	}
}

func TestLoadRejectsBrokenInvariants(t *testing.T) {
	dir := t.TempDir()
	doc := `{"channel":"techtalks","items":{"a":{"id":"a"}},"order":["a","b"]}`
	if err := os.WriteFile(Path(dir), []byte(doc), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := Load(dir)
	if !services.IsCorrupted(err) {
		t.Fatalf("expected corruption error, got %v", err)
	}
}

func TestSaveRefusesInvalidCatalog(t *testing.T) {
	cat := sampleCatalog(t)
	cat.Order = append(cat.Order, "ghost")
	err := Save(t.TempDir(), cat)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, sampleCatalog(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != FileName && strings.HasPrefix(entry.Name(), ".") {
			t.Fatalf("leftover temp file %s", filepath.Join(dir, entry.Name()))
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected only %s, found %d entries", FileName, len(entries))
	}
}
