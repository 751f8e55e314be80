package summarize

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"podharvest/internal/fileutil"
	"podharvest/internal/transcript"
)

// DirName is the per-item summary output directory.
const DirName = "summary"

const (
	chunksFile         = "chunks.json"
	chunkSummariesFile = "chunk_summaries.json"
	summaryFile        = "summary.json"
)

// chunkDoc is the persisted form of a transcript chunk.
type chunkDoc struct {
	Number       int     `json:"number"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
}

// summaryDoc pairs the final summary with its processing metadata.
type summaryDoc struct {
	Summary  FinalSummary `json:"summary"`
	Metadata Metadata     `json:"metadata"`
}

func summaryDir(itemDir string) string {
	return filepath.Join(itemDir, DirName)
}

// SummaryPath returns the summary document path for an item directory.
func SummaryPath(itemDir string) string {
	return filepath.Join(summaryDir(itemDir), summaryFile)
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

func saveChunks(itemDir string, chunks []transcript.Chunk) error {
	docs := make([]chunkDoc, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, chunkDoc{
			Number:       chunk.Number,
			StartSeconds: chunk.Start.Seconds(),
			EndSeconds:   chunk.End.Seconds(),
			Text:         chunk.Text,
		})
	}
	return saveJSON(filepath.Join(summaryDir(itemDir), chunksFile), docs)
}

func saveChunkSummaries(itemDir string, summaries []ChunkSummary) error {
	return saveJSON(filepath.Join(summaryDir(itemDir), chunkSummariesFile), summaries)
}

func saveSummary(itemDir string, final FinalSummary, meta Metadata) error {
	return saveJSON(SummaryPath(itemDir), summaryDoc{Summary: final, Metadata: meta})
}

// LoadSummary reads a previously persisted summary document. A missing file
// returns ok=false without an error.
func LoadSummary(itemDir string) (FinalSummary, Metadata, bool, error) {
	data, err := os.ReadFile(SummaryPath(itemDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FinalSummary{}, Metadata{}, false, nil
		}
		return FinalSummary{}, Metadata{}, false, err
	}
	var doc summaryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		// Unreadable summaries are regenerated rather than failing the item.
		return FinalSummary{}, Metadata{}, false, nil
	}
	return doc.Summary, doc.Metadata, true, nil
}

// LoadChunkSummaries reads persisted per-chunk results, if any.
func LoadChunkSummaries(itemDir string) ([]ChunkSummary, error) {
	data, err := os.ReadFile(filepath.Join(summaryDir(itemDir), chunkSummariesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var summaries []ChunkSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}
