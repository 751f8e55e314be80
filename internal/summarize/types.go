package summarize

import "time"

// ChunkSummary is the outcome of summarizing one transcript chunk.
type ChunkSummary struct {
	Number        int    `json:"number"`
	Text          string `json:"text,omitempty"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// FinalSummary is the synthesized summary for one item.
type FinalSummary struct {
	Text            string    `json:"text,omitempty"`
	Language        string    `json:"language,omitempty"`
	ChunksTotal     int       `json:"chunks_total"`
	ChunksSucceeded int       `json:"chunks_succeeded"`
	GeneratedAt     time.Time `json:"generated_at"`
	Complete        bool      `json:"complete"`
	FailureReason   string    `json:"failure_reason,omitempty"`
}

// Metadata records how a summary was produced, for auditability.
type Metadata struct {
	Endpoint        string  `json:"endpoint"`
	Model           string  `json:"model"`
	ChunksTotal     int     `json:"chunks_total"`
	ChunksSucceeded int     `json:"chunks_succeeded"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	ChunkStageOK    bool    `json:"chunk_stage_ok"`
	AggregateOK     bool    `json:"aggregate_ok"`
}

// Result is what one pipeline run produced.
type Result struct {
	Final FinalSummary
	Meta  Metadata
	// Skipped is true when a complete summary already existed.
	Skipped bool
}
