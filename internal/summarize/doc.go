// Package summarize turns downloaded transcripts into hierarchical summaries:
// per-chunk model calls followed by one aggregation pass, with every stage
// persisted for later inspection.
package summarize
