// Package services defines shared utilities consumed by the harvest stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp channel names, video IDs, stage names, and
//     run identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into retryable and terminal families.
//   - Thin abstractions that make command execution from external tools
//     testable.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
