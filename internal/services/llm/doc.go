// Package llm implements the summary client: a thin wrapper over an
// OpenAI-compatible chat completions endpoint. Complete issues exactly one
// request and classifies failures into timeout, connection, server, and
// client kinds; callers compose it with the retry package for bounded
// retries.
package llm
