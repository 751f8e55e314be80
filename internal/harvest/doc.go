// Package harvest drives the per-channel pipeline: index the channel,
// classify every item against the download ledger, fetch what is missing,
// and optionally summarize transcripts.
package harvest
