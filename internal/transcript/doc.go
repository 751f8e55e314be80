// Package transcript parses SubRip subtitle files and splits the cues into
// fixed-duration chunks for summarization.
package transcript
