// Package ytdlp wraps the yt-dlp command line tool for listing channel
// contents and fetching items with their sidecar files.
package ytdlp
