package harvest

import "time"

// ChannelReport is the outcome of processing one channel.
type ChannelReport struct {
	Channel      string
	Fetched      int
	Skipped      int
	Redownloaded int
	Failed       int
	Summarized   int
	// Err is set when the channel as a whole failed (ledger corruption,
	// listing failure). Item-level failures only increment Failed.
	Err error
}

// Report is the outcome of one harvest run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Channels   []ChannelReport
}

// TotalFetched sums fetched and redownloaded items across channels.
func (r *Report) TotalFetched() int {
	total := 0
	for _, ch := range r.Channels {
		total += ch.Fetched + ch.Redownloaded
	}
	return total
}

// TotalFailed sums item failures across channels.
func (r *Report) TotalFailed() int {
	total := 0
	for _, ch := range r.Channels {
		total += ch.Failed
	}
	return total
}

// FailedChannels counts channels that failed as a whole.
func (r *Report) FailedChannels() int {
	total := 0
	for _, ch := range r.Channels {
		if ch.Err != nil {
			total++
		}
	}
	return total
}
