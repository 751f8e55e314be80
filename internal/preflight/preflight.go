package preflight

import (
	"context"

	"podharvest/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks run only when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	if anyChannelSummarizes(cfg) {
		results = append(results, CheckLLM(ctx, "Summarization LLM", cfg.GetLLM()))
	}

	return results
}

func anyChannelSummarizes(cfg *config.Config) bool {
	for _, ch := range cfg.Channels {
		if ch.Summarize {
			return true
		}
	}
	return false
}
