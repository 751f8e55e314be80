package config

const (
	defaultDataDir              = "~/.local/share/podharvest/channels"
	defaultLogDir               = "~/.local/share/podharvest/logs"
	defaultRunlogPath           = "~/.local/share/podharvest/runlog.db"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultContentType          = "audio"
	defaultHarvestWorkers       = 1
	defaultChannelDelaySeconds  = 3
	defaultDownloadTimeout      = 1800
	defaultListTimeout          = 300
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-2.5-flash"
	defaultLLMReferer           = "https://github.com/podharvest/podharvest"
	defaultLLMTitle             = "PodHarvest Summarizer"
	defaultLLMTemperature       = 0.3
	defaultLLMContextLength     = 32000
	defaultLLMTimeoutSeconds    = 120
	defaultChunkWindowSeconds   = 300
	defaultSummarizeMaxRetries  = 3
	defaultRetryDelaySeconds    = 2
	defaultRetryBackoff         = 2.0
	defaultRetryMaxDelaySeconds = 10
	defaultNotifyRequestTimeout = 10

	defaultChunkInstruction = "You are summarizing one segment of a long audio transcript. " +
		"Write a concise summary of the key points, names, and claims in this segment. " +
		"Do not editorialize or add information that is not in the text."

	defaultAggregateInstruction = "You are combining segment summaries of one episode into a single " +
		"coherent summary. Preserve chronology, merge duplicate points, and note any gaps where " +
		"segments are marked unavailable."
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Harvest: Harvest{
			Workers:             defaultHarvestWorkers,
			ChannelDelaySeconds: defaultChannelDelaySeconds,
			DownloadTimeout:     defaultDownloadTimeout,
			ListTimeout:         defaultListTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			Temperature:    defaultLLMTemperature,
			ContextLength:  defaultLLMContextLength,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Summarize: Summarize{
			ChunkWindowSeconds:   defaultChunkWindowSeconds,
			MaxRetries:           defaultSummarizeMaxRetries,
			RetryDelaySeconds:    defaultRetryDelaySeconds,
			RetryBackoff:         defaultRetryBackoff,
			RetryMaxDelaySeconds: defaultRetryMaxDelaySeconds,
			ChunkInstruction:     defaultChunkInstruction,
			AggregateInstruction: defaultAggregateInstruction,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			HarvestStart:   true,
			ChannelDone:    true,
			Summaries:      true,
			Errors:         true,
		},
		Runlog: Runlog{
			Enabled: true,
			Path:    defaultRunlogPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
