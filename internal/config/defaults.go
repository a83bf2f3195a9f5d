package config

const (
	defaultDataDir             = "~/.local/share/kthgpt"
	defaultStorageDir          = "~/.local/share/kthgpt/lectures"
	defaultLogDir              = "~/.local/share/kthgpt/logs"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "openai/gpt-4o-mini"
	defaultLLMReferer          = "https://github.com/kthgpt/kthgpt"
	defaultLLMTitle            = "kthgpt"
	defaultLLMTimeoutSeconds   = 120
	defaultQueryTimeToLive     = 60
	defaultQueryMaxRetries     = 2
	defaultSummaryTimeToLive   = 600
	defaultSummaryMaxRetries   = 3
	defaultChunkWords          = 1500
	defaultSummaryWords        = 150
	defaultOverviewWords       = 250
	defaultPlaybackURLTemplate = "https://play.kth.se/media/{public_id}"
	defaultUserAgent           = "kthgpt/dev"
	defaultManifestTimeout     = 30
	defaultDownloadTimeout     = 1200
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultTranscribeTimeout   = 7200
	defaultDispatchBackend     = "sqlite"
	defaultRedisAddr           = "127.0.0.1:6379"
	defaultRedisQueue          = "kthgpt:jobs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
)

var (
	defaultQueryRetryIntervals   = []int{10, 20}
	defaultSummaryRetryIntervals = []int{10, 30, 60}
	defaultTranscribeCommand     = []string{"whisper-transcribe", "--format", "text", "{input}"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Query: Query{
			TimeToLive:     defaultQueryTimeToLive,
			MaxRetries:     defaultQueryMaxRetries,
			RetryIntervals: append([]int(nil), defaultQueryRetryIntervals...),
		},
		Summary: Summary{
			TimeToLive:     defaultSummaryTimeToLive,
			MaxRetries:     defaultSummaryMaxRetries,
			RetryIntervals: append([]int(nil), defaultSummaryRetryIntervals...),
			ChunkWords:     defaultChunkWords,
			SummaryWords:   defaultSummaryWords,
			OverviewWords:  defaultOverviewWords,
		},
		Media: Media{
			PlaybackURLTemplate: defaultPlaybackURLTemplate,
			UserAgent:           defaultUserAgent,
			ManifestTimeout:     defaultManifestTimeout,
			DownloadTimeout:     defaultDownloadTimeout,
			FFmpegBinary:        defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
		},
		Transcription: Transcription{
			Command: append([]string(nil), defaultTranscribeCommand...),
			Timeout: defaultTranscribeTimeout,
		},
		Dispatch: Dispatch{
			Backend:    defaultDispatchBackend,
			RedisAddr:  defaultRedisAddr,
			RedisQueue: defaultRedisQueue,
		},
		Workflow: Workflow{
			PollInterval:       5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
