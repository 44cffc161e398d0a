package config

const (
	defaultConfigPath          = "~/.config/bobbin/config.toml"
	defaultOutputDir           = "~/transcripts"
	defaultScratchDir          = "~/.local/share/bobbin/scratch"
	defaultStateDir            = "~/.local/share/bobbin"
	defaultLogDir              = "~/.local/share/bobbin/logs"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultYtDlpBinary         = "yt-dlp"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultDownloadTimeout     = 1800
	defaultUserAgent           = "bobbin/dev"
	defaultTranscriptionModel  = "large-v3"
	defaultVADMethod           = "silero"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMTitle            = "bobbin"
	defaultLLMTimeoutSeconds   = 120
	defaultRegistryBackend     = "store"
	defaultRegistryTable       = "transcripts"
	defaultRegistryColumn      = "media"
	defaultMongoDatabase       = "bobbin"
	defaultMongoCollection     = "transcripts"
	defaultRegistryTimeout     = 30
	defaultNotifyTimeout       = 10
	defaultStaleScratchHours   = 24
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTranscriptionEngine = "whisperx"
)

// Export format names.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)

// Registry backend names.
const (
	RegistryNone      = "none"
	RegistryStore     = "store"
	RegistryDirectory = "directory"
	RegistryHTTP      = "http"
	RegistryPostgres  = "postgres"
	RegistrySupabase  = "supabase"
	RegistryMongo     = "mongo"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			ScratchDir: defaultScratchDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Acquisition: Acquisition{
			YtDlpBinary:     defaultYtDlpBinary,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			DownloadTimeout: defaultDownloadTimeout,
			UserAgent:       defaultUserAgent,
		},
		Transcription: Transcription{
			Backend:   defaultTranscriptionEngine,
			Model:     defaultTranscriptionModel,
			VADMethod: defaultVADMethod,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Export: Export{
			Formats: []string{FormatMarkdown, FormatJSON, FormatText},
		},
		Registry: Registry{
			Backend:         defaultRegistryBackend,
			Table:           defaultRegistryTable,
			Column:          defaultRegistryColumn,
			MongoDatabase:   defaultMongoDatabase,
			MongoCollection: defaultMongoCollection,
			TimeoutSeconds:  defaultRegistryTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunStart:       true,
			RunComplete:    true,
			Errors:         true,
		},
		Workflow: Workflow{
			StaleScratchHours: defaultStaleScratchHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
