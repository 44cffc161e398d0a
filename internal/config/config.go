package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	ScratchDir string `toml:"scratch_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Acquisition contains settings for downloading and transcoding media.
type Acquisition struct {
	YtDlpBinary     string `toml:"ytdlp_binary"`
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	CookiesFile     string `toml:"cookies_file"`
	DownloadTimeout int    `toml:"download_timeout"`
	UserAgent       string `toml:"user_agent"`
}

// Transcription contains speech-to-text backend settings.
type Transcription struct {
	Backend     string `toml:"backend"`
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	Language    string `toml:"language"`
	Diarize     bool   `toml:"diarize"`
	MinSpeakers int    `toml:"min_speakers"`
	MaxSpeakers int    `toml:"max_speakers"`
}

// LLM contains shared LLM connection settings used by post-processing.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Postprocess toggles the processors that run after transcription.
type Postprocess struct {
	Correct   bool `toml:"correct"`
	Summarize bool `toml:"summarize"`
}

// Drive configures the Google Drive exporter.
type Drive struct {
	Enabled         bool   `toml:"enabled"`
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
	FolderID        string `toml:"folder_id"`
}

// Export selects output formats and destinations.
type Export struct {
	Formats []string `toml:"formats"`
	Drive   Drive    `toml:"drive"`
}

// Registry configures where the set of already transcribed media comes from.
type Registry struct {
	Backend         string `toml:"backend"`
	Dir             string `toml:"dir"`
	URL             string `toml:"url"`
	DSN             string `toml:"dsn"`
	Table           string `toml:"table"`
	Column          string `toml:"column"`
	SupabaseURL     string `toml:"supabase_url"`
	SupabaseKey     string `toml:"supabase_key"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStart       bool   `toml:"run_start"`
	RunComplete    bool   `toml:"run_complete"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for run behaviour.
type Workflow struct {
	KeepScratch       bool `toml:"keep_scratch"`
	StaleScratchHours int  `toml:"stale_scratch_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bobbin.
//
// Configuration sections by subsystem:
//   - Paths: output, scratch, state, and log directories plus API bind address
//   - Acquisition: yt-dlp/ffmpeg binaries and download limits
//   - Transcription: WhisperX model, device, and diarization
//   - LLM / Postprocess: OpenRouter connection and which processors run
//   - Export: output formats and the optional Google Drive upload
//   - Registry: source of already transcribed media for deduplication
//   - Notifications: ntfy push notification settings
//   - Workflow: scratch retention
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Acquisition   Acquisition   `toml:"acquisition"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Postprocess   Postprocess   `toml:"postprocess"`
	Export        Export        `toml:"export"`
	Registry      Registry      `toml:"registry"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// EnsureDirectories creates every configured directory that is set.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.ScratchDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath is the SQLite job queue inside the state directory.
func (c *Config) QueueDBPath() string { return filepath.Join(c.Paths.StateDir, "queue.db") }

// LockPath is the single-instance run lock inside the state directory.
func (c *Config) LockPath() string { return filepath.Join(c.Paths.StateDir, "bobbin.lock") }

// LogFilePath returns the main log file, or "" when no log directory is set.
func (c *Config) LogFilePath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "bobbin.log")
}

// HasFormat reports whether the named export format is enabled.
func (c *Config) HasFormat(name string) bool {
	return slices.Contains(c.Export.Formats, name)
}
