package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAcquisition(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeLLM()
	if err := c.normalizeExport(); err != nil {
		return err
	}
	if err := c.normalizeRegistry(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = envValue("BOBBIN_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeAcquisition() error {
	c.Acquisition.YtDlpBinary = orDefault(c.Acquisition.YtDlpBinary, defaultYtDlpBinary)
	c.Acquisition.FFmpegBinary = orDefault(c.Acquisition.FFmpegBinary, defaultFFmpegBinary)
	c.Acquisition.FFprobeBinary = orDefault(c.Acquisition.FFprobeBinary, defaultFFprobeBinary)
	c.Acquisition.UserAgent = orDefault(c.Acquisition.UserAgent, defaultUserAgent)
	if c.Acquisition.DownloadTimeout <= 0 {
		c.Acquisition.DownloadTimeout = defaultDownloadTimeout
	}
	if strings.TrimSpace(c.Acquisition.CookiesFile) != "" {
		var err error
		if c.Acquisition.CookiesFile, err = expandPath(c.Acquisition.CookiesFile); err != nil {
			return fmt.Errorf("acquisition.cookies_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Backend = strings.ToLower(orDefault(c.Transcription.Backend, defaultTranscriptionEngine))
	c.Transcription.Model = orDefault(c.Transcription.Model, defaultTranscriptionModel)
	c.Transcription.VADMethod = strings.ToLower(orDefault(c.Transcription.VADMethod, defaultVADMethod))
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		if value := envValue("HUGGING_FACE_HUB_TOKEN"); value != "" {
			c.Transcription.HFToken = value
		} else {
			c.Transcription.HFToken = envValue("HF_TOKEN")
		}
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = orDefault(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = orDefault(c.LLM.Model, defaultLLMModel)
	c.LLM.Title = orDefault(c.LLM.Title, defaultLLMTitle)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = envValue("OPENROUTER_API_KEY")
	}
}

func (c *Config) normalizeExport() error {
	formats := make([]string, 0, len(c.Export.Formats))
	seen := make(map[string]struct{}, len(c.Export.Formats))
	for _, f := range c.Export.Formats {
		normalized := strings.ToLower(strings.TrimSpace(f))
		if normalized == "md" {
			normalized = FormatMarkdown
		}
		if normalized == "txt" {
			normalized = FormatText
		}
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	c.Export.Formats = formats

	var err error
	drive := &c.Export.Drive
	if drive.CredentialsFile, err = expandPath(strings.TrimSpace(drive.CredentialsFile)); err != nil {
		return fmt.Errorf("export.drive.credentials_file: %w", err)
	}
	if drive.TokenFile, err = expandPath(strings.TrimSpace(drive.TokenFile)); err != nil {
		return fmt.Errorf("export.drive.token_file: %w", err)
	}
	drive.FolderID = strings.TrimSpace(drive.FolderID)
	return nil
}

func (c *Config) normalizeRegistry() error {
	r := &c.Registry
	r.Backend = strings.ToLower(orDefault(r.Backend, defaultRegistryBackend))
	r.Table = orDefault(r.Table, defaultRegistryTable)
	r.Column = orDefault(r.Column, defaultRegistryColumn)
	r.MongoDatabase = orDefault(r.MongoDatabase, defaultMongoDatabase)
	r.MongoCollection = orDefault(r.MongoCollection, defaultMongoCollection)
	r.URL = strings.TrimSpace(r.URL)
	if r.TimeoutSeconds <= 0 {
		r.TimeoutSeconds = defaultRegistryTimeout
	}
	r.DSN = strings.TrimSpace(r.DSN)
	if r.DSN == "" {
		r.DSN = envValue("BOBBIN_REGISTRY_DSN")
	}
	r.SupabaseURL = strings.TrimSpace(r.SupabaseURL)
	if r.SupabaseURL == "" {
		r.SupabaseURL = envValue("SUPABASE_URL")
	}
	r.SupabaseKey = strings.TrimSpace(r.SupabaseKey)
	if r.SupabaseKey == "" {
		r.SupabaseKey = envValue("SUPABASE_KEY")
	}
	r.MongoURI = strings.TrimSpace(r.MongoURI)
	if r.MongoURI == "" {
		r.MongoURI = envValue("MONGODB_URI")
	}
	if strings.TrimSpace(r.Dir) != "" {
		var err error
		if r.Dir, err = expandPath(r.Dir); err != nil {
			return fmt.Errorf("registry.dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func envValue(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
