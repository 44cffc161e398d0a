package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validatePostprocess(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.Backend != defaultTranscriptionEngine {
		return fmt.Errorf("transcription.backend: unsupported value %q (supported: whisperx)", c.Transcription.Backend)
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method: unsupported value %q", c.Transcription.VADMethod)
	}
	if c.Transcription.MinSpeakers < 0 || c.Transcription.MaxSpeakers < 0 {
		return errors.New("transcription speaker bounds must be >= 0")
	}
	if c.Transcription.MaxSpeakers > 0 && c.Transcription.MinSpeakers > c.Transcription.MaxSpeakers {
		return errors.New("transcription.min_speakers must not exceed transcription.max_speakers")
	}
	return nil
}

func (c *Config) validatePostprocess() error {
	if (c.Postprocess.Correct || c.Postprocess.Summarize) && c.LLM.APIKey == "" {
		return errors.New("llm.api_key must be set when postprocess.correct or postprocess.summarize is enabled (or set OPENROUTER_API_KEY)")
	}
	return nil
}

func (c *Config) validateExport() error {
	if len(c.Export.Formats) == 0 && !c.Export.Drive.Enabled {
		return errors.New("export.formats must include at least one format")
	}
	for _, f := range c.Export.Formats {
		switch f {
		case FormatMarkdown, FormatJSON, FormatText:
		default:
			return fmt.Errorf("export.formats: unsupported value %q", f)
		}
	}
	if c.Export.Drive.Enabled {
		if c.Export.Drive.CredentialsFile == "" {
			return errors.New("export.drive.credentials_file must be set when export.drive.enabled is true")
		}
		if c.Export.Drive.TokenFile == "" {
			return errors.New("export.drive.token_file must be set when export.drive.enabled is true")
		}
	}
	return nil
}

func (c *Config) validateRegistry() error {
	r := c.Registry
	switch r.Backend {
	case RegistryNone, RegistryStore:
	case RegistryDirectory:
		if r.Dir == "" {
			return errors.New("registry.dir must be set for the directory backend")
		}
	case RegistryHTTP:
		if r.URL == "" {
			return errors.New("registry.url must be set for the http backend")
		}
	case RegistryPostgres:
		if r.DSN == "" {
			return errors.New("registry.dsn must be set for the postgres backend (or set BOBBIN_REGISTRY_DSN)")
		}
	case RegistrySupabase:
		if r.SupabaseURL == "" || r.SupabaseKey == "" {
			return errors.New("registry.supabase_url and registry.supabase_key must be set for the supabase backend")
		}
	case RegistryMongo:
		if r.MongoURI == "" {
			return errors.New("registry.mongo_uri must be set for the mongo backend (or set MONGODB_URI)")
		}
	default:
		return fmt.Errorf("registry.backend: unsupported value %q", r.Backend)
	}
	if strings.ContainsAny(r.Table, " ;\"'") || strings.ContainsAny(r.Column, " ;\"'") {
		return errors.New("registry.table and registry.column must be plain identifiers")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"acquisition.download_timeout":  c.Acquisition.DownloadTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"registry.timeout_seconds":      c.Registry.TimeoutSeconds,
		"workflow.stale_scratch_hours":  c.Workflow.StaleScratchHours,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
