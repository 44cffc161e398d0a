package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bobbin/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("HF_TOKEN", "env-hf")
	t.Setenv("HUGGING_FACE_HUB_TOKEN", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantScratch := filepath.Join(tempHome, ".local", "share", "bobbin", "scratch")
	if cfg.Paths.ScratchDir != wantScratch {
		t.Fatalf("unexpected scratch dir: got %q want %q", cfg.Paths.ScratchDir, wantScratch)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "transcripts") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Transcription.HFToken != "env-hf" {
		t.Fatalf("expected HF token from env, got %q", cfg.Transcription.HFToken)
	}
	if cfg.Registry.Backend != config.RegistryStore {
		t.Fatalf("unexpected registry backend %q", cfg.Registry.Backend)
	}
	if len(cfg.Export.Formats) != 3 {
		t.Fatalf("expected three default formats, got %v", cfg.Export.Formats)
	}
	if cfg.Workflow.KeepScratch {
		t.Fatal("expected scratch cleanup by default")
	}
	if cfg.QueueDBPath() != filepath.Join(tempHome, ".local", "share", "bobbin", "queue.db") {
		t.Fatalf("unexpected queue path %q", cfg.QueueDBPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.ScratchDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "bobbin.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Export struct {
			Formats []string `toml:"formats"`
		} `toml:"export"`
		Registry struct {
			Backend string `toml:"backend"`
			Dir     string `toml:"dir"`
		} `toml:"registry"`
		Workflow struct {
			KeepScratch bool `toml:"keep_scratch"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Export.Formats = []string{" MD ", "txt", "markdown"}
	custom.Registry.Backend = "Directory"
	custom.Registry.Dir = filepath.Join(tempDir, "site")
	custom.Workflow.KeepScratch = true
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if strings.Join(cfg.Export.Formats, ",") != "markdown,text" {
		t.Fatalf("expected normalized formats, got %v", cfg.Export.Formats)
	}
	if !cfg.HasFormat(config.FormatText) || cfg.HasFormat(config.FormatJSON) {
		t.Fatalf("unexpected HasFormat results for %v", cfg.Export.Formats)
	}
	if cfg.Registry.Backend != config.RegistryDirectory {
		t.Fatalf("expected lowercased backend, got %q", cfg.Registry.Backend)
	}
	if !cfg.Workflow.KeepScratch {
		t.Fatal("expected keep_scratch from file")
	}
}

func TestEnvFallbacksFillMissingSecrets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "env-llm")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_KEY", "service-key")

	configPath := filepath.Join(t.TempDir(), "bobbin.toml")
	contents := "[registry]\nbackend = \"supabase\"\n\n[llm]\napi_key = \"file-llm\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "file-llm" {
		t.Fatalf("expected file value to win, got %q", cfg.LLM.APIKey)
	}
	if cfg.Registry.SupabaseURL != "https://project.supabase.co" || cfg.Registry.SupabaseKey != "service-key" {
		t.Fatalf("expected supabase settings from env, got %+v", cfg.Registry)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_openrouter_api_key_here") {
		t.Fatalf("sample config missing placeholder key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.ScratchDir, "bobbin") {
		t.Fatalf("expected scratch dir to contain bobbin, got %q", cfg.Paths.ScratchDir)
	}
	if cfg.Registry.Backend != config.RegistryStore {
		t.Fatalf("unexpected sample registry backend %q", cfg.Registry.Backend)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown registry", func(c *config.Config) { c.Registry.Backend = "redis" }},
		{"directory without dir", func(c *config.Config) { c.Registry.Backend = config.RegistryDirectory }},
		{"postgres without dsn", func(c *config.Config) { c.Registry.Backend = config.RegistryPostgres }},
		{"unknown format", func(c *config.Config) { c.Export.Formats = []string{"docx"} }},
		{"no formats", func(c *config.Config) { c.Export.Formats = nil }},
		{"drive without credentials", func(c *config.Config) { c.Export.Drive.Enabled = true }},
		{"summarize without key", func(c *config.Config) { c.Postprocess.Summarize = true }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"speaker bounds", func(c *config.Config) {
			c.Transcription.MinSpeakers = 4
			c.Transcription.MaxSpeakers = 2
		}},
		{"zero timeout", func(c *config.Config) { c.Acquisition.DownloadTimeout = 0 }},
		{"sql identifier", func(c *config.Config) { c.Registry.Table = "x; drop table y" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
