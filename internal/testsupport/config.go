package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bobbin/internal/config"
)

// DefaultStubs are the external tools WithStubbedBinaries fakes when called
// without names.
var DefaultStubs = []string{"yt-dlp", "ffmpeg", "ffprobe", "uvx"}

// ConfigOption adjusts a test configuration after its directories are laid
// out under base.
type ConfigOption func(t testing.TB, cfg *config.Config, base string)

// NewConfig returns defaults rooted in a fresh temp directory. The registry,
// notifications and post-processing are off so tests stay offline unless an
// option enables them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Registry.Backend = config.RegistryNone
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(t, &cfg, base)
	}
	return &cfg
}

// BaseDir returns the temp directory a NewConfig result lives under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}

func WithRegistry(backend string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config, _ string) {
		cfg.Registry.Backend = backend
	}
}

func WithFormats(formats ...string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config, _ string) {
		cfg.Export.Formats = append([]string(nil), formats...)
	}
}

// WithLLM turns on correction and summarization against baseURL.
func WithLLM(baseURL, apiKey string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config, _ string) {
		cfg.LLM.BaseURL = baseURL
		cfg.LLM.APIKey = apiKey
		cfg.Postprocess.Correct = true
		cfg.Postprocess.Summarize = true
	}
}

// WithStubbedBinaries puts exit-0 shell scripts for names (DefaultStubs when
// empty) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, _ *config.Config, base string) {
		if len(names) == 0 {
			names = DefaultStubs
		}
		bin := filepath.Join(base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir stub dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", strings.Join([]string{bin, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}
