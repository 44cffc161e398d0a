// Package ytdlp wraps the yt-dlp binary: metadata resolution for platform
// URLs and audio-only downloads.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"bobbin/internal/services"
	"bobbin/internal/source"
)

// DefaultBinary is used when no binary is configured.
const DefaultBinary = "yt-dlp"

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config holds yt-dlp invocation settings.
type Config struct {
	Binary      string
	CookiesFile string
	UserAgent   string
}

// Service resolves and downloads platform media through yt-dlp.
type Service struct {
	cfg Config
	run Runner
}

// NewService creates a yt-dlp service.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	return &Service{cfg: cfg}
}

// WithRunner sets a custom command runner (for testing).
func (s *Service) WithRunner(run Runner) *Service {
	s.run = run
	return s
}

// Binary returns the configured executable name.
func (s *Service) Binary() string {
	return s.cfg.Binary
}

func (s *Service) exec(ctx context.Context, args ...string) ([]byte, error) {
	full := s.commonArgs()
	full = append(full, args...)
	if s.run != nil {
		return s.run(ctx, s.cfg.Binary, full...)
	}
	cmd := exec.CommandContext(ctx, s.cfg.Binary, full...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", s.cfg.Binary, err, lastLine(stderr.String()))
	}
	return out, nil
}

func (s *Service) commonArgs() []string {
	args := []string{"--no-warnings", "--no-progress"}
	if s.cfg.CookiesFile != "" {
		args = append(args, "--cookies", s.cfg.CookiesFile)
	}
	if s.cfg.UserAgent != "" {
		args = append(args, "--user-agent", s.cfg.UserAgent)
	}
	return args
}

// Resolve returns metadata for locator. A single video yields one complete
// entry; a playlist yields one flat entry per item, each carrying the
// playlist title. The call is never retried.
func (s *Service) Resolve(ctx context.Context, locator string) ([]source.Metadata, error) {
	out, err := s.exec(ctx, "-J", "--flat-playlist", "--", locator)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "resolve", locator, err)
	}
	var info infoJSON
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "decode metadata", locator, err)
	}

	if info.Type != "playlist" {
		meta := info.metadata()
		if meta.URL == "" {
			meta.URL = locator
		}
		meta.Complete = true
		return []source.Metadata{meta}, nil
	}

	playlistTitle := strings.TrimSpace(info.Title)
	if playlistTitle == "" {
		playlistTitle = locator
	}
	results := make([]source.Metadata, 0, len(info.Entries))
	for _, entry := range info.Entries {
		meta := entry.metadata()
		meta.PlaylistTitle = playlistTitle
		meta.Complete = false
		results = append(results, meta)
	}
	return results, nil
}

// DownloadAudio fetches the best audio stream of url into workDir and returns
// the downloaded file's path.
func (s *Service) DownloadAudio(ctx context.Context, url, workDir string) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", "ensure work dir", err)
	}
	template := filepath.Join(workDir, "source.%(ext)s")
	out, err := s.exec(ctx,
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "m4a",
		"-o", template,
		"--print", "after_move:filepath",
		"--", url,
	)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", url, err)
	}
	path := lastLine(string(out))
	if path == "" {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download",
			fmt.Sprintf("yt-dlp reported no output file for %s", url), nil)
	}
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", url, err)
	}
	return path, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
