// Package acquisition turns a classified source into a local 16 kHz mono WAV
// ready for transcription. Platform videos are fetched with yt-dlp, remote
// audio over HTTP, local files are copied into the job's scratch directory,
// and everything is transcoded through ffmpeg when needed.
package acquisition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bobbin/internal/config"
	"bobbin/internal/fileutil"
	"bobbin/internal/media/ffmpeg"
	"bobbin/internal/services"
	"bobbin/internal/services/ytdlp"
	"bobbin/internal/source"
)

// AudioAcquisition fetches a source's audio and normalizes its format.
type AudioAcquisition interface {
	FetchLocalAudio(ctx context.Context, src source.Source, workDir string) (string, error)
	TranscodeToStandardFormat(ctx context.Context, path string) (string, error)
}

// Downloader fetches platform media (yt-dlp).
type Downloader interface {
	DownloadAudio(ctx context.Context, url, workDir string) (string, error)
}

// Transcoder converts audio to the standard transcription input.
type Transcoder interface {
	ToStandardWAV(ctx context.Context, path string) (string, error)
}

// Service is the default AudioAcquisition.
type Service struct {
	downloader Downloader
	transcoder Transcoder
	client     *http.Client
	userAgent  string
}

// NewService wires yt-dlp, ffmpeg and an HTTP client from configuration.
func NewService(cfg *config.Config) *Service {
	acq := cfg.Acquisition
	return NewServiceWithDependencies(
		ytdlp.NewService(ytdlp.Config{Binary: acq.YtDlpBinary, CookiesFile: acq.CookiesFile, UserAgent: acq.UserAgent}),
		ffmpeg.NewTranscoder(acq.FFmpegBinary, acq.FFprobeBinary),
		&http.Client{Timeout: time.Duration(acq.DownloadTimeout) * time.Second},
		acq.UserAgent,
	)
}

// NewServiceWithDependencies allows injecting collaborators (used in tests).
func NewServiceWithDependencies(downloader Downloader, transcoder Transcoder, client *http.Client, userAgent string) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{downloader: downloader, transcoder: transcoder, client: client, userAgent: userAgent}
}

// FetchLocalAudio places the source's media inside workDir and returns its path.
func (s *Service) FetchLocalAudio(ctx context.Context, src source.Source, workDir string) (string, error) {
	if src.IsContainer() {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "fetch",
			fmt.Sprintf("%s is a %s, not a single recording", src.Label(), src.Kind), nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "fetch", "ensure work dir", err)
	}

	switch {
	case src.IsLocal:
		return s.copyLocal(src, workDir)
	case src.Kind == source.KindVideo:
		if s.downloader == nil {
			return "", services.Wrap(services.ErrConfiguration, "acquisition", "fetch", "no video downloader configured", nil)
		}
		return s.downloader.DownloadAudio(ctx, src.Locator, workDir)
	default:
		return s.download(ctx, src.Locator, workDir)
	}
}

// TranscodeToStandardFormat converts path to 16 kHz mono PCM WAV if needed.
func (s *Service) TranscodeToStandardFormat(ctx context.Context, path string) (string, error) {
	if s.transcoder == nil {
		return "", services.Wrap(services.ErrConfiguration, "acquisition", "transcode", "no transcoder configured", nil)
	}
	return s.transcoder.ToStandardWAV(ctx, path)
}

func (s *Service) copyLocal(src source.Source, workDir string) (string, error) {
	if _, err := os.Stat(src.Locator); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "copy", src.Locator, err)
	}
	dst := filepath.Join(workDir, "source"+strings.ToLower(filepath.Ext(src.Locator)))
	if err := fileutil.CopyFile(src.Locator, dst); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "copy", src.Locator, err)
	}
	return dst, nil
}

func (s *Service) download(ctx context.Context, locator, workDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", locator, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", locator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download",
			fmt.Sprintf("%s returned %s", locator, resp.Status), nil)
	}

	dst := filepath.Join(workDir, "source"+remoteExtension(locator, resp.Header.Get("Content-Type")))
	tmp, err := os.CreateTemp(workDir, ".download-*")
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", "create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", locator, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", locator, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "download", "finalize "+dst, err)
	}
	return dst, nil
}

var contentTypeExtensions = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/mp4":   ".m4a",
	"audio/x-m4a": ".m4a",
	"audio/aac":   ".aac",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"video/mp4":   ".mp4",
	"video/webm":  ".webm",
}

func remoteExtension(locator, contentType string) string {
	if u, err := url.Parse(locator); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if ext, ok := contentTypeExtensions[mediaType]; ok {
		return ext
	}
	return ".bin"
}
