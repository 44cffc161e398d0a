package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"bobbin/internal/config"
	"bobbin/internal/services/llm"
)

const llmProbeTimeout = 30 * time.Second

// CheckLLM sends one health-check completion with retries disabled.
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return fail(name, "API key missing")
	}
	probeCtx, cancel := context.WithTimeout(ctx, llmProbeTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(probeCtx); err != nil {
		return fail(name, describeLLMFailure(err))
	}
	return pass(name, "API reachable")
}

// CheckDirectoryAccess requires path to be a directory the process can list,
// create files in and traverse.
func CheckDirectoryAccess(name, path string) Result {
	if problem := inspect(path, true, unix.R_OK|unix.W_OK|unix.X_OK); problem != "" {
		return fail(name, fmt.Sprintf("%s (error: %s)", path, problem))
	}
	return pass(name, path+" (read/write ok)")
}

// CheckReadableFile requires path to be a readable regular file.
func CheckReadableFile(name, path string) Result {
	if path == "" {
		return fail(name, "path not configured")
	}
	if problem := inspect(path, false, unix.R_OK); problem != "" {
		return fail(name, fmt.Sprintf("%s (error: %s)", path, problem))
	}
	return pass(name, path)
}

// inspect returns an empty string when path has the wanted kind and access
// bits, otherwise a short description of what is wrong.
func inspect(path string, wantDir bool, mode uint32) string {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "does not exist"
	case err != nil:
		return "stat: " + err.Error()
	case wantDir && !info.IsDir():
		return "is not a directory"
	case !wantDir && info.IsDir():
		return "is a directory"
	}
	if err := unix.Access(path, mode); err != nil {
		if wantDir {
			return "insufficient permissions: " + err.Error()
		}
		return "not readable: " + err.Error()
	}
	return ""
}

func describeLLMFailure(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "health check timed out (LLM API unresponsive)"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "health check timed out (LLM API unreachable)"
	default:
		return err.Error()
	}
}

func pass(name, detail string) Result { return Result{Name: name, Passed: true, Detail: detail} }

func fail(name, detail string) Result { return Result{Name: name, Detail: detail} }
