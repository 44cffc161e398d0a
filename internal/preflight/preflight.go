package preflight

import (
	"context"
	"strings"

	"bobbin/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	if cfg.Postprocess.Correct || cfg.Postprocess.Summarize {
		results = append(results, CheckLLM(ctx, "LLM", cfg.LLM))
	}

	if cfg.Export.Drive.Enabled {
		results = append(results,
			CheckReadableFile("Drive credentials", cfg.Export.Drive.CredentialsFile),
			CheckReadableFile("Drive token", cfg.Export.Drive.TokenFile),
		)
	}

	if strings.TrimSpace(cfg.Acquisition.CookiesFile) != "" {
		results = append(results, CheckReadableFile("Cookies file", cfg.Acquisition.CookiesFile))
	}

	return results
}

// Failures returns the results that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
