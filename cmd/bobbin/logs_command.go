package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"bobbin/internal/config"
	"bobbin/internal/logs"
	"bobbin/internal/queue"
	"bobbin/internal/workflow"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var jobID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the bobbin log or the log of one job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := resolveLogPath(cmd, cfg, jobID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			recent, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range recent {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(recent) == 0 && lines > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No log output yet (%s)\n", path)
				}
				return nil
			}

			followCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return logs.Follow(followCtx, path, offset, logs.DefaultPollInterval, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().StringVarP(&jobID, "job", "j", "", "Show the dedicated log of a job")
	return cmd
}

func resolveLogPath(cmd *cobra.Command, cfg *config.Config, jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		path := cfg.LogFilePath()
		if path == "" {
			return "", fmt.Errorf("no log directory configured")
		}
		return path, nil
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(jobID), "#"), 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	jobs := workflow.NewJobLogger(cfg)
	if jobs == nil {
		return "", fmt.Errorf("no log directory configured")
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return "", fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	item, err := store.GetByID(cmd.Context(), id)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", fmt.Errorf("job #%d not found", id)
	}
	return jobs.Path(item), nil
}
