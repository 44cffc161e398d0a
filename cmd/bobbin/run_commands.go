package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bobbin/internal/daemonrun"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var keepScratch bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Process queued jobs in the foreground until the queue drains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			summary, err := daemonrun.RunQueue(cmd.Context(), cfg, logger, daemonrun.Options{KeepScratch: keepScratch})
			out := cmd.OutOrStdout()
			if len(summary.Completed) > 0 {
				ids := make([]string, len(summary.Completed))
				for i, id := range summary.Completed {
					ids[i] = "#" + strconv.FormatInt(id, 10)
				}
				fmt.Fprintf(out, "Completed %d job(s): %s\n", len(ids), strings.Join(ids, ", "))
			}
			if err != nil {
				if summary.FailedID > 0 {
					return fmt.Errorf("job #%d failed: %w", summary.FailedID, err)
				}
				return err
			}
			if len(summary.Completed) == 0 {
				fmt.Fprintln(out, "Queue is empty")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepScratch, "keep-scratch", false, "Keep downloaded and intermediate files after the run")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var keepScratch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for submissions and queue control",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Paths.APIBind) == "" {
				return errors.New("paths.api_bind is empty; set an address to serve the API")
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return daemonrun.Serve(cmd.Context(), cfg, logger, daemonrun.Options{KeepScratch: keepScratch})
		},
	}
	cmd.Flags().BoolVar(&keepScratch, "keep-scratch", false, "Keep downloaded and intermediate files after each run")
	return cmd
}
