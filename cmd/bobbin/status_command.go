package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bobbin/internal/api"
	"bobbin/internal/daemon"
	"bobbin/internal/daemonrun"
	"bobbin/internal/deps"
	"bobbin/internal/preflight"
	"bobbin/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show run lock, queue, stage health and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			lines = append(lines, renderSectionHeader("System", colorize)...)
			configLabel := ctx.configPath
			if configLabel == "" {
				configLabel = "defaults"
			}
			lines = append(lines, renderStatusLine("Config", statusInfo, configLabel, colorize))
			held, err := daemon.LockHeld(cfg)
			switch {
			case err != nil:
				lines = append(lines, renderStatusLine("Run lock", statusError, err.Error(), colorize))
			case held:
				lines = append(lines, renderStatusLine("Run lock", statusOK, "Held (a run or daemon is active)", colorize))
			default:
				lines = append(lines, renderStatusLine("Run lock", statusInfo, "Free (no run active)", colorize))
			}
			lines = append(lines, renderStatusLine("Registry", statusInfo, cfg.Registry.Backend, colorize))
			lines = append(lines, renderStatusLine("LLM key", boolKind(strings.TrimSpace(cfg.LLM.APIKey) != ""), yesNo(strings.TrimSpace(cfg.LLM.APIKey) != ""), colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Preflight", colorize)...)
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			stagesErr := ctx.withPipeline(cmd, true, func(p *daemonrun.Pipeline) error {
				summary := api.FromStatusSummary(p.Manager.Status(cmd.Context()))
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Stages", colorize)...)
				lines = append(lines, stageHealthLines(summary.StageHealth, colorize)...)
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Queue", colorize)...)
				lines = append(lines, databaseHealthLine(cmd.Context(), p.Store, colorize))
				for _, row := range buildQueueStatusRows(summary.QueueStats) {
					lines = append(lines, renderStatusLine(row[0], statusInfo, row[1], colorize))
				}
				return nil
			})
			if stagesErr != nil {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Stages", colorize)...)
				lines = append(lines, renderStatusLine("Pipeline", statusError, stagesErr.Error(), colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(api.FromDependencies(deps.CheckBinaries(deps.Requirements(cfg))), colorize)...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func databaseHealthLine(ctx context.Context, store *queue.Store, colorize bool) string {
	health, err := store.CheckHealth(ctx)
	switch {
	case err != nil:
		return renderStatusLine("Database", statusError, err.Error(), colorize)
	case len(health.MissingColumns) > 0:
		return renderStatusLine("Database", statusError, "missing columns: "+strings.Join(health.MissingColumns, ", "), colorize)
	case !health.IntegrityCheck:
		return renderStatusLine("Database", statusError, "integrity check failed", colorize)
	}
	return renderStatusLine("Database", statusOK, fmt.Sprintf("schema v%d, %d item(s)", health.SchemaVersion, health.TotalItems), colorize)
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusWarn
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external binaries the pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(dependencyLines(api.FromDependencies(statuses), shouldColorize(out)), "\n"))
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependency(ies) missing", len(missing))
			}
			return nil
		},
	}
}
