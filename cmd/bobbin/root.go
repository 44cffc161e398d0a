package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	root := &cobra.Command{
		Use:           "bobbin",
		Short:         "Transcribe audio and video sources into searchable documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(
		newAddCommand(ctx),
		newPreprocessCommand(ctx),
		newStartCommand(ctx),
		newServeCommand(ctx),
		newQueueCommand(ctx),
		newStatusCommand(ctx),
		newLogsCommand(ctx),
		newDepsCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
