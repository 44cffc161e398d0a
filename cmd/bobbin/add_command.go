package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"bobbin/internal/api"
	"bobbin/internal/daemonrun"
	"bobbin/internal/workflow"
)

// submitFlags collects the per-source hints shared by add and preprocess.
type submitFlags struct {
	request api.SubmitRequest
	episode int
}

func (f *submitFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.request.CollectionPath, "collection", "l", "", "Collection path the transcript is filed under (e.g. podcasts/show)")
	flags.StringVarP(&f.request.Title, "title", "t", "", "Title override")
	flags.StringVar(&f.request.Date, "date", "", "Event date (YYYY-MM-DD)")
	flags.StringSliceVar(&f.request.Tags, "tags", nil, "Tags (repeatable or comma separated)")
	flags.StringSliceVar(&f.request.Speakers, "speakers", nil, "Speakers (repeatable or comma separated)")
	flags.StringSliceVar(&f.request.Categories, "categories", nil, "Categories (repeatable or comma separated)")
	flags.StringVar(&f.request.Summary, "summary", "", "Summary to store instead of generating one")
	flags.IntVar(&f.episode, "episode", 0, "Episode number")
	flags.StringVar(&f.request.ExternalMediaLink, "media-link", "", "Link recorded as the media location instead of the source URL")
	flags.StringSliceVar(&f.request.Exclude, "exclude", nil, "Skip playlist or feed entries whose title or URL contains this text")
	flags.StringVar(&f.request.Cutoff, "cutoff", "", "Skip entries published before this date (YYYY-MM-DD)")
	flags.BoolVar(&f.request.Diarize, "diarize", false, "Label speakers in the transcript")
}

func (f *submitFlags) options(cmd *cobra.Command, locator string) (string, workflow.SubmitOptions, error) {
	req := f.request
	req.Source = locator
	if cmd.Flags().Changed("episode") {
		episode := f.episode
		req.Episode = &episode
	}
	return req.Options()
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "add <source>",
		Short: "Queue a file, URL, playlist or RSS feed for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locator, opts, err := flags.options(cmd, args[0])
			if err != nil {
				return err
			}
			return ctx.withPipeline(cmd, false, func(p *daemonrun.Pipeline) error {
				report, err := p.Manager.Submit(cmd.Context(), locator, opts)
				if err != nil {
					return err
				}
				return printSubmitReport(cmd.Context(), cmd.OutOrStdout(), p, api.FromSubmitReport(report))
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&flags.request.Preprocess, "preprocess", false, "Also write the metadata JSON of every queued job")
	return cmd
}

func newPreprocessCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "preprocess <source>",
		Short: "Write metadata JSON for a source without queueing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locator, opts, err := flags.options(cmd, args[0])
			if err != nil {
				return err
			}
			return ctx.withPipeline(cmd, false, func(p *daemonrun.Pipeline) error {
				report, err := p.Manager.Preprocess(cmd.Context(), locator, opts)
				if err != nil {
					return err
				}
				return printSubmitReport(cmd.Context(), cmd.OutOrStdout(), p, api.FromSubmitReport(report))
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func printSubmitReport(ctx context.Context, out io.Writer, p *daemonrun.Pipeline, resp api.SubmitResponse) error {
	if len(resp.Added) > 0 {
		svc := api.NewQueueService(p.Store)
		rows := make([][]string, 0, len(resp.Added))
		for _, id := range resp.Added {
			item, err := svc.Describe(ctx, id)
			if err != nil {
				return err
			}
			if item == nil {
				continue
			}
			rows = append(rows, []string{strconv.FormatInt(item.ID, 10), item.Title, item.CollectionPath, item.SourceKind})
		}
		fmt.Fprint(out, renderTable([]string{"ID", "Title", "Collection", "Kind"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
	}
	for _, path := range resp.Metadata {
		fmt.Fprintf(out, "Wrote metadata %s\n", path)
	}
	if len(resp.Skipped) > 0 {
		rows := make([][]string, 0, len(resp.Skipped))
		for _, skipped := range resp.Skipped {
			label := skipped.Title
			if label == "" {
				label = skipped.Locator
			}
			rows = append(rows, []string{label, skipped.Reason})
		}
		fmt.Fprint(out, renderTable([]string{"Skipped", "Reason"}, rows, nil))
	}
	fmt.Fprintf(out, "Queued %d, excluded %d, skipped %d\n", len(resp.Added), resp.Excluded, len(resp.Skipped))
	return nil
}
