package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/timmy/courtside/internal/app"
	"github.com/timmy/courtside/internal/config"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/service"
)

type rootOptions struct {
	configPath string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "courtside",
		Short:         "Ingest, clean and search tennis match transcripts",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config file")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		newIngestCmd(opts),
		newReprocessCmd(opts),
		newIndexCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newSearchCmd(opts),
		newMigrateCmd(opts),
		newStatsCmd(opts),
		newJobsCmd(opts),
		newAskCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

// withApp loads config, builds the pipeline and runs fn with a context
// cancelled on SIGINT/SIGTERM.
func withApp(opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := app.NewLogger(&cfg.Log, "courtside-cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "ingest <video-id|url|playlist>",
		Short: "Fetch, clean and store transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				batch, err := a.Ingest.IngestInput(ctx, args[0], title)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), batch)
				}
				printBatch(cmd.OutOrStdout(), batch)
				if batch.Succeeded == 0 {
					return fmt.Errorf("no transcripts ingested")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title to use instead of looking it up")
	return cmd
}

func printBatch(w io.Writer, batch *service.BatchResult) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "VIDEO\tOUTCOME\tCHUNKS\tFAILED CHUNKS\tERROR")
	for _, r := range batch.Results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.VideoID, r.Outcome, r.Chunks, len(r.ChunkFailures), r.Error)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d/%d succeeded (job %s)\n", batch.Succeeded, batch.Total, batch.JobID)
}

func newReprocessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <video-id>",
		Short: "Re-run the pipeline for a failed or completed item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Ingest.Reprocess(ctx, args[0], true)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s is %s\n", res.JobToken, res.VideoID, res.Status)
				if res.Run != nil && res.Run.Error != "" {
					return fmt.Errorf("reprocess failed: %s", res.Run.Error)
				}
				return nil
			})
		},
	}
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <video-id>...",
		Short: "Publish clean transcripts to the search index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				var failed int
				for _, id := range args {
					if _, err := a.Ingest.Index(ctx, id); err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: indexed\n", id)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d failed to index", failed, len(args))
				}
				return nil
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var content bool
	cmd := &cobra.Command{
		Use:   "status <video-id>",
		Short: "Show an item with its reconciled status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				view, err := a.Catalog.Get(ctx, args[0], content)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), view)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s  %s\n", view.Identifier, view.Title)
				fmt.Fprintf(w, "status:    %s", view.EffectiveStatus)
				if view.EffectiveStatus != view.Status {
					fmt.Fprintf(w, " (stored %s)", view.Status)
				}
				fmt.Fprintf(w, "\nartifacts: raw=%t clean=%t\nindexed:   %t\n", view.HasRaw, view.HasClean, view.Indexed)
				if view.ErrorMessage != "" {
					fmt.Fprintf(w, "error:     %s\n", view.ErrorMessage)
				}
				if view.Content != "" {
					fmt.Fprintf(w, "\n%s\n", view.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "print the clean transcript")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		status string
		query  string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listOpts := service.ListOptions{Text: query, Limit: limit, Offset: offset}
			if status != "" {
				s, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				listOpts.Status = &s
			}
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				page, err := a.Catalog.List(ctx, listOpts)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), page)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
				fmt.Fprintln(tw, "VIDEO\tSTATUS\tINDEXED\tLENGTH\tTITLE")
				for _, v := range page.Items {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n", v.Identifier, v.EffectiveStatus, v.Indexed, v.TranscriptLength, v.Title)
				}
				tw.Flush()
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d shown\n", len(page.Items), page.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by stored status")
	cmd.Flags().StringVarP(&query, "query", "q", "", "match title or video id")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				if topN <= 0 {
					topN = a.Config.Search.TopN
				}
				hits, err := a.Catalog.Search(ctx, args[0], topN)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), hits)
				}
				w := cmd.OutOrStdout()
				for i, h := range hits {
					fmt.Fprintf(w, "%d. %s (%.3f)\n   %s\n", i+1, h.Title, h.Score, h.URL)
					for _, hl := range h.Highlights {
						fmt.Fprintf(w, "   ... %s ...\n", hl)
					}
				}
				if len(hits) == 0 {
					fmt.Fprintln(w, "no results")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&topN, "top", "n", 0, "number of results")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create records for stored transcripts that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Catalog.Migrate(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d, errors %d\n", len(res.Created), len(res.Skipped), len(res.Errors))
				for _, e := range res.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), e)
				}
				return nil
			})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				st, err := a.Catalog.Stats(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), st)
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"total %d  pending %d  processing %d  completed %d  failed %d  indexed %d  success %.2f%%\n",
					st.Total, st.Pending, st.Processing, st.Completed, st.Failed, st.Indexed, st.SuccessRate)
				return nil
			})
		},
	}
}

func newJobsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List recent ingest jobs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					job, err := a.Ingest.Job(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), job)
				}
				jobs, err := a.Ingest.Jobs(ctx, limit)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), jobs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
				fmt.Fprintln(tw, "JOB\tKIND\tSTATUS\tDONE\tFAILED\tINPUT")
				for _, j := range jobs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\n", j.ID, j.Kind, j.Status, j.ProcessedItems, j.TotalItems, j.FailedItems, j.Input)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of jobs")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <video-id> <question>...",
		Short: "Ask a question about one match transcript",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				answer, err := a.Chat.Ask(ctx, service.ChatRequest{
					VideoID: args[0],
					Query:   strings.Join(args[1:], " "),
				})
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), answer)
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer.Response)
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [video-id]",
		Short: "Show recently answered questions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app.App) error {
				var videoID string
				if len(args) == 1 {
					videoID = args[0]
				}
				sessions, err := a.Chat.History(ctx, videoID, limit)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), sessions)
				}
				w := cmd.OutOrStdout()
				for _, s := range sessions {
					fmt.Fprintf(w, "[%s] %s\nQ: %s\nA: %s\n\n", s.CreatedAt.Format("2006-01-02 15:04"), s.VideoID, s.Question, s.Answer)
				}
				if len(sessions) == 0 {
					fmt.Fprintln(w, "no questions yet")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of sessions")
	return cmd
}
