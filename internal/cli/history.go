package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Limit int
}

// RunSummary is one row of the history listing.
type RunSummary struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	Classes      int       `json:"classes"`
	Failed       int       `json:"failed"`
	Injected     int       `json:"injected"`
	ReportDigest string    `json:"report_digest,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded weave runs, or show one run's report",
		Args:  cobra.MaximumNArgs(1),
		Example: `  classweave history --db weave.db
  classweave history --db weave.db 01970c1e-7f7e-7a53-9c62-3f1b2d8e4a10 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "ledger database (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs listed (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.DB); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "ledger not found", err, nil)
	}
	ledger, err := store.Open(opts.DB)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, "open ledger", err, nil)
	}
	defer ledger.Close()

	if len(args) == 1 {
		rep, err := ledger.Report(ctx, args[0])
		if errors.Is(err, store.ErrRunNotFound) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, "unknown run "+args[0], nil, nil)
		}
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLedger, "read run", err, nil)
		}
		if opts.Format == "json" {
			return formatter.Success(rep)
		}
		printReport(cmd.OutOrStdout(), rep, opts.Verbose)
		return nil
	}

	runs, err := ledger.Runs(ctx, opts.Limit)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, "list runs", err, nil)
	}
	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = RunSummary{
			ID:           r.ID,
			StartedAt:    r.StartedAt,
			Classes:      r.Classes,
			Failed:       r.Failed,
			Injected:     r.Injected,
			ReportDigest: r.ReportDigest,
			Error:        r.Error,
		}
	}
	if opts.Format == "json" {
		return formatter.Success(summaries)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tCLASSES\tFAILED\tINJECTED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", s.ID, s.StartedAt.Format(time.RFC3339), s.Classes, s.Failed, s.Injected)
	}
	return tw.Flush()
}
