package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/config"
	"github.com/roach88/classweave/internal/metrics"
	"github.com/roach88/classweave/internal/report"
	"github.com/roach88/classweave/internal/store"
	"github.com/roach88/classweave/internal/weave"
)

// WeaveOptions holds flags for the weave command.
type WeaveOptions struct {
	*RootOptions
	Output      string
	DryRun      bool
	DB          string
	Incremental bool
	Metrics     string
	Concurrency int
	Report      string
}

// NewWeaveCommand creates the weave command.
func NewWeaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WeaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "weave <class-or-dir>...",
		Short: "Instrument class files",
		Long: `Instrument one or more class files. Directories are walked for .class
files and outputs mirror their relative paths under --output.

Classes that fail to parse, link, or serialize are reported and skipped;
the command exits 1 if any class failed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeave(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (required unless --dry-run)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "transform without writing outputs")
	cmd.Flags().StringVar(&opts.DB, "db", "", "ledger database recording runs")
	cmd.Flags().BoolVar(&opts.Incremental, "incremental", false, "reuse ledger outputs for inputs already woven with the same config")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write Prometheus textfile metrics to this path")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "classes transformed at once (default from config)")
	cmd.Flags().StringVar(&opts.Report, "report", "", "write the JSON report to this path")

	return cmd
}

func runWeave(ctx context.Context, opts *WeaveOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Output == "" && !opts.DryRun {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "--output is required unless --dry-run is set", nil, nil)
	}
	if opts.Incremental && opts.DB == "" {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "--incremental requires --db", nil, nil)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return configFailure(formatter, err)
	}
	log := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr(), "weave")

	eng, err := cfg.NewEngine()
	if err != nil {
		return configFailure(formatter, err)
	}
	digest, err := cfg.Digest()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "config digest", err, nil)
	}

	inputs, err := weave.Collect(args)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "collect inputs", err, nil)
	}
	formatter.VerboseLog("Found %d class file(s)", len(inputs))

	concurrency := cfg.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	wopts := []weave.Option{
		weave.WithConcurrency(concurrency),
		weave.WithConfigDigest(digest),
		weave.WithLogger(log),
	}
	if !opts.DryRun {
		wopts = append(wopts, weave.WithOutputDir(opts.Output))
	}
	if opts.DB != "" {
		ledger, err := store.Open(opts.DB)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLedger, "open ledger", err, nil)
		}
		defer ledger.Close()
		wopts = append(wopts, weave.WithLedger(ledger, opts.Incremental))
	}
	var m *metrics.Metrics
	if opts.Metrics != "" {
		m = metrics.New()
		wopts = append(wopts, weave.WithMetrics(m))
	}

	rep, err := weave.New(eng, wopts...).Run(ctx, inputs)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "weave", err, nil)
	}

	if m != nil {
		if err := m.WriteFile(opts.Metrics); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "write metrics", err, nil)
		}
	}
	if opts.Report != "" {
		if err := writeReport(opts.Report, rep); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "write report", err, nil)
		}
	}

	if opts.Format == "json" {
		if rep.OK() {
			return formatter.Success(rep)
		}
		return formatter.fail(ExitFailure, ErrCodeWeave, fmt.Sprintf("%d of %d classes failed", rep.Totals.Failed, rep.Totals.Classes), nil, rep)
	}

	printReport(cmd.OutOrStdout(), rep, opts.Verbose)
	if !rep.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d classes failed", rep.Totals.Failed, rep.Totals.Classes))
	}
	return nil
}

func configFailure(f *OutputFormatter, err error) error {
	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		return f.fail(ExitFailure, ErrCodeConfig, "invalid config", nil, verrs)
	}
	return f.fail(ExitCommandError, ErrCodeConfig, "load config", err, nil)
}

func printReport(w io.Writer, rep *report.Report, verbose bool) {
	for _, c := range rep.Classes {
		switch c.Outcome {
		case report.OutcomeFailed:
			fmt.Fprintf(w, "FAIL  %s: %s\n", c.Path, c.Error)
		default:
			fmt.Fprintf(w, "%-5s %s (%d injections)\n", outcomeTag(c.Outcome), c.Path, c.Injected)
		}
		for _, warning := range c.Warnings {
			fmt.Fprintf(w, "      warning: %s\n", warning)
		}
		if verbose {
			for _, m := range c.Members {
				line := fmt.Sprintf("      %s %s", m.State, m.ID())
				if m.Pass != "" {
					line += " [" + string(m.Pass) + "]"
				}
				if m.Reason != "" {
					line += ": " + m.Reason
				}
				fmt.Fprintln(w, line)
			}
		}
	}
	t := rep.Totals
	fmt.Fprintf(w, "\n%d classes: %d transformed, %d unchanged, %d cached, %d failed; %d injections\n",
		t.Classes, t.Transformed, t.Unchanged, t.Cached, t.Failed, t.Injected)
}

func outcomeTag(outcome string) string {
	switch outcome {
	case report.OutcomeTransformed:
		return "OK"
	case report.OutcomeCached:
		return "CACHE"
	default:
		return strings.ToUpper(outcome[:4])
	}
}
