package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/config"
	"github.com/roach88/classweave/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	LogLevel string
	Config   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the classweave CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "classweave",
		Short: "classweave - JVM class file instrumentation",
		Long: `Rewrites compiled JVM classes: loggers assigned in static initializers
are passed through a wrapper factory, and every method body reports its
name and arguments to a log sink on entry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintln(cmd.ErrOrStderr(), "Error: "+msg)
				return NewExitError(ExitCommandError, msg)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error); overrides config")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (.yaml or .cue)")

	cmd.AddCommand(NewWeaveCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewValidateConfigCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig loads --config and applies --log-level.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, nil
}

func newLogger(opts *RootOptions, cfg config.Config, w io.Writer, component string) zerolog.Logger {
	level := cfg.LogLevel
	if opts.Verbose && logging.ParseLevel(level) > zerolog.DebugLevel {
		level = "debug"
	}
	return logging.NewWithComponent(logging.Config{
		Level:  level,
		Pretty: opts.Format != "json",
		Output: w,
	}, component)
}
