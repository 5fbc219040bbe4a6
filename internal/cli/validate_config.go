package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Errors []config.ValidationError `json:"errors,omitempty"`
	Config *config.Config           `json:"config,omitempty"`
}

// NewValidateConfigCommand creates the validate-config command.
func NewValidateConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [config-file]",
		Short: "Validate a configuration file",
		Long: `Load a configuration file (or --config) with environment overrides and
check it against the schema. Reports every problem found.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runValidateConfig(rootOpts, path, cmd)
		},
	}
}

func runValidateConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		var verrs config.ValidationErrors
		if !errors.As(err, &verrs) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, "load config", err, nil)
		}
		if opts.Format == "json" {
			if err := formatter.Success(ValidationResult{Valid: false, Errors: verrs}); err != nil {
				return err
			}
		} else {
			for _, e := range verrs {
				fmt.Fprintln(cmd.OutOrStdout(), e.Error())
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(verrs)))
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Config: &cfg})
	}
	spec := cfg.HookSpec()
	fmt.Fprintln(cmd.OutOrStdout(), "config valid")
	formatter.VerboseLog("wrap: %s", spec.WrapRef())
	formatter.VerboseLog("log:  %s", spec.LogRef())
	return nil
}
