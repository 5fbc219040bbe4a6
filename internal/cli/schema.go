package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/report"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "schema",
		Short:         "Print the JSON Schema of weave reports",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			data, err := report.Schema()
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodeGeneric, "build schema", err, nil)
			}
			if rootOpts.Format == "json" {
				return formatter.Success(json.RawMessage(data))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
