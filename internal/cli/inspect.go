package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/engine"
)

// InspectResult is the JSON payload of the inspect command.
type InspectResult struct {
	Class        string `json:"class"`
	Instrumented bool   `json:"instrumented"`
	Listing      string `json:"listing"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "inspect <class-file>",
		Short:         "Print a disassembly listing of a class file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
}

func runInspect(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "read class", err, nil)
	}
	cls, err := classfile.Parse(data)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeParse, "parse "+path, err, nil)
	}

	listing := classfile.Disassemble(cls)
	if opts.Format == "json" {
		return formatter.Success(InspectResult{
			Class:        cls.Name(),
			Instrumented: cls.HasAttribute(engine.MarkerAttribute),
			Listing:      listing,
		})
	}
	_, err = cmd.OutOrStdout().Write([]byte(strings.TrimRight(listing, "\n") + "\n"))
	return err
}
