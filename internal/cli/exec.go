package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/hooks"
	"github.com/roach88/classweave/internal/vm"
	"github.com/roach88/classweave/internal/weave"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Class     string
	Method    string
	Desc      string
	Static    bool
	Args      []string
	StepLimit int
}

// ExecResult is the JSON payload of the exec command.
type ExecResult struct {
	Class  string `json:"class"`
	Method string `json:"method"`
	Return string `json:"return,omitempty"`
	Output string `json:"output"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <class-or-dir>...",
		Short: "Run a method of a (woven) class in the built-in interpreter",
		Long: `Load class files into the built-in interpreter and call one method.
Hook calls are printed to stdout by the console runtime: the log sink as
name([args]) and wrapped loggers as "LoggerWrapper: <msg>".

With no --static, an instance is created with the no-argument constructor
and the method is called on it.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Class, "class", "", "class to run (internal name; default: the only class given)")
	cmd.Flags().StringVarP(&opts.Method, "method", "m", "hello", "method name")
	cmd.Flags().StringVar(&opts.Desc, "desc", "()V", "method descriptor")
	cmd.Flags().BoolVar(&opts.Static, "static", false, "call a static method")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "method argument, parsed by parameter type (repeatable)")
	cmd.Flags().IntVar(&opts.StepLimit, "step-limit", vm.DefaultStepLimit, "maximum instructions executed")

	return cmd
}

// capture records program output and, unless quiet, passes it through.
type capture struct {
	out   []byte
	tee   io.Writer
	quiet bool
}

func (c *capture) Write(p []byte) (int, error) {
	c.out = append(c.out, p...)
	if c.quiet {
		return len(p), nil
	}
	return c.tee.Write(p)
}

func runExec(opts *ExecOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return configFailure(formatter, err)
	}
	log := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr(), "exec")

	inputs, err := weave.Collect(args)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "collect inputs", err, nil)
	}

	out := &capture{tee: cmd.OutOrStdout(), quiet: opts.Format == "json"}
	m := vm.New(
		vm.WithRuntime(cfg.HookSpec(), hooks.NewConsole(out)),
		vm.WithStdout(out),
		vm.WithStderr(out),
		vm.WithStepLimit(opts.StepLimit),
		vm.WithLogger(log),
	)

	var names []string
	for _, in := range inputs {
		data, err := os.ReadFile(in.Source)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, "read class", err, nil)
		}
		cls, err := m.Define(data)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeParse, "load "+in.Path, err, nil)
		}
		names = append(names, cls.Name())
	}

	class := opts.Class
	if class == "" {
		if len(names) != 1 {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("%d classes loaded; choose one with --class", len(names)), nil, names)
		}
		class = names[0]
	}

	callArgs, err := methodArgs(opts.Desc, opts.Args)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalidArgs, "method arguments", err, nil)
	}

	var receiver vm.Value
	if !opts.Static {
		obj, err := m.New(class)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeExec, "construct "+class, err, nil)
		}
		receiver = obj
	}
	ret, err := m.Invoke(class, opts.Method, opts.Desc, receiver, callArgs...)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeExec, "invoke "+class+"."+opts.Method+opts.Desc, err, nil)
	}

	result := ExecResult{Class: class, Method: opts.Method + opts.Desc, Output: string(out.out)}
	if ret != nil || opts.Desc[len(opts.Desc)-1] != 'V' {
		result.Return = vm.Format(ret)
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	if result.Return != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "=> %s\n", result.Return)
	}
	return nil
}

func methodArgs(desc string, raw []string) ([]vm.Value, error) {
	mt, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(mt.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", desc, len(mt.Params), len(raw))
	}
	out := make([]vm.Value, len(raw))
	for i, s := range raw {
		v, err := vm.Coerce(mt.Params[i], s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}
