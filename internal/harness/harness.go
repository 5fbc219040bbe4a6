package harness

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/config"
	"github.com/roach88/classweave/internal/engine"
	"github.com/roach88/classweave/internal/hooks"
	"github.com/roach88/classweave/internal/vm"
)

// Harness executes one scenario against a fresh interpreter.
type Harness struct {
	machine *vm.Machine
	result  *Result
	objects map[string]*vm.Object
	logger  zerolog.Logger
}

// Run weaves the scenario's fixtures, executes its flow and evaluates its
// assertions. Failed expectations and assertions are reported in the
// Result; the error is reserved for scenarios that cannot run at all.
//
// Execution flow:
// 1. Apply config overrides to the defaults and validate them
// 2. Weave every fixture; a failed transform fails the scenario
// 3. Load the woven classes into an interpreter with a tracing runtime
// 4. Execute flow steps, checking expect clauses
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := scenario.config()
	if err != nil {
		return nil, err
	}
	eng, err := cfg.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	result := NewResult()
	var out bytes.Buffer
	h := &Harness{
		result:  result,
		objects: make(map[string]*vm.Object),
		logger:  zerolog.Nop(),
	}
	h.machine = vm.New(
		vm.WithRuntime(cfg.HookSpec(), &tracer{result: result}),
		vm.WithStdout(&out),
		vm.WithStderr(&out),
		vm.WithLogger(h.logger),
	)

	woven := true
	for _, name := range scenario.Fixtures {
		if err := h.weave(eng, name); err != nil {
			result.AddError(fmt.Sprintf("weave %s: %v", name, err))
			woven = false
		}
	}

	if woven {
		for i, step := range scenario.Flow {
			if err := h.executeStep(step); err != nil {
				result.AddError(fmt.Sprintf("flow[%d]: %v", i, err))
				break
			}
		}
	}
	result.Output = out.String()

	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func (s *Scenario) config() (config.Config, error) {
	cfg := config.Default()
	o := s.Config
	if o.LoggableType != "" {
		cfg.LoggableType = o.LoggableType
	}
	if o.HookModule != "" {
		cfg.HookModule = o.HookModule
	}
	if o.MaxArity != nil {
		cfg.MaxArity = *o.MaxArity
	}
	cfg.Exclude = o.Exclude
	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("scenario %s config: %w", s.Name, errs)
	}
	return cfg, nil
}

func (h *Harness) weave(eng *engine.Engine, name string) error {
	b, err := fixture(name)
	if err != nil {
		return err
	}
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	out, err := eng.Run(data)
	if err != nil {
		return err
	}
	h.result.Classes = append(h.result.Classes, out.Result)
	_, err = h.machine.Define(out.Bytes)
	return err
}

func (h *Harness) executeStep(step Step) error {
	if step.New != "" {
		obj, err := h.machine.New(step.New)
		if err != nil {
			return err
		}
		h.objects[step.New] = obj
		h.result.record(TraceEvent{Type: EventNew, Name: step.New})
		return nil
	}

	owner, method := step.Target()
	args, err := coerceArgs(step.Desc, step.Args)
	if err != nil {
		return err
	}
	var receiver vm.Value
	if !step.Static {
		obj, ok := h.objects[owner]
		if !ok {
			return fmt.Errorf("no instance of %s; add a new step first", owner)
		}
		receiver = obj
	}

	ret, err := h.machine.Invoke(owner, method, step.Desc, receiver, args...)
	var thrown *vm.Thrown
	switch {
	case errors.As(err, &thrown):
		h.result.record(TraceEvent{Type: EventThrow, Name: step.Invoke, Value: thrown.ClassName()})
		return h.checkThrow(step, thrown.ClassName())
	case err != nil:
		return err
	}

	event := TraceEvent{Type: EventReturn, Name: step.Invoke}
	if !strings.HasSuffix(step.Desc, ")V") {
		event.Value = vm.Format(ret)
	}
	h.result.record(event)
	return h.checkReturn(step, event.Value)
}

// checkReturn and checkThrow report mismatches as scenario errors and let
// the flow continue.
func (h *Harness) checkReturn(step Step, got string) error {
	if step.Expect == nil {
		return nil
	}
	if step.Expect.Throws != "" {
		h.result.AddError(fmt.Sprintf("%s: expected %s to be thrown, returned %q", step.Invoke, step.Expect.Throws, got))
		return nil
	}
	if step.Expect.Return != nil && *step.Expect.Return != got {
		h.result.AddError(fmt.Sprintf("%s: expected return %q, got %q", step.Invoke, *step.Expect.Return, got))
	}
	return nil
}

func (h *Harness) checkThrow(step Step, class string) error {
	if step.Expect == nil || step.Expect.Throws == "" {
		return fmt.Errorf("%s threw %s", step.Invoke, class)
	}
	if step.Expect.Throws != class {
		h.result.AddError(fmt.Sprintf("%s: expected %s to be thrown, got %s", step.Invoke, step.Expect.Throws, class))
	}
	return nil
}

func coerceArgs(desc string, raw []any) ([]vm.Value, error) {
	mt, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(mt.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", desc, len(mt.Params), len(raw))
	}
	args := make([]vm.Value, len(raw))
	for i, v := range raw {
		if args[i], err = vm.Coerce(mt.Params[i], v); err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
	}
	return args, nil
}

// tracer is the hook runtime of a scenario run. It appends events to the
// result as they happen.
type tracer struct {
	result *Result
}

func (t *tracer) WrapLoggable(v any) any {
	inner, ok := v.(hooks.Loggable)
	if !ok {
		t.result.record(TraceEvent{Type: EventWrap})
		return v
	}
	t.result.record(TraceEvent{Type: EventWrap, Name: inner.Name()})
	return &tracedLoggable{inner: inner, tracer: t}
}

func (t *tracer) LogCall(name string, args []any) {
	rendered := make([]string, len(args))
	for i, a := range args {
		s := hooks.FormatArgs([]any{a})
		rendered[i] = s[1 : len(s)-1]
	}
	t.result.record(TraceEvent{Type: EventLog, Name: name, Args: rendered})
}

type tracedLoggable struct {
	inner  hooks.Loggable
	tracer *tracer
}

func (l *tracedLoggable) Name() string { return l.inner.Name() }

func (l *tracedLoggable) Info(msg string) {
	l.tracer.result.record(TraceEvent{Type: EventInfo, Name: l.inner.Name(), Value: msg})
	l.inner.Info(msg)
}
