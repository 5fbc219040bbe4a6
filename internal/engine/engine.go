package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/filter"
	"github.com/roach88/classweave/internal/hooks"
)

// MarkerAttribute is the class attribute added to every class that
// received at least one injection. Classes carrying it are rejected.
const MarkerAttribute = "classweave.Instrumented"

// Engine applies transformation passes to classes.
//
// Thread-safety: an Engine holds only configuration. Transform and Run may
// be called concurrently as long as each call works on its own class.
type Engine struct {
	resolver *hooks.Resolver
	passes   []Pass
	maxArity int
	exclude  *filter.Filter
	logger   zerolog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger for member transitions and warnings.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMaxArity lowers the parameter count above which methods are skipped.
//
// Default: MaxArity (127)
func WithMaxArity(n int) EngineOption {
	return func(e *Engine) { e.maxArity = n }
}

// WithExclude skips every member matching f before any pass is consulted.
func WithExclude(f *filter.Filter) EngineOption {
	return func(e *Engine) { e.exclude = f }
}

// WithPasses replaces the default pass list. Passes are tried in order and
// the first match wins.
func WithPasses(passes ...Pass) EngineOption {
	return func(e *Engine) { e.passes = append([]Pass(nil), passes...) }
}

// New creates an Engine resolving hooks through r. Without WithPasses the
// pass list is FieldWrap then MethodEntryLog.
func New(r *hooks.Resolver, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: r,
		maxArity: MaxArity,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.passes == nil {
		e.passes = []Pass{NewFieldWrap(r), NewMethodEntryLog(r, e.maxArity)}
	}
	return e
}

// Run parses data, transforms it, and serializes the result. On error no
// output is returned.
func (e *Engine) Run(data []byte) (*Output, error) {
	cls, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	res, err := e.Transform(cls)
	if err != nil {
		return nil, err
	}
	out, err := classfile.Write(cls)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", cls.Name(), err)
	}
	return &Output{Bytes: out, Result: res}, nil
}

// Transform instruments cls in place. Every member reaches Done exactly
// once. Recoverable failures are recorded in the Result; any other error
// returns before a single instruction is inserted.
func (e *Engine) Transform(cls *classfile.Class) (*Result, error) {
	log := e.logger.With().Str("class", cls.Name()).Logger()
	if cls.HasAttribute(MarkerAttribute) {
		return nil, &TransformError{
			Code:    ErrCodeAlreadyInstrumented,
			Message: "class carries " + MarkerAttribute,
			Class:   cls.Name(),
		}
	}

	list, err := members(cls)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cls.Name(), err)
	}
	res := &Result{Class: cls.Name(), Members: make([]MemberResult, len(list))}
	planned := make([][]Injection, len(list))

	for i, m := range list {
		r := &res.Members[i]
		*r = MemberResult{Kind: m.Kind, Name: m.Name, Desc: m.Desc, State: StateUnvisited}

		excluded, err := e.excluded(m)
		if err != nil {
			return nil, err
		}
		if excluded {
			r.Reason = "excluded by " + e.exclude.String()
			if err := e.step(log, r, StateSkipped); err != nil {
				return nil, err
			}
			continue
		}

		pass := e.match(m)
		if pass == nil {
			if err := e.step(log, r, StateSkipped); err != nil {
				return nil, err
			}
			continue
		}
		r.Pass = pass.Kind()
		if err := e.step(log, r, StateMatched); err != nil {
			return nil, err
		}

		injections, err := pass.Synthesize(m)
		if err != nil {
			if !IsUnsupportedArity(err) {
				return nil, err
			}
			r.Reason = err.Error()
			res.Warnings = append(res.Warnings, err.Error())
			log.Warn().Str("member", m.ID()).Err(err).Msg("member skipped")
			if err := e.step(log, r, StateSkipped); err != nil {
				return nil, err
			}
			continue
		}
		if len(injections) == 0 {
			r.Reason = noSiteReason(r.Pass)
			log.Debug().Str("member", m.ID()).Str("reason", r.Reason).Msg("member skipped")
			if err := e.step(log, r, StateSkipped); err != nil {
				return nil, err
			}
			continue
		}
		planned[i] = injections
	}

	for i := range list {
		r := &res.Members[i]
		if r.State == StateSkipped {
			if err := e.step(log, r, StateDone); err != nil {
				return nil, err
			}
			continue
		}
		for _, inj := range planned[i] {
			if err := inj.apply(); err != nil {
				return nil, fmt.Errorf("%s %s: %w", cls.Name(), r.ID(), err)
			}
		}
		r.Injections = len(planned[i])
		res.Injected += r.Injections
		if err := e.step(log, r, StateInjected); err != nil {
			return nil, err
		}
		if err := e.step(log, r, StateDone); err != nil {
			return nil, err
		}
	}

	for _, m := range cls.Methods {
		if m.Code == nil {
			continue
		}
		for _, name := range m.Code.Dropped {
			w := fmt.Sprintf("dropped %s from %s", name, m.ID())
			res.Warnings = append(res.Warnings, w)
			log.Warn().Str("member", m.ID()).Str("attribute", name).Msg("code attribute dropped")
		}
	}

	if res.Transformed() {
		cls.AddAttribute(MarkerAttribute, nil)
	}
	log.Debug().Int("injected", res.Injected).Int("warnings", len(res.Warnings)).Msg("class transformed")
	return res, nil
}

// noSiteReason explains a match that produced nothing to inject.
func noSiteReason(k PassKind) string {
	if k == PassFieldWrap {
		return "no store in " + classfile.ClassInitializer
	}
	return "no injection site"
}

func (e *Engine) excluded(m *Member) (bool, error) {
	if e.exclude == nil {
		return false, nil
	}
	ok, err := e.exclude.Match(filter.Member{
		Class:  m.Class.Name(),
		Kind:   string(m.Kind),
		Name:   m.Name,
		Desc:   m.Desc,
		Static: m.Static,
		Params: len(m.Params),
	})
	if err != nil {
		return false, &TransformError{Code: ErrCodeFilter, Message: "exclude expression failed", Class: m.Class.Name(), Member: m.ID(), Err: err}
	}
	return ok, nil
}

func (e *Engine) match(m *Member) Pass {
	for _, p := range e.passes {
		if p.Matches(m) {
			return p
		}
	}
	return nil
}

func (e *Engine) step(log zerolog.Logger, r *MemberResult, to State) error {
	from := r.State
	if err := advance(r, to); err != nil {
		return err
	}
	log.Debug().Str("member", r.ID()).Str("from", string(from)).Str("to", string(to)).Msg("member transition")
	return nil
}
