// Package filter evaluates member exclusion expressions written in CEL.
//
// An expression sees one member at a time through these variables:
//
//	class   string  internal name of the declaring class
//	kind    string  "field" or "method"
//	name    string  member name
//	desc    string  member descriptor
//	static  bool    ACC_STATIC is set
//	params  int     declared parameter count (0 for fields)
//
// and must evaluate to a bool. For example:
//
//	kind == "method" && name.startsWith("lambda$")
package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Member is the view of a member an expression evaluates against.
type Member struct {
	Class  string
	Kind   string
	Name   string
	Desc   string
	Static bool
	Params int
}

func (m Member) vars() map[string]any {
	return map[string]any{
		"class":  m.Class,
		"kind":   m.Kind,
		"name":   m.Name,
		"desc":   m.Desc,
		"static": m.Static,
		"params": int64(m.Params),
	}
}

// Filter is a compiled expression. It is safe for concurrent use.
type Filter struct {
	source  string
	program cel.Program
}

// CompileError reports an expression that does not parse, type-check, or
// evaluate to a bool.
type CompileError struct {
	Expr    string
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("filter %q: %s", e.Expr, e.Message)
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("class", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("desc", cel.StringType),
		cel.Variable("static", cel.BoolType),
		cel.Variable("params", cel.IntType),
	)
}

// Compile parses and checks expr. An empty expression yields a nil Filter,
// which matches nothing.
func Compile(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, &CompileError{Expr: expr, Message: iss.Err().Error()}
	}
	if got := ast.OutputType(); got.String() != cel.BoolType.String() {
		return nil, &CompileError{Expr: expr, Message: "expression must evaluate to bool, got " + got.String()}
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, &CompileError{Expr: expr, Message: err.Error()}
	}
	return &Filter{source: expr, program: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match reports whether m satisfies the expression. A nil Filter matches
// nothing.
func (f *Filter) Match(m Member) (bool, error) {
	if f == nil {
		return false, nil
	}
	out, _, err := f.program.Eval(m.vars())
	if err != nil {
		return false, fmt.Errorf("filter %q on %s.%s: %w", f.source, m.Class, m.Name, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T", f.source, out.Value())
	}
	return b, nil
}
