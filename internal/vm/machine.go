package vm

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/hooks"
)

const (
	// DefaultStepLimit bounds the instructions one Invoke may execute.
	DefaultStepLimit = 1_000_000

	// DefaultMaxDepth bounds the call depth before StackOverflowError.
	DefaultMaxDepth = 512
)

type initState int

const (
	uninitialized initState = iota
	initializing
	initialized
)

type classState struct {
	class   *classfile.Class
	statics map[string]Value
	init    initState
}

// Machine holds defined classes and their static state.
//
// A Machine is not safe for concurrent use.
type Machine struct {
	classes map[string]*classState
	runtime hooks.Runtime
	spec    hooks.Spec
	stdout  *PrintStream
	stderr  *PrintStream
	loggers map[string]*Logger
	log     zerolog.Logger

	stepLimit int
	maxDepth  int
	steps     int
	depth     int
	nextID    int
}

// Option configures a Machine.
type Option func(*Machine)

// WithRuntime routes calls to the hooks named by spec to rt.
func WithRuntime(spec hooks.Spec, rt hooks.Runtime) Option {
	return func(m *Machine) {
		m.spec = spec
		m.runtime = rt
	}
}

// WithStdout sets the writer behind System.out.
func WithStdout(w io.Writer) Option {
	return func(m *Machine) { m.stdout = &PrintStream{w: w} }
}

// WithStderr sets the writer behind System.err and logger output.
func WithStderr(w io.Writer) Option {
	return func(m *Machine) { m.stderr = &PrintStream{w: w} }
}

// WithStepLimit bounds the instructions one Invoke may execute.
//
// Default: DefaultStepLimit
func WithStepLimit(n int) Option {
	return func(m *Machine) { m.stepLimit = n }
}

// WithMaxDepth bounds call depth.
//
// Default: DefaultMaxDepth
func WithMaxDepth(n int) Option {
	return func(m *Machine) { m.maxDepth = n }
}

// WithLogger sets the logger for class initialization and hook dispatch.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// New returns an empty machine.
func New(opts ...Option) *Machine {
	m := &Machine{
		classes:   make(map[string]*classState),
		stdout:    &PrintStream{w: io.Discard},
		stderr:    &PrintStream{w: io.Discard},
		loggers:   make(map[string]*Logger),
		log:       zerolog.Nop(),
		stepLimit: DefaultStepLimit,
		maxDepth:  DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Define parses data and adds the class. Its static initializer runs on
// first use.
func (m *Machine) Define(data []byte) (*classfile.Class, error) {
	cls, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := m.DefineClass(cls); err != nil {
		return nil, err
	}
	return cls, nil
}

// DefineClass adds an already parsed class.
func (m *Machine) DefineClass(cls *classfile.Class) error {
	if _, ok := m.classes[cls.Name()]; ok {
		return fmt.Errorf("class %s already defined", cls.Name())
	}
	m.classes[cls.Name()] = &classState{class: cls}
	return nil
}

// Class returns a defined class.
func (m *Machine) Class(name string) (*classfile.Class, bool) {
	s, ok := m.classes[name]
	if !ok {
		return nil, false
	}
	return s.class, true
}

// New allocates an instance of a defined class and runs its no-argument
// constructor.
func (m *Machine) New(class string) (*Object, error) {
	return m.NewWith(class, "()V")
}

// NewWith allocates an instance and runs the constructor with descriptor
// desc.
func (m *Machine) NewWith(class, desc string, args ...Value) (*Object, error) {
	m.steps = 0
	obj, err := m.allocate(class)
	if err != nil {
		return nil, err
	}
	ref := classfile.MethodRefOf(class, classfile.InstanceInitializer, desc)
	if _, err := m.invokeSpecial(ref, obj, args); err != nil {
		return nil, err
	}
	return obj, nil
}

// Invoke calls owner.name desc. A nil receiver selects a static call;
// otherwise the method is dispatched virtually on receiver.
func (m *Machine) Invoke(owner, name, desc string, receiver Value, args ...Value) (Value, error) {
	m.steps = 0
	ref := classfile.MethodRefOf(owner, name, desc)
	if receiver == nil {
		return m.invokeStatic(ref, args)
	}
	return m.invokeVirtual(ref, receiver, args)
}

// Static returns the value of a static field, initializing its class.
func (m *Machine) Static(class, field string) (Value, error) {
	s, err := m.initialize(class)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("class %s not defined", class)
	}
	v, ok := s.statics[field]
	if !ok {
		return nil, fmt.Errorf("class %s has no static field %s", class, field)
	}
	return v, nil
}

// initialize runs class's static initializer once, superclass first.
// Undefined classes return nil without error.
func (m *Machine) initialize(class string) (*classState, error) {
	s, ok := m.classes[class]
	if !ok {
		return nil, nil
	}
	if s.init != uninitialized {
		return s, nil
	}
	s.init = initializing
	s.statics = make(map[string]Value)
	for _, f := range s.class.Fields {
		if !f.Access.IsStatic() {
			continue
		}
		v, err := constantValue(s.class, f)
		if err != nil {
			return nil, err
		}
		s.statics[f.Name] = v
	}
	if super := s.class.SuperName(); super != "" {
		if _, err := m.initialize(super); err != nil {
			return nil, err
		}
	}
	if clinit := s.class.Method(classfile.ClassInitializer, "()V"); clinit != nil && clinit.Code != nil {
		m.log.Debug().Str("class", class).Msg("running static initializer")
		if _, err := m.execute(s.class, clinit, nil); err != nil {
			return nil, err
		}
	}
	s.init = initialized
	return s, nil
}

// constantValue returns a static field's ConstantValue or its zero value.
func constantValue(c *classfile.Class, f *classfile.Field) (Value, error) {
	for _, a := range f.Attributes {
		if a.Name != "ConstantValue" || len(a.Data) != 2 {
			continue
		}
		index := uint16(a.Data[0])<<8 | uint16(a.Data[1])
		return loadConstant(c.Pool, index)
	}
	return zero(f.Desc), nil
}

func (m *Machine) allocate(class string) (*Object, error) {
	s, err := m.initialize(class)
	if err != nil {
		return nil, err
	}
	m.nextID++
	obj := &Object{ClassName: class, Fields: make(map[string]Value), id: m.nextID}
	if s == nil {
		if !nativeClass(class) {
			return nil, &LinkageError{Ref: classfile.MemberRef{Owner: class}, Reason: "class not defined"}
		}
		if class == stringBuilder {
			obj.Native = &builder{}
		}
		return obj, nil
	}
	obj.Class = s.class
	for c := s.class; c != nil; c = m.super(c) {
		for _, f := range c.Fields {
			if !f.Access.IsStatic() {
				obj.Fields[f.Name] = zero(f.Desc)
			}
		}
	}
	return obj, nil
}

// super returns c's superclass when it is defined.
func (m *Machine) super(c *classfile.Class) *classfile.Class {
	if s, ok := m.classes[c.SuperName()]; ok {
		return s.class
	}
	return nil
}

// supers lists class and its ancestors by name, ending with
// java/lang/Object. Undefined ancestors continue through the native
// hierarchy.
func (m *Machine) supers(class string) []string {
	var out []string
	for name := class; name != ""; {
		out = append(out, name)
		if s, ok := m.classes[name]; ok {
			name = s.class.SuperName()
			continue
		}
		name = nativeSuper(name)
	}
	return out
}

func (m *Machine) instanceOf(v Value, class string) bool {
	if v == nil {
		return false
	}
	if class == objectClass {
		return true
	}
	var name string
	switch v := v.(type) {
	case *Object:
		name = v.ClassName
	case string:
		name = "java/lang/String"
	case *Array:
		return class == "["+v.Elem || class == "java/lang/Cloneable"
	case Boxed:
		name = boxClasses[v.Type]
	case *ClassValue:
		name = "java/lang/Class"
	case hooks.Loggable:
		name = loggerClass
	default:
		return false
	}
	for _, s := range m.supers(name) {
		if s == class {
			return true
		}
	}
	return false
}

func (m *Machine) logger(name string) *Logger {
	if l, ok := m.loggers[name]; ok {
		return l
	}
	l := &Logger{name: name, out: m.stderr}
	m.loggers[name] = l
	return l
}
