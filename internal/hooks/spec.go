package hooks

import (
	"strings"

	"github.com/roach88/classweave/internal/classfile"
)

const (
	// DefaultModule is the hook module used when none is configured.
	DefaultModule = "at/rseiler/concept"

	// DefaultLoggableType is the field descriptor FieldWrap targets by default.
	DefaultLoggableType = "Ljava/util/logging/Logger;"

	// LogDescriptor is the descriptor of the log sink.
	LogDescriptor = "(Ljava/lang/String;[Ljava/lang/Object;)V"
)

// Target names a static method inside the hook module.
type Target struct {
	Class  string `yaml:"class" json:"class"`
	Method string `yaml:"method" json:"method"`
}

// Default hook targets.
var (
	DefaultWrap = Target{Class: "LoggerWrapper", Method: "logger"}
	DefaultLog  = Target{Class: "MethodLogger", Method: "log"}
)

// Spec is the resolved hook configuration for one run.
type Spec struct {
	Module       string
	LoggableType string
	Wrap         Target
	Log          Target
}

// NewSpec returns a Spec with default targets. Empty arguments fall back to
// DefaultModule and DefaultLoggableType.
func NewSpec(module, loggableType string) Spec {
	if module == "" {
		module = DefaultModule
	}
	if loggableType == "" {
		loggableType = DefaultLoggableType
	}
	return Spec{
		Module:       strings.TrimSuffix(module, "/"),
		LoggableType: loggableType,
		Wrap:         DefaultWrap,
		Log:          DefaultLog,
	}
}

func (s Spec) owner(t Target) string {
	return s.Module + "/" + t.Class
}

// WrapRef is the wrapper factory: a static method taking and returning the
// loggable type.
func (s Spec) WrapRef() classfile.MemberRef {
	return classfile.MethodRefOf(s.owner(s.Wrap), s.Wrap.Method, "("+s.LoggableType+")"+s.LoggableType)
}

// LogRef is the log sink.
func (s Spec) LogRef() classfile.MemberRef {
	return classfile.MethodRefOf(s.owner(s.Log), s.Log.Method, LogDescriptor)
}
