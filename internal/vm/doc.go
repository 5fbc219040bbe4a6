// Package vm executes class files produced by the engine.
//
// The machine interprets a practical subset of the JVM instruction set:
// integer, long, float, and double arithmetic, control flow including
// switches and exception handlers, fields, arrays, and the four invoke
// forms. invokedynamic and jsr/ret are rejected with an
// UnsupportedInstructionError.
//
// Classes outside the defined set resolve to a small library of natives
// (java/lang/Object, String, StringBuilder, the boxing wrappers,
// java/util/logging/Logger, PrintStream, and the common exceptions). When a
// hooks.Runtime is installed, invokestatic calls to the wrapper factory and
// the log sink are routed to it instead of being resolved as classes.
//
// # Values
//
// Operand stack and local values are Go values:
//
//	int, short, char, byte, boolean   int32
//	long                              int64
//	float                             float32
//	double                            float64
//	null                              nil
//	java/lang/String                  string
//	arrays                            *Array
//	boxed primitives                  Boxed
//	class literals                    *ClassValue
//	instances                         *Object
//
// Long and double values occupy a single stack entry; locals reserve the
// following slot as the JVM does.
package vm
