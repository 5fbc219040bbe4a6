// Package hooks describes the two runtime functions instrumented classes
// call, and resolves them to symbolic method references.
//
// The wrapper factory takes a value of the loggable type and returns a
// replacement of the same type. The log sink takes a method name and an
// Object array of argument values. Both live in a hook module: an internal
// package name such as "at/rseiler/concept", under which the wrapper is
// LoggerWrapper.logger and the sink is MethodLogger.log.
//
// Resolution checks a SymbolTable. Exports is a declared table, ClassPath
// indexes compiled hook classes. A symbol that cannot be found yields a
// *LinkError, which aborts a transformation run.
//
// Runtime is the Go-side counterpart used when instrumented classes are
// executed by the vm package: Console mirrors the reference hook classes,
// Recorder captures calls for assertions.
package hooks
