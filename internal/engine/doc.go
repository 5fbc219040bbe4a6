// Package engine implements the instrumentation passes and the orchestrator
// that applies them to a parsed class.
//
// ARCHITECTURE:
//
// Two passes are composed as a list. Each pass is a pair of a pure matcher
// and a synthesizer that returns injections without touching the class:
//
//   - FieldWrap: a static field whose descriptor equals the loggable type.
//     Every putstatic to that field inside <clinit> gets an invokestatic of
//     the wrapper factory inserted at the store, so the stored value is the
//     wrapper's return value.
//   - MethodEntryLog: every method with a body except <clinit>. A prologue
//     builds an Object[] of the arguments and calls the log sink with the
//     method name and the array.
//
// Orchestration:
// Engine.Transform visits fields and then methods in declaration order. Each
// member moves through Unvisited -> Matched -> Injected -> Done, or
// Unvisited -> Skipped -> Done when no pass matches or synthesis fails
// recoverably. Injections are applied only after every member has been
// synthesized, so a fatal error leaves instruction streams untouched.
//
// Errors:
//   - classfile.ParseError: input is not a class file. Fatal.
//   - LINK_ERROR: a hook symbol cannot be resolved. Fatal.
//   - UNSUPPORTED_ARITY: more parameters than bipush can index. The method
//     is skipped and the condition is reported in the Result.
//   - ALREADY_INSTRUMENTED: the class carries the marker attribute written
//     by an earlier run. Fatal.
//   - classfile.ComputeError: a rewritten body fails stack analysis. Fatal.
//
// The engine performs no I/O and keeps no state between runs. Distinct
// classes may be transformed concurrently.
package engine
