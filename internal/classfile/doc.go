// Package classfile provides the structural model for JVM class files.
//
// Parse decodes a class file into an order-preserving model: constant pool,
// fields, methods and, for every method with a body, an instruction stream
// whose branch targets, exception ranges and debug tables refer to shared
// labels instead of byte offsets. Write serializes the model back.
//
// Round-trip guarantee: members whose code was never mutated are written from
// the raw bytes retained at parse time, so Parse followed by Write reproduces
// the input byte for byte.
//
// Mutated bodies are re-assembled: symbolic references are interned into the
// constant pool, offsets are laid out again (switch padding, ldc promotion,
// wide forms), every offset-bearing table is remapped and max_stack is
// recomputed by a stack-depth analysis. An unbalanced body fails Write with a
// ComputeError.
package classfile
