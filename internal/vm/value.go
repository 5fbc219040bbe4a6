package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/classweave/internal/classfile"
)

// Value is any value the machine can hold.
type Value = any

// Object is an instance of a defined class or of a native library class.
type Object struct {
	// Class is set for instances of defined classes.
	Class *classfile.Class

	// ClassName is the internal name of the instance's class.
	ClassName string

	Fields map[string]Value

	// Native holds library state, such as a StringBuilder's buffer.
	Native any

	id int
}

// String renders the object the way Object.toString does.
func (o *Object) String() string {
	if o.Native != nil {
		if s, ok := o.Native.(fmt.Stringer); ok {
			return s.String()
		}
	}
	if msg, ok := o.Fields[messageField]; ok {
		if msg == nil {
			return dotted(o.ClassName)
		}
		return dotted(o.ClassName) + ": " + javaString(msg)
	}
	return dotted(o.ClassName) + "@" + strconv.FormatInt(int64(o.id), 16)
}

// Array is a Java array. Elem is the component's field descriptor.
type Array struct {
	Elem   string
	Values []Value
}

// String renders the array's elements, for diagnostics.
func (a *Array) String() string {
	parts := make([]string, len(a.Values))
	for i, v := range a.Values {
		parts[i] = javaString(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Boxed is a primitive wrapped by valueOf. Type is the primitive's
// descriptor.
type Boxed struct {
	Type  byte
	Value Value
}

// String renders the wrapped value as its wrapper's toString does.
func (b Boxed) String() string {
	switch b.Type {
	case 'Z':
		return strconv.FormatBool(b.Value.(int32) != 0)
	case 'C':
		return string(rune(b.Value.(int32)))
	}
	return javaString(b.Value)
}

// ClassValue is a class literal.
type ClassValue struct {
	Name string
}

// String renders "class a.b.C".
func (c *ClassValue) String() string { return "class " + dotted(c.Name) }

func dotted(name string) string { return strings.ReplaceAll(name, "/", ".") }

// zero returns the default value of a field of type desc.
func zero(desc string) Value {
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return int32(0)
	case 'J':
		return int64(0)
	case 'F':
		return float32(0)
	case 'D':
		return float64(0)
	}
	return nil
}

func wide(v Value) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// Format renders v the way String.valueOf would.
func Format(v Value) string { return javaString(v) }

// Coerce converts a host value to the machine representation of a
// parameter of type desc. Strings are parsed for primitive types, so
// command-line text and decoded YAML both work.
func Coerce(desc string, v any) (Value, error) {
	if desc == "" {
		return nil, fmt.Errorf("empty descriptor")
	}
	switch desc[0] {
	case 'Z':
		switch v := v.(type) {
		case bool:
			return boolInt(v), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", v)
			}
			return boolInt(b), nil
		}
	case 'C':
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) == 1 {
			r, _ := utf8.DecodeRuneInString(s)
			return int32(r), nil
		}
		n, err := hostInt(v, 16)
		return int32(n), err
	case 'B':
		n, err := hostInt(v, 8)
		return int32(n), err
	case 'S':
		n, err := hostInt(v, 16)
		return int32(n), err
	case 'I':
		n, err := hostInt(v, 32)
		return int32(n), err
	case 'J':
		return hostInt(v, 64)
	case 'F':
		f, err := hostFloat(v, 32)
		return float32(f), err
	case 'D':
		return hostFloat(v, 64)
	case 'L', '[':
		if v == nil {
			return nil, nil
		}
		if s, ok := v.(string); ok {
			switch desc {
			case "Ljava/lang/String;", "Ljava/lang/Object;", "Ljava/lang/CharSequence;":
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot pass %T as %s", v, desc)
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func hostInt(v any, bits int) (int64, error) {
	var n int64
	switch v := v.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		n = int64(v)
	case string:
		p, err := strconv.ParseInt(v, 10, bits)
		if err != nil {
			return 0, fmt.Errorf("%q is not a %d-bit integer", v, bits)
		}
		return p, nil
	default:
		return 0, fmt.Errorf("cannot pass %T as an integer", v)
	}
	if bits < 64 && (n < -(1<<(bits-1)) || n >= 1<<(bits-1)) {
		return 0, fmt.Errorf("%d overflows %d bits", n, bits)
	}
	return n, nil
}

func hostFloat(v any, bits int) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, bits)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot pass %T as a float", v)
}

// javaString converts v to the text String.valueOf would produce.
func javaString(v Value) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// hostValue converts v for a hooks.Runtime: boxes unwrap to Go values,
// arrays become []any, and everything else passes through. Arrays that
// contain themselves convert to slices that contain themselves.
func hostValue(v Value, seen map[*Array][]any) any {
	switch v := v.(type) {
	case Boxed:
		switch v.Type {
		case 'Z':
			return v.Value.(int32) != 0
		case 'C':
			return string(rune(v.Value.(int32)))
		}
		return v.Value
	case *Array:
		if out, ok := seen[v]; ok {
			return out
		}
		out := make([]any, len(v.Values))
		seen[v] = out
		for i, e := range v.Values {
			out[i] = hostValue(e, seen)
		}
		return out
	}
	return v
}
