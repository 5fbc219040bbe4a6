package vm

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/roach88/classweave/internal/hooks"
)

const (
	objectClass   = "java/lang/Object"
	stringClass   = "java/lang/String"
	stringBuilder = "java/lang/StringBuilder"
	loggerClass   = "java/util/logging/Logger"
	printStream   = "java/io/PrintStream"
	throwable     = "java/lang/Throwable"
	nullPointer   = "java/lang/NullPointerException"
	arithmetic    = "java/lang/ArithmeticException"
	outOfBounds   = "java/lang/ArrayIndexOutOfBoundsException"
	negativeSize  = "java/lang/NegativeArraySizeException"
	classCast     = "java/lang/ClassCastException"

	messageField = "detailMessage"
)

// native implements a library method. recv is nil for static methods.
type native func(m *Machine, recv Value, args []Value) (Value, error)

// nativeSupers is the library class hierarchy below java/lang/Object.
var nativeSupers = map[string]string{
	stringClass:                           objectClass,
	stringBuilder:                         objectClass,
	loggerClass:                           objectClass,
	printStream:                           objectClass,
	"java/lang/Class":                     objectClass,
	"java/lang/System":                    objectClass,
	"java/lang/Number":                    objectClass,
	"java/lang/Boolean":                   objectClass,
	"java/lang/Character":                 objectClass,
	"java/lang/Byte":                      "java/lang/Number",
	"java/lang/Short":                     "java/lang/Number",
	"java/lang/Integer":                   "java/lang/Number",
	"java/lang/Long":                      "java/lang/Number",
	"java/lang/Float":                     "java/lang/Number",
	"java/lang/Double":                    "java/lang/Number",
	throwable:                             objectClass,
	"java/lang/Exception":                 throwable,
	"java/lang/Error":                     throwable,
	"java/lang/StackOverflowError":        "java/lang/Error",
	"java/lang/RuntimeException":          "java/lang/Exception",
	"java/lang/IllegalStateException":     "java/lang/RuntimeException",
	"java/lang/IllegalArgumentException":  "java/lang/RuntimeException",
	"java/lang/IndexOutOfBoundsException": "java/lang/RuntimeException",
	nullPointer:                           "java/lang/RuntimeException",
	arithmetic:                            "java/lang/RuntimeException",
	outOfBounds:                           "java/lang/IndexOutOfBoundsException",
	negativeSize:                          "java/lang/RuntimeException",
	classCast:                             "java/lang/RuntimeException",
}

func nativeClass(name string) bool {
	_, ok := nativeSupers[name]
	return ok || name == objectClass
}

func nativeSuper(name string) string { return nativeSupers[name] }

var boxClasses = map[byte]string{
	'Z': "java/lang/Boolean",
	'B': "java/lang/Byte",
	'C': "java/lang/Character",
	'S': "java/lang/Short",
	'I': "java/lang/Integer",
	'J': "java/lang/Long",
	'F': "java/lang/Float",
	'D': "java/lang/Double",
}

// builder is a StringBuilder's buffer.
type builder struct{ strings.Builder }

// Logger is the machine's java.util.logging.Logger. It writes
// "INFO: name: msg" lines to the machine's stderr.
type Logger struct {
	name string
	out  *PrintStream
}

var _ hooks.Loggable = (*Logger)(nil)

// Name implements hooks.Loggable.
func (l *Logger) Name() string { return l.name }

// Info implements hooks.Loggable.
func (l *Logger) Info(msg string) {
	l.out.println("INFO: " + l.name + ": " + msg)
}

// PrintStream is System.out or System.err.
type PrintStream struct {
	w io.Writer
}

func (p *PrintStream) println(s string) { fmt.Fprintln(p.w, s) }

func (p *PrintStream) print(s string) { fmt.Fprint(p.w, s) }

// throw builds a Thrown carrying a new exception of class.
func (m *Machine) throw(class, msg string) *Thrown {
	m.nextID++
	ex := &Object{ClassName: class, Fields: map[string]Value{messageField: nil}, id: m.nextID}
	if msg != "" {
		ex.Fields[messageField] = msg
	}
	return &Thrown{Exception: ex}
}

var natives = map[string]native{}

func def(key string, fn native) { natives[key] = fn }

func noop(*Machine, Value, []Value) (Value, error) { return nil, nil }

func init() {
	def("java/lang/Object.<init>()V", noop)
	def("java/lang/Object.toString()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return javaString(recv), nil
	})
	def("java/lang/Object.hashCode()I", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		if o, ok := recv.(*Object); ok {
			return int32(o.id), nil
		}
		return int32(0), nil
	})
	def("java/lang/Object.equals(Ljava/lang/Object;)Z", func(_ *Machine, recv Value, args []Value) (Value, error) {
		return boolValue(equalValues(recv, args[0])), nil
	})
	def("java/lang/Object.getClass()Ljava/lang/Class;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		switch v := recv.(type) {
		case *Object:
			return &ClassValue{Name: v.ClassName}, nil
		case string:
			return &ClassValue{Name: stringClass}, nil
		}
		return &ClassValue{Name: objectClass}, nil
	})

	def("java/lang/Class.getName()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return dotted(recv.(*ClassValue).Name), nil
	})
	def("java/lang/Class.getSimpleName()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		name := recv.(*ClassValue).Name
		return name[strings.LastIndexByte(name, '/')+1:], nil
	})

	defStrings()
	defBuilder()
	defBoxes()
	defThrowables()

	def("java/util/logging/Logger.getLogger(Ljava/lang/String;)Ljava/util/logging/Logger;", func(m *Machine, _ Value, args []Value) (Value, error) {
		name, _ := args[0].(string)
		return m.logger(name), nil
	})
	def("java/util/logging/Logger.getName()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return recv.(hooks.Loggable).Name(), nil
	})
	def("java/util/logging/Logger.info(Ljava/lang/String;)V", func(_ *Machine, recv Value, args []Value) (Value, error) {
		l, ok := recv.(hooks.Loggable)
		if !ok {
			return nil, fmt.Errorf("receiver %T is not a logger", recv)
		}
		l.Info(javaString(args[0]))
		return nil, nil
	})

	for _, desc := range []string{"Ljava/lang/String;", "Ljava/lang/Object;", "I", "J", "Z", "D"} {
		desc := desc
		def("java/io/PrintStream.println("+desc+")V", func(_ *Machine, recv Value, args []Value) (Value, error) {
			recv.(*PrintStream).println(javaString(printable(desc, args[0])))
			return nil, nil
		})
		def("java/io/PrintStream.print("+desc+")V", func(_ *Machine, recv Value, args []Value) (Value, error) {
			recv.(*PrintStream).print(javaString(printable(desc, args[0])))
			return nil, nil
		})
	}
	def("java/io/PrintStream.println()V", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		recv.(*PrintStream).println("")
		return nil, nil
	})
}

// printable boxes booleans so they print as true/false.
func printable(desc string, v Value) Value {
	if desc == "Z" {
		return Boxed{Type: 'Z', Value: v}
	}
	return v
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func equalValues(a, b Value) bool {
	if ab, ok := a.(Boxed); ok {
		bb, ok := b.(Boxed)
		return ok && ab == bb
	}
	return a == b
}

func defStrings() {
	def("java/lang/String.length()I", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return int32(len(utf16.Encode([]rune(recv.(string))))), nil
	})
	def("java/lang/String.isEmpty()Z", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return boolValue(recv.(string) == ""), nil
	})
	def("java/lang/String.concat(Ljava/lang/String;)Ljava/lang/String;", func(m *Machine, recv Value, args []Value) (Value, error) {
		if args[0] == nil {
			return nil, m.throw(nullPointer, "")
		}
		return recv.(string) + args[0].(string), nil
	})
	def("java/lang/String.equals(Ljava/lang/Object;)Z", func(_ *Machine, recv Value, args []Value) (Value, error) {
		s, ok := args[0].(string)
		return boolValue(ok && s == recv.(string)), nil
	})
	def("java/lang/String.toString()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return recv, nil
	})
	def("java/lang/String.valueOf(Ljava/lang/Object;)Ljava/lang/String;", func(_ *Machine, _ Value, args []Value) (Value, error) {
		return javaString(args[0]), nil
	})
	def("java/lang/String.valueOf(I)Ljava/lang/String;", func(_ *Machine, _ Value, args []Value) (Value, error) {
		return javaString(args[0]), nil
	})
	def("java/lang/System.currentTimeMillis()J", func(*Machine, Value, []Value) (Value, error) {
		return int64(0), nil
	})
}

func defBuilder() {
	def("java/lang/StringBuilder.<init>()V", noop)
	def("java/lang/StringBuilder.<init>(Ljava/lang/String;)V", func(_ *Machine, recv Value, args []Value) (Value, error) {
		recv.(*Object).Native.(*builder).WriteString(javaString(args[0]))
		return nil, nil
	})
	appendDescs := map[string]func(Value) string{
		"Ljava/lang/String;": javaString,
		"Ljava/lang/Object;": javaString,
		"I":                  javaString,
		"J":                  javaString,
		"F":                  javaString,
		"D":                  javaString,
		"Z":                  func(v Value) string { return Boxed{Type: 'Z', Value: v}.String() },
		"C":                  func(v Value) string { return string(rune(v.(int32))) },
	}
	for desc, conv := range appendDescs {
		desc, conv := desc, conv
		def("java/lang/StringBuilder.append("+desc+")Ljava/lang/StringBuilder;", func(_ *Machine, recv Value, args []Value) (Value, error) {
			recv.(*Object).Native.(*builder).WriteString(conv(args[0]))
			return recv, nil
		})
	}
	def("java/lang/StringBuilder.toString()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return recv.(*Object).Native.(*builder).String(), nil
	})
	def("java/lang/StringBuilder.length()I", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return int32(len(utf16.Encode([]rune(recv.(*Object).Native.(*builder).String())))), nil
	})
}

func defBoxes() {
	unbox := map[byte]string{'Z': "booleanValue", 'B': "byteValue", 'C': "charValue", 'S': "shortValue", 'I': "intValue", 'J': "longValue", 'F': "floatValue", 'D': "doubleValue"}
	for t, class := range boxClasses {
		t, class := t, class
		desc := string(t)
		def(class+".valueOf("+desc+")L"+class+";", func(_ *Machine, _ Value, args []Value) (Value, error) {
			return Boxed{Type: t, Value: args[0]}, nil
		})
		def(class+"."+unbox[t]+"()"+desc, func(_ *Machine, recv Value, _ []Value) (Value, error) {
			return recv.(Boxed).Value, nil
		})
		def(class+".toString()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
			return recv.(Boxed).String(), nil
		})
	}
}

func defThrowables() {
	def("java/lang/Throwable.<init>()V", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		recv.(*Object).Fields[messageField] = nil
		return nil, nil
	})
	def("java/lang/Throwable.<init>(Ljava/lang/String;)V", func(_ *Machine, recv Value, args []Value) (Value, error) {
		recv.(*Object).Fields[messageField] = args[0]
		return nil, nil
	})
	def("java/lang/Throwable.getMessage()Ljava/lang/String;", func(_ *Machine, recv Value, _ []Value) (Value, error) {
		return recv.(*Object).Fields[messageField], nil
	})
}
