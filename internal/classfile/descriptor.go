package classfile

import "fmt"

// MethodType is a parsed method descriptor.
type MethodType struct {
	Params []string
	Return string
}

// ParseMethodDescriptor splits a descriptor like "(ILjava/lang/String;)V".
func ParseMethodDescriptor(desc string) (MethodType, error) {
	var mt MethodType
	if len(desc) < 3 || desc[0] != '(' {
		return mt, fmt.Errorf("malformed method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldTypeLen(desc, i)
		if err != nil {
			return mt, err
		}
		mt.Params = append(mt.Params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return mt, fmt.Errorf("malformed method descriptor %q: missing ')'", desc)
	}
	ret := desc[i+1:]
	if ret != "V" {
		n, err := fieldTypeLen(ret, 0)
		if err != nil {
			return mt, fmt.Errorf("malformed method descriptor %q: bad return type", desc)
		}
		if n != len(ret) {
			return mt, fmt.Errorf("malformed method descriptor %q: trailing characters", desc)
		}
	}
	mt.Return = ret
	return mt, nil
}

// ValidFieldDescriptor reports whether desc is exactly one field type.
func ValidFieldDescriptor(desc string) bool {
	n, err := fieldTypeLen(desc, 0)
	return err == nil && n == len(desc)
}

func fieldTypeLen(desc string, i int) (int, error) {
	start := i
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i-start > 255 {
		return 0, fmt.Errorf("descriptor %q exceeds 255 array dimensions", desc)
	}
	if i >= len(desc) {
		return 0, fmt.Errorf("malformed descriptor %q", desc)
	}
	switch desc[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1 - start, nil
	case 'L':
		for j := i + 1; j < len(desc); j++ {
			if desc[j] == ';' {
				if j == i+1 {
					break
				}
				return j + 1 - start, nil
			}
		}
	}
	return 0, fmt.Errorf("malformed descriptor %q at %d", desc, i)
}

// TypeWidth returns the number of local slots or stack words a value of the
// given field type occupies: 2 for long and double, 0 for void, 1 otherwise.
func TypeWidth(t string) int {
	switch t {
	case "J", "D":
		return 2
	case "V", "":
		return 0
	}
	return 1
}

// ArgWords returns the total width of the parameters.
func (mt MethodType) ArgWords() int {
	n := 0
	for _, p := range mt.Params {
		n += TypeWidth(p)
	}
	return n
}

// ParamSlot returns the local slot holding parameter i, given whether the
// method has a receiver in slot 0.
func (mt MethodType) ParamSlot(i int, static bool) int {
	slot := 0
	if !static {
		slot = 1
	}
	for _, p := range mt.Params[:i] {
		slot += TypeWidth(p)
	}
	return slot
}
