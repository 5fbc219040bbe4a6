package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/testutil"
)

// fixture resolves a fixture name to its class builder. arity takes the
// parameter count after a colon.
func fixture(name string) (*classfile.Builder, error) {
	base, param, hasParam := strings.Cut(name, ":")
	switch base {
	case "hello_world":
		if hasParam {
			break
		}
		return testutil.HelloWorldBuilder(), nil
	case "mixed":
		if hasParam {
			break
		}
		return testutil.MixedBuilder(), nil
	case "arity":
		n, err := strconv.Atoi(param)
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("fixture %q: arity takes a parameter count 0..255", name)
		}
		return testutil.ArityBuilder(n), nil
	}
	return nil, fmt.Errorf("unknown fixture %q", name)
}
