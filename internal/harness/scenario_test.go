package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "hello_world.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hello_world", s.Name)
	assert.Equal(t, []string{"hello_world"}, s.Fixtures)
	require.Len(t, s.Flow, 2)
	assert.Equal(t, "ctransform/HelloWorld", s.Flow[0].New)

	owner, method := s.Flow[1].Target()
	assert.Equal(t, "ctransform/HelloWorld", owner)
	assert.Equal(t, "hello", method)
	assert.Equal(t, []string{"<init>", "hello", "foo", "bar", "staticMethod"}, s.Assertions[1].Names)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: typo
description: d
fixture: hello_world
assertions:
  - type: wrap_count
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	const head = "name: n\ndescription: d\nfixtures: [hello_world]\n"
	const wrap = "assertions:\n  - type: wrap_count\n"

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "description: d\nfixtures: [hello_world]\n" + wrap, "name is required"},
		{"no description", "name: n\nfixtures: [hello_world]\n" + wrap, "description is required"},
		{"no fixtures", "name: n\ndescription: d\n" + wrap, "fixtures list is required"},
		{"unknown fixture", "name: n\ndescription: d\nfixtures: [nope]\n" + wrap, `unknown fixture "nope"`},
		{"bad arity", "name: n\ndescription: d\nfixtures: ['arity:x']\n" + wrap, "parameter count"},
		{"no assertions", head, "assertions list is required"},
		{"empty step", head + "flow:\n  - desc: ()V\n" + wrap, "flow[0]: new or invoke is required"},
		{"both", head + "flow:\n  - new: A\n    invoke: A.b\n" + wrap, "mutually exclusive"},
		{"new with args", head + "flow:\n  - new: A\n    args: [1]\n" + wrap, "new takes no"},
		{"no owner", head + "flow:\n  - invoke: hello\n    desc: ()V\n" + wrap, "owner.method"},
		{"no desc", head + "flow:\n  - invoke: A.b\n" + wrap, "desc is required"},
		{"return and throws", head + "flow:\n  - invoke: A.b\n    desc: ()I\n    expect: {return: '1', throws: X}\n" + wrap, "flow[0].expect"},
		{"no type", head + "assertions:\n  - name: x\n", "type is required"},
		{"unknown type", head + "assertions:\n  - type: nope\n", `unknown assertion type "nope"`},
		{"log_contains", head + "assertions:\n  - type: log_contains\n", "name is required for log_contains"},
		{"log_order", head + "assertions:\n  - type: log_order\n", "names list is required"},
		{"log_count", head + "assertions:\n  - type: log_count\n    name: x\n    count: -1\n", "count must be non-negative"},
		{"info_contains", head + "assertions:\n  - type: info_contains\n", "text is required"},
		{"member", head + "assertions:\n  - type: member\n    class: A\n", "class and member are required"},
		{"outcome", head + "assertions:\n  - type: member\n    class: A\n    member: b()V\n    outcome: gone\n", `unknown outcome "gone"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_AllTestdata(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}
