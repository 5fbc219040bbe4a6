package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethodDescriptor(t *testing.T) {
	mt, err := ParseMethodDescriptor("(IJLjava/lang/String;[[D)Ljava/lang/Object;")
	require.NoError(t, err)
	assert.Equal(t, []string{"I", "J", "Ljava/lang/String;", "[[D"}, mt.Params)
	assert.Equal(t, "Ljava/lang/Object;", mt.Return)
	assert.Equal(t, 5, mt.ArgWords())

	mt, err = ParseMethodDescriptor("()V")
	require.NoError(t, err)
	assert.Empty(t, mt.Params)
	assert.Equal(t, "V", mt.Return)

	for _, bad := range []string{"", "V", "(", "(I", "(Q)V", "(L;)V", "(I)VV", "(Ljava/lang/String)V"} {
		_, err := ParseMethodDescriptor(bad)
		assert.Error(t, err, bad)
	}
}

func TestParamSlot(t *testing.T) {
	mt, err := ParseMethodDescriptor("(IJLjava/lang/Object;D)V")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 3, 4}, slots(mt, true))
	assert.Equal(t, []int{1, 2, 4, 5}, slots(mt, false))

	single, err := ParseMethodDescriptor("(Ljava/lang/String;I)V")
	require.NoError(t, err)
	for i := range single.Params {
		assert.Equal(t, i, single.ParamSlot(i, true))
		assert.Equal(t, i+1, single.ParamSlot(i, false))
	}
}

func slots(mt MethodType, static bool) []int {
	out := make([]int, len(mt.Params))
	for i := range mt.Params {
		out[i] = mt.ParamSlot(i, static)
	}
	return out
}

func TestValidFieldDescriptor(t *testing.T) {
	assert.True(t, ValidFieldDescriptor("Ljava/util/logging/Logger;"))
	assert.True(t, ValidFieldDescriptor("[I"))
	assert.False(t, ValidFieldDescriptor("V"))
	assert.False(t, ValidFieldDescriptor("Ljava/lang/String"))
	assert.False(t, ValidFieldDescriptor("II"))
}
