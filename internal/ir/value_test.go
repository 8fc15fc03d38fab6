package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(IRNull{}))
	assert.True(t, IsNull(Null))
	assert.False(t, IsNull(IRString("")))
	assert.False(t, IsNull(IRInt(0)))
	assert.False(t, IsNull(IRObject{}))
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "null", KindName(nil))
	assert.Equal(t, "null", KindName(IRNull{}))
	assert.Equal(t, "string", KindName(IRString("x")))
	assert.Equal(t, "int", KindName(IRInt(1)))
	assert.Equal(t, "bool", KindName(IRBool(false)))
	assert.Equal(t, "array", KindName(IRArray{}))
	assert.Equal(t, "object", KindName(IRObject{}))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want bool
	}{
		{"nulls", IRNull{}, nil, true},
		{"null vs string", IRNull{}, IRString(""), false},
		{"same string", IRString("a"), IRString("a"), true},
		{"int vs string", IRInt(1), IRString("1"), false},
		{"arrays", IRArray{IRInt(1), IRNull{}}, IRArray{IRInt(1), IRNull{}}, true},
		{"array length", IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}, false},
		{"objects", IRObject{"a": IRInt(1)}, IRObject{"a": IRInt(1)}, true},
		{"object keys", IRObject{"a": IRInt(1)}, IRObject{"b": IRInt(1)}, false},
		{"nested", IRObject{"a": IRArray{IRBool(true)}}, IRObject{"a": IRArray{IRBool(true)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a", 0},
		{"aa", "a", 1},
		{"a", "aa", -1},
		{"A", "a", -1},
		{"", "", 0},
		{"", "a", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			result := compareKeysRFC8785(tt.a, tt.b)
			switch {
			case tt.expected < 0:
				assert.Less(t, result, 0)
			case tt.expected > 0:
				assert.Greater(t, result, 0)
			default:
				assert.Equal(t, 0, result)
			}
		})
	}
}

func TestIRNullInObjectRoundTrip(t *testing.T) {
	obj := IRObject{
		"present": IRString("value"),
		"missing": IRNull{},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"missing":null,"present":"value"}`, string(data))

	decoded, err := UnmarshalIRValue(data)
	require.NoError(t, err)

	decodedObj, ok := decoded.(IRObject)
	require.True(t, ok)
	_, isNull := decodedObj["missing"].(IRNull)
	assert.True(t, isNull, "expected IRNull, got %T", decodedObj["missing"])
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple float", `3.14`},
		{"scientific notation", `1e10`},
		{"nested float in object", `{"value": 1.5}`},
		{"array with float", `[1, 2.0, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "float")
		})
	}
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "Ada",
		"age":   36,
		"tags":  []any{"x", true},
		"owner": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"name":  IRString("Ada"),
		"age":   IRInt(36),
		"tags":  IRArray{IRString("x"), IRBool(true)},
		"owner": IRNull{},
	}, v)

	_, err = FromGo(2.5)
	require.Error(t, err)

	_, err = FromGo(struct{}{})
	require.Error(t, err)
}
