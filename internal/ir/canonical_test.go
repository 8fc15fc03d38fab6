package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"bool true", IRBool(true), "true"},
		{"null", IRNull{}, "null"},
		{"go nil", nil, "null"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array with null", IRArray{IRInt(1), IRNull{}}, "[1,null]"},
		{"simple object", IRObject{"a": IRInt(1)}, `{"a":1}`},
		{"go map", map[string]any{"b": "x", "a": 1}, `{"a":1,"b":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := IRObject{
		"z": IRObject{"b": IRInt(1), "a": IRInt(2)},
		"a": IRInt(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair 0xD800 0xDC00, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<script>a & b</script>"))
	require.NoError(t, err)
	assert.Equal(t, `"<script>a & b</script>"`, string(result))
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	for _, input := range []any{float64(3.14), float32(3.14), []any{1, 2.5}} {
		_, err := MarshalCanonical(input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "float")
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00E9"
	decomposed := "cafe\u0301"

	result1, err := MarshalCanonical(IRObject{composed: IRString(composed)})
	require.NoError(t, err)
	result2, err := MarshalCanonical(IRObject{decomposed: IRString(decomposed)})
	require.NoError(t, err)

	assert.Equal(t, result1, result2)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(IRString("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(IRString(`x\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(result))
}

func TestMarshalCanonicalIdempotency(t *testing.T) {
	testCases := []IRValue{
		IRString("hello"),
		IRInt(42),
		IRNull{},
		IRArray{IRInt(1), IRString("two"), IRBool(false)},
		IRObject{"nested": IRObject{"array": IRArray{IRInt(1), IRNull{}}}},
	}

	for _, original := range testCases {
		canonical1, err := MarshalCanonical(original)
		require.NoError(t, err)

		val, err := UnmarshalIRValue(canonical1)
		require.NoError(t, err)

		canonical2, err := MarshalCanonical(val)
		require.NoError(t, err)
		assert.Equal(t, canonical1, canonical2)
	}
}

func TestHashDomainSeparation(t *testing.T) {
	v := IRObject{"a": IRInt(1)}

	exprID, err := Hash(DomainExpression, v)
	require.NoError(t, err)
	planID, err := Hash(DomainPlan, v)
	require.NoError(t, err)

	assert.Len(t, exprID, 64)
	assert.NotEqual(t, exprID, planID)
	again, err := Hash(DomainExpression, IRObject{"a": IRInt(1)})
	require.NoError(t, err)
	assert.Equal(t, exprID, again)
}

func TestHashRejectsFloats(t *testing.T) {
	_, err := Hash(DomainPlan, 1.5)
	require.Error(t, err)
}
