package guard

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitives(t *testing.T) {
	testCases := []struct {
		name      string
		validator Validator
		accept    []any
		reject    []any
	}{
		{"string", String(), []any{"", "asdf"}, []any{123, nil, []byte("x")}},
		{"number", Number(), []any{0, -123, 123, uint8(3), 1.5, float32(2)}, []any{"123", nil, math.NaN()}},
		{"bool", Bool(), []any{true, false}, []any{"true", 1}},
		{"null", Null(), []any{nil, []string(nil), map[string]any(nil)}, []any{"", 0}},
		{"func", Func(), []any{func() {}, fmt.Sprintf}, []any{nil, "f"}},
		{"literal", Literal("sm"), []any{"sm"}, []any{"lg", nil, 3}},
		{"literal nil", Literal(nil), []any{nil}, []any{"nil"}},
		{"any", Any(), []any{nil, 1, "x"}, nil},
		{"is stringer", Is[fmt.Stringer](), []any{stringer("x")}, []any{"x", nil}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, v := range tc.accept {
				assert.NoError(t, tc.validator.Validate(v), "%#v should be accepted", v)
			}
			for _, v := range tc.reject {
				assert.Error(t, tc.validator.Validate(v), "%#v should be rejected", v)
			}
		})
	}
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestLiteralUncomparable(t *testing.T) {
	v := Literal(map[string]int{"a": 1})
	assert.NotPanics(t, func() {
		assert.Error(t, v.Validate(map[string]int{"a": 1}))
	})
}

func TestObject(t *testing.T) {
	schema := Object(Shape{
		"num": Number(),
		"str": String(),
		"arr": Array(String()),
		"obj": Object(Shape{"str": String()}),
		"opt": Optional(String()),
	})

	ok := map[string]any{
		"num": 123,
		"str": "example string",
		"arr": []string{"arr element 1", "arr element 2"},
		"obj": map[string]any{"str": "obj.str", "extra": true},
	}
	require.NoError(t, schema.Validate(ok))

	err := schema.Validate(map[string]any{
		"num": "nope",
		"arr": []any{"a", 2},
		"obj": map[string]any{},
		"opt": 5,
	})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "num: number expected, got string")
	assert.Contains(t, msg, "str: required")
	assert.Contains(t, msg, "arr[1]: string expected, got int")
	assert.Contains(t, msg, "obj.str: required")
	assert.Contains(t, msg, "opt: string expected, got int")

	assert.Error(t, schema.Validate(nil))
	assert.Error(t, schema.Validate("not an object"))
}

type namedProps map[string]any

func TestObjectAcceptsNamedMapTypes(t *testing.T) {
	schema := Object(Shape{"title": String()})
	assert.NoError(t, schema.Validate(namedProps{"title": "x"}))
}

func TestNullishAndUnion(t *testing.T) {
	size := Union(Literal("sm"), Literal("lg"))
	assert.NoError(t, size.Validate("lg"))
	err := size.Validate("md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no union member matched")

	nullable := Nullish(String())
	assert.NoError(t, nullable.Validate(nil))
	assert.NoError(t, nullable.Validate("x"))
	assert.False(t, nullable.IsOptional())
	assert.True(t, Nullish(Optional(String())).IsOptional())
}

func TestTuple(t *testing.T) {
	pair := Tuple(String(), Number())
	assert.NoError(t, pair.Validate([]any{"a", 1}))
	assert.Error(t, pair.Validate([]any{"a"}))
	err := pair.Validate([]any{1, "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[0]: string expected")
	assert.Contains(t, err.Error(), "[1]: number expected")
}

func TestOptionalOnlyAffectsAbsence(t *testing.T) {
	schema := Object(Shape{"title": Optional(String())})
	assert.NoError(t, schema.Validate(map[string]any{}))
	assert.Error(t, schema.Validate(map[string]any{"title": nil}))
}
