package node

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/markup/internal/errors"
)

// AppendChildren converts v into child nodes and appends them to dst.
//
// nil and bools contribute nothing, strings become Text, numbers become Text
// in canonical decimal form, nodes are kept, slices and arrays are flattened
// in order, templ components become invocations rendering into SafeText and
// fmt.Stringers become Text. Any other value is rejected.
func AppendChildren(dst []Node, v any) ([]Node, error) {
	switch c := v.(type) {
	case nil, bool:
		return dst, nil
	case string:
		return append(dst, Text(c)), nil
	case []byte:
		return append(dst, Text(c)), nil
	case Fragment:
		return append(dst, c...), nil
	case Node:
		if isNilNode(c) {
			return dst, nil
		}
		return append(dst, c), nil
	case []Node:
		return append(dst, c...), nil
	case templ.Component:
		return append(dst, FromTempl(c)), nil
	case fmt.Stringer:
		return append(dst, Text(c.String())), nil
	}

	if s, ok := FormatNumber(v); ok {
		return append(dst, Text(s)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var err error
		for i := 0; i < rv.Len(); i++ {
			if dst, err = AppendChildren(dst, rv.Index(i).Interface()); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case reflect.String:
		return append(dst, Text(rv.String())), nil
	case reflect.Bool:
		return dst, nil
	case reflect.Pointer, reflect.Map, reflect.Interface:
		if rv.IsNil() {
			return dst, nil
		}
	}
	return nil, errors.ErrInvalidChild(v)
}

// Children converts every value into child nodes.
func Children(values ...any) ([]Node, error) {
	out := make([]Node, 0, len(values))
	var err error
	for _, v := range values {
		if out, err = AppendChildren(out, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func isNilNode(n Node) bool {
	switch c := n.(type) {
	case *Element:
		return c == nil
	case *Invocation:
		return c == nil
	case *Invalid:
		return c == nil
	}
	return false
}

// FormatNumber returns the canonical decimal form of an integer or floating
// point value. Whole floats print without a fraction, magnitudes of 1e21 and
// above or below 1e-6 use exponent notation, and non-finite values print as
// NaN, Infinity or -Infinity.
func FormatNumber(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return formatFloat(rv.Float(), 32), true
	case reflect.Float64:
		return formatFloat(rv.Float(), 64), true
	}
	return "", false
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, bits)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + string(sign) + exp
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// Stringify returns the text used when v is concatenated into an attribute
// value.
func Stringify(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case bool:
		return strconv.FormatBool(c)
	case fmt.Stringer:
		return c.String()
	}
	if s, ok := FormatNumber(v); ok {
		return s
	}
	return fmt.Sprint(v)
}
