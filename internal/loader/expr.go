package loader

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/node"
)

// Resolve evaluates a placeholder expression against scope.
//
// Supported forms are dotted paths (user.name, items.0), quoted strings,
// numbers, true, false and nil. The first name of a path must exist in scope;
// later names that are missing resolve to nil.
func Resolve(expr string, scope map[string]any) (any, error) {
	switch expr {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil", "null":
		return nil, nil
	}
	if n := len(expr); n >= 2 && (expr[0] == '"' || expr[0] == '\'') && expr[n-1] == expr[0] {
		return expr[1 : n-1], nil
	}
	if i, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, nil
	}

	parts := strings.Split(expr, ".")
	for _, part := range parts {
		if !validIdent(part) {
			return nil, unresolved(expr, "invalid expression")
		}
	}

	current, ok := scope[parts[0]]
	if !ok {
		return nil, unresolved(expr, fmt.Sprintf("%q is not defined", parts[0]))
	}
	for _, part := range parts[1:] {
		current = field(current, part)
	}
	return current, nil
}

func unresolved(expr, reason string) *errors.MarkupError {
	return errors.NewMalformedTemplate(errors.ErrCodeUnresolved, reason).WithContext("expr", expr)
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// field looks name up in v: a map key, an exported struct field or a slice
// index. Anything missing is nil.
func field(v any, name string) any {
	switch m := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return m[name]
	case node.Props:
		return m[name]
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		value := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil
		}
		return value.Interface()
	case reflect.Struct:
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanInterface() {
			return nil
		}
		return f.Interface()
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil
		}
		return rv.Index(i).Interface()
	}
	return nil
}
