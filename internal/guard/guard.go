// Package guard provides composable validators describing the accepted shape
// of component props.
//
// Validators are plain values built from combinators:
//
//	card := guard.Object(guard.Shape{
//		"title": guard.String(),
//		"tags":  guard.Optional(guard.Array(guard.String())),
//		"size":  guard.Union(guard.Literal("sm"), guard.Literal("lg")),
//	})
//
// Primitive kinds are resolved statically through the generic Is[T]; shapes
// only known at runtime go through the reflection-based Object, Array and
// Tuple combinators.
package guard

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Validator checks a value against an accepted shape.
type Validator interface {
	// Validate returns nil when v is accepted.
	Validate(v any) error
	// IsOptional reports whether an object field using this validator may
	// be absent.
	IsOptional() bool
}

// FieldError describes a rejected value at a path inside the checked value.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Path + ": " + e.Reason
}

func reject(format string, args ...any) error {
	return &FieldError{Reason: fmt.Sprintf(format, args...)}
}

// prefix re-roots every FieldError in err under path.
func prefix(path string, err error) error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FieldError); ok {
		p := path
		if fe.Path != "" {
			if strings.HasPrefix(fe.Path, "[") {
				p += fe.Path
			} else {
				p += "." + fe.Path
			}
		}
		return &FieldError{Path: p, Reason: fe.Reason}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		out := make([]error, len(errs))
		for i, e := range errs {
			out[i] = prefix(path, e)
		}
		return errors.Join(out...)
	}
	return &FieldError{Path: path, Reason: err.Error()}
}

type predicate struct {
	name     string
	check    func(any) bool
	optional bool
}

func (p predicate) Validate(v any) error {
	if p.check(v) {
		return nil
	}
	return reject("%s expected, got %s", p.name, describe(v))
}

func (p predicate) IsOptional() bool { return p.optional }

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// Is accepts values whose dynamic type is, or implements, T.
func Is[T any]() Validator {
	var zero T
	name := reflect.TypeOf(&zero).Elem().String()
	return predicate{name: name, check: func(v any) bool {
		_, ok := v.(T)
		return ok
	}}
}

// String accepts strings.
func String() Validator { return Is[string]() }

// Bool accepts booleans.
func Bool() Validator { return Is[bool]() }

// Number accepts any integer or floating point value except NaN.
func Number() Validator {
	return predicate{name: "number", check: func(v any) bool {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return true
		case reflect.Float32, reflect.Float64:
			return !math.IsNaN(rv.Float())
		}
		return false
	}}
}

// Null accepts only nil.
func Null() Validator {
	return predicate{name: "nil", check: func(v any) bool { return isNil(v) }}
}

// Func accepts any function value.
func Func() Validator {
	return predicate{name: "func", check: func(v any) bool {
		return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
	}}
}

// Any accepts every value.
func Any() Validator {
	return predicate{name: "any", check: func(any) bool { return true }}
}

// Literal accepts values equal to want.
func Literal(want any) Validator {
	return predicate{name: fmt.Sprintf("%#v", want), check: func(v any) bool {
		if v == nil || want == nil {
			return isNil(v) && want == nil
		}
		if reflect.TypeOf(v) != reflect.TypeOf(want) || !reflect.TypeOf(v).Comparable() {
			return false
		}
		return v == want
	}}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

type optional struct {
	Validator
}

func (optional) IsOptional() bool { return true }

// Optional marks v as allowed to be absent from an object.
func Optional(v Validator) Validator {
	return optional{Validator: v}
}

type union struct {
	options  []Validator
	optional bool
}

func (u union) Validate(v any) error {
	reasons := make([]string, 0, len(u.options))
	for _, option := range u.options {
		err := option.Validate(v)
		if err == nil {
			return nil
		}
		reasons = append(reasons, err.Error())
	}
	return reject("no union member matched (%s)", strings.Join(reasons, " | "))
}

func (u union) IsOptional() bool { return u.optional }

// Union accepts values accepted by any of options.
func Union(options ...Validator) Validator {
	return union{options: options}
}

// Nullish accepts nil in addition to whatever v accepts, and keeps v's
// optionality.
func Nullish(v Validator) Validator {
	return union{options: []Validator{v, Null()}, optional: v.IsOptional()}
}

// Shape maps object keys to validators.
type Shape map[string]Validator

type object struct {
	shape Shape
}

// Object accepts string-keyed maps whose fields satisfy shape. Keys not named
// in shape are ignored.
func Object(shape Shape) Validator {
	return object{shape: shape}
}

func (object) IsOptional() bool { return false }

func (o object) Validate(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return reject("object expected, got %s", describe(v))
	}

	keys := make([]string, 0, len(o.shape))
	for key := range o.shape {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		validator := o.shape[key]
		value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !value.IsValid() {
			if !validator.IsOptional() {
				errs = append(errs, &FieldError{Path: key, Reason: "required"})
			}
			continue
		}
		if err := validator.Validate(value.Interface()); err != nil {
			errs = append(errs, prefix(key, err))
		}
	}
	return errors.Join(errs...)
}

type array struct {
	elem Validator
}

// Array accepts slices and arrays whose every element satisfies elem.
func Array(elem Validator) Validator {
	return array{elem: elem}
}

func (array) IsOptional() bool { return false }

func (a array) Validate(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return reject("array expected, got %s", describe(v))
	}
	var errs []error
	for i := 0; i < rv.Len(); i++ {
		if err := a.elem.Validate(rv.Index(i).Interface()); err != nil {
			errs = append(errs, prefix(fmt.Sprintf("[%d]", i), err))
		}
	}
	return errors.Join(errs...)
}

type tuple struct {
	elems []Validator
}

// Tuple accepts slices of exactly len(elems) values, each checked by the
// validator at the same position.
func Tuple(elems ...Validator) Validator {
	return tuple{elems: elems}
}

func (tuple) IsOptional() bool { return false }

func (t tuple) Validate(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return reject("tuple expected, got %s", describe(v))
	}
	if rv.Len() != len(t.elems) {
		return reject("tuple of %d expected, got %d elements", len(t.elems), rv.Len())
	}
	var errs []error
	for i, elem := range t.elems {
		if err := elem.Validate(rv.Index(i).Interface()); err != nil {
			errs = append(errs, prefix(fmt.Sprintf("[%d]", i), err))
		}
	}
	return errors.Join(errs...)
}
