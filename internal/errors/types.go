// Package errors defines the structured error taxonomy shared by the markup
// engine and the glue around it.
//
// Every failure raised while compiling, evaluating or rendering a template is
// a *MarkupError carrying a Kind and a stable Code. Engine failures are fatal
// to the single render call: callers never receive partial output alongside
// one of these errors.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind represents a category of failure.
type Kind string

const (
	KindInvalidAttributeName    Kind = "invalid_attribute_name"
	KindInvalidPropType         Kind = "invalid_prop_type"
	KindVoidElementWithChildren Kind = "void_element_with_children"
	KindInvalidComponentProps   Kind = "invalid_component_props"
	KindMalformedTemplate       Kind = "malformed_template"
	KindInvalidChild            Kind = "invalid_child"
	KindIO                      Kind = "io"
	KindConfig                  Kind = "config"
	KindInternal                Kind = "internal"
)

// Common error codes.
const (
	ErrCodeInvalidAttributeName = "ERR_INVALID_ATTRIBUTE_NAME"
	ErrCodeInvalidPropType      = "ERR_INVALID_PROP_TYPE"
	ErrCodeVoidChildren         = "ERR_VOID_ELEMENT_CHILDREN"
	ErrCodeInvalidProps         = "ERR_INVALID_COMPONENT_PROPS"
	ErrCodeUnbalancedClose      = "ERR_UNBALANCED_CLOSE"
	ErrCodeUnclosedElement      = "ERR_UNCLOSED_ELEMENT"
	ErrCodeUnterminated         = "ERR_UNTERMINATED"
	ErrCodeRootCount            = "ERR_ROOT_COUNT"
	ErrCodeFieldCount           = "ERR_FIELD_COUNT"
	ErrCodeInvalidTag           = "ERR_INVALID_TAG"
	ErrCodeRenderDepth          = "ERR_RENDER_DEPTH"
	ErrCodeInvalidChild         = "ERR_INVALID_CHILD"
	ErrCodeUnknownNode          = "ERR_UNKNOWN_NODE"
	ErrCodeFileNotFound         = "ERR_FILE_NOT_FOUND"
	ErrCodePathTraversal        = "ERR_PATH_TRAVERSAL"
	ErrCodeConfigInvalid        = "ERR_CONFIG_INVALID"
	ErrCodeUnresolved           = "ERR_UNRESOLVED_EXPRESSION"
	ErrCodeComponentFailed      = "ERR_COMPONENT_FAILED"
	ErrCodeWriteFailed          = "ERR_WRITE_FAILED"
	ErrCodeFrontMatter          = "ERR_FRONT_MATTER"
	ErrCodePageNotFound         = "ERR_PAGE_NOT_FOUND"
)

// MarkupError is a structured error type with context.
type MarkupError struct {
	Kind      Kind
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
	Tag       string
}

// Error implements the error interface.
func (e *MarkupError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.Tag != "" {
		parts = append(parts, "<"+e.Tag+">")
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *MarkupError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on kind and code.
func (e *MarkupError) Is(target error) bool {
	var t *MarkupError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *MarkupError) WithContext(key string, value interface{}) *MarkupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent records the component whose evaluation failed.
func (e *MarkupError) WithComponent(component string) *MarkupError {
	e.Component = component

	return e
}

// WithTag records the element tag involved in the failure.
func (e *MarkupError) WithTag(tag string) *MarkupError {
	e.Tag = tag

	return e
}

func newError(kind Kind, code, message string, cause error) *MarkupError {
	return &MarkupError{Kind: kind, Code: code, Message: message, Cause: cause}
}

// ErrInvalidAttributeName reports an attribute key outside the allowed
// character class.
func ErrInvalidAttributeName(name string) *MarkupError {
	return newError(KindInvalidAttributeName, ErrCodeInvalidAttributeName,
		fmt.Sprintf("invalid attribute name %q", name), nil).WithContext("name", name)
}

// ErrInvalidPropType reports an element attribute whose value is neither a
// string nor a bool.
func ErrInvalidPropType(name string, value interface{}) *MarkupError {
	return newError(KindInvalidPropType, ErrCodeInvalidPropType,
		fmt.Sprintf("attribute %q has unsupported value type %T", name, value), nil).
		WithContext("name", name)
}

// ErrVoidElementWithChildren reports children on a void element.
func ErrVoidElementWithChildren(tag string, count int) *MarkupError {
	return newError(KindVoidElementWithChildren, ErrCodeVoidChildren,
		fmt.Sprintf("void element cannot have children (got %d)", count), nil).
		WithTag(tag).WithContext("children", count)
}

// ErrInvalidComponentProps reports props rejected by a component's shape.
func ErrInvalidComponentProps(component string, cause error) *MarkupError {
	return newError(KindInvalidComponentProps, ErrCodeInvalidProps,
		"props do not match the declared shape", cause).WithComponent(component)
}

// NewMalformedTemplate creates a malformed template error.
func NewMalformedTemplate(code, message string) *MarkupError {
	return newError(KindMalformedTemplate, code, message, nil)
}

// ErrInvalidChild reports a child value the engine cannot turn into a node.
func ErrInvalidChild(value interface{}) *MarkupError {
	return newError(KindInvalidChild, ErrCodeInvalidChild,
		fmt.Sprintf("cannot render value of type %T", value), nil)
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *MarkupError {
	return newError(KindIO, code, message, cause)
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *MarkupError {
	return newError(KindConfig, code, message, nil)
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *MarkupError {
	return newError(KindInternal, code, message, cause)
}

// Is and As forward to the standard library so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// IsKind reports whether err is a *MarkupError of the given kind.
func IsKind(err error, kind Kind) bool {
	var me *MarkupError
	if errors.As(err, &me) {
		return me.Kind == kind
	}

	return false
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error handling for the request layer.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err according to its kind.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var me *MarkupError
	if !errors.As(err, &me) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch me.Kind {
	case KindIO, KindConfig:
		h.logger.Warn(ctx, me, "Environment error occurred",
			"kind", me.Kind,
			"code", me.Code)
	default:
		h.logger.Error(ctx, me, "Render failed",
			"kind", me.Kind,
			"code", me.Code,
			"component", me.Component,
			"tag", me.Tag)
	}
}
