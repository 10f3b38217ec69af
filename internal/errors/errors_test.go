package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkupErrorError(t *testing.T) {
	err := ErrVoidElementWithChildren("br", 2)

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_VOID_ELEMENT_CHILDREN]")
	assert.Contains(t, msg, "<br>")
	assert.Contains(t, msg, "got 2")
}

func TestMarkupErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("missing field title")
	err := ErrInvalidComponentProps("Card", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "component:Card")
	assert.Contains(t, err.Error(), "missing field title")
}

func TestMarkupErrorIs(t *testing.T) {
	a := NewMalformedTemplate(ErrCodeUnbalancedClose, "closing tag without open element")
	b := NewMalformedTemplate(ErrCodeUnbalancedClose, "different message")
	c := NewMalformedTemplate(ErrCodeRootCount, "two roots")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))

	wrapped := fmt.Errorf("rendering page: %w", a)
	assert.True(t, errors.Is(wrapped, b))
}

func TestIsKind(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"attribute name", ErrInvalidAttributeName("a b"), KindInvalidAttributeName, true},
		{"prop type", ErrInvalidPropType("x", 3), KindInvalidPropType, true},
		{"wrapped", fmt.Errorf("ctx: %w", ErrInvalidChild(struct{}{})), KindInvalidChild, true},
		{"mismatch", ErrInvalidPropType("x", 3), KindMalformedTemplate, false},
		{"foreign", errors.New("boom"), KindMalformedTemplate, false},
		{"nil", nil, KindIO, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsKind(tc.err, tc.kind))
		})
	}
}

func TestWithContext(t *testing.T) {
	err := ErrInvalidAttributeName("a=b")
	require.NotNil(t, err.Context)
	assert.Equal(t, "a=b", err.Context["name"])

	err.WithContext("template", "page.html")
	assert.Equal(t, "page.html", err.Context["template"])
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (r *recordingLogger) Error(_ context.Context, err error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, err error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandlerHandle(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, ErrVoidElementWithChildren("img", 1))
	handler.Handle(ctx, NewIOError(ErrCodeFileNotFound, "missing", nil))
	handler.Handle(ctx, errors.New("plain"))

	assert.Equal(t, []string{"Render failed", "Unhandled error occurred"}, logger.errors)
	assert.Equal(t, []string{"Environment error occurred"}, logger.warns)
}
