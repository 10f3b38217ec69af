package node

import (
	"context"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/guard"
)

func TestNewElementRenamesClassName(t *testing.T) {
	el, err := NewElement("div", []Attr{{Name: "className", Value: "foo"}, {Name: "hidden", Value: true}}, nil)
	require.NoError(t, err)

	v, ok := el.Attr("class")
	require.True(t, ok)
	assert.Equal(t, "foo", v)
	v, ok = el.Attr("hidden")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestNewElementRejectsInvalidAttributes(t *testing.T) {
	testCases := []struct {
		name  string
		attrs []Attr
		kind  errors.Kind
	}{
		{"space in name", []Attr{{Name: "data foo", Value: "x"}}, errors.KindInvalidAttributeName},
		{"equals in name", []Attr{{Name: "a=b", Value: "x"}}, errors.KindInvalidAttributeName},
		{"number value", []Attr{{Name: "width", Value: 10}}, errors.KindInvalidPropType},
		{"slice value", []Attr{{Name: "data", Value: []string{"x"}}}, errors.KindInvalidPropType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewElement("div", tc.attrs, nil)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, tc.kind), "got %v", err)
		})
	}
}

func TestNewElementVoidChildren(t *testing.T) {
	for _, tag := range VoidTags() {
		t.Run(tag, func(t *testing.T) {
			_, err := NewElement(tag, nil, []Node{Text("x")})
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindVoidElementWithChildren))

			el, err := NewElement(tag, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tag, el.Tag)
		})
	}
	assert.False(t, IsVoid("div"))
}

func TestSetAttrReplacesAndRemoves(t *testing.T) {
	el := &Element{Tag: "a"}
	require.NoError(t, el.SetAttr("href", "/one"))
	require.NoError(t, el.SetAttr("rel", "next"))
	require.NoError(t, el.SetAttr("href", "/two"))
	assert.Equal(t, []Attr{{Name: "href", Value: "/two"}, {Name: "rel", Value: "next"}}, el.Attrs)

	require.NoError(t, el.SetAttr("href", nil))
	assert.Equal(t, []Attr{{Name: "rel", Value: "next"}}, el.Attrs)
}

func TestAppendChildren(t *testing.T) {
	el := &Element{Tag: "b"}
	testCases := []struct {
		name     string
		value    any
		expected []Node
	}{
		{"nil", nil, nil},
		{"bool", true, nil},
		{"string", "hi", []Node{Text("hi")}},
		{"int", 42, []Node{Text("42")}},
		{"float", 1.5, []Node{Text("1.5")}},
		{"whole float", 3.0, []Node{Text("3")}},
		{"node", el, []Node{el}},
		{"nil slice members", []any{nil, nil}, nil},
		{"nested slices", []any{"a", []any{1, []string{"b"}}}, []Node{Text("a"), Text("1"), Text("b")}},
		{"fragment", Fragment{Text("x"), SafeText("<i>")}, []Node{Text("x"), SafeText("<i>")}},
		{"stringer", stringer("s"), []Node{Text("s")}},
		{"nil element pointer", (*Element)(nil), nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AppendChildren(nil, tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	_, err := AppendChildren(nil, struct{}{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidChild))
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestFormatNumber(t *testing.T) {
	testCases := []struct {
		value    any
		expected string
	}{
		{0, "0"},
		{-7, "-7"},
		{uint8(255), "255"},
		{0.1, "0.1"},
		{-0.0, "0"},
		{100.0, "100"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{123456789.125, "123456789.125"},
		{float32(0.5), "0.5"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.value), func(t *testing.T) {
			got, ok := FormatNumber(tc.value)
			require.True(t, ok)
			assert.Equal(t, tc.expected, got)
		})
	}

	_, ok := FormatNumber("1")
	assert.False(t, ok)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "x", Stringify("x"))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "12", Stringify(12))
	assert.Equal(t, "s", Stringify(stringer("s")))
}

func TestNewInvocationValidatesProps(t *testing.T) {
	card := NewComponent("Card", guard.Object(guard.Shape{"title": guard.String()}),
		func(_ context.Context, props Props, children []Node) (Node, error) {
			return &Element{Tag: "h2", Children: []Node{Text(props["title"].(string))}}, nil
		})

	inv, err := NewInvocation(card, Props{"title": "Hello"}, nil)
	require.NoError(t, err)
	n, err := inv.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Element{Tag: "h2", Children: []Node{Text("Hello")}}, n)

	_, err = NewInvocation(card, Props{"title": 5}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidComponentProps))
	assert.Contains(t, err.Error(), "component:Card")
	assert.Contains(t, err.Error(), "title: string expected")

	_, err = NewInvocation(card, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title: required")
}

func TestResolveWrapsForeignErrors(t *testing.T) {
	boom := fmt.Errorf("boom")
	c := NewComponent("Broken", nil, func(context.Context, Props, []Node) (Node, error) {
		return nil, boom
	})
	inv, err := NewInvocation(c, nil, nil)
	require.NoError(t, err)

	_, err = inv.Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "component:Broken")
}

func TestAsComponent(t *testing.T) {
	fn := func(context.Context, Props, []Node) (Node, error) { return Text("x"), nil }

	c, ok := AsComponent(fn)
	require.True(t, ok)
	assert.Equal(t, "anonymous", c.Name)

	_, ok = AsComponent(RenderFunc(fn))
	assert.True(t, ok)
	_, ok = AsComponent("div")
	assert.False(t, ok)
	_, ok = AsComponent((*Component)(nil))
	assert.False(t, ok)
}

func TestH(t *testing.T) {
	n := H("div", map[string]any{"id": "x", "className": "foo", "title": nil}, H("p", nil, "Hi!"))
	el, ok := n.(*Element)
	require.True(t, ok)
	assert.Equal(t, []Attr{{Name: "className", Value: "foo"}, {Name: "id", Value: "x"}}, el.Attrs)
	require.Len(t, el.Children, 1)
	assert.Equal(t, &Element{Tag: "p", Children: []Node{Text("Hi!")}}, el.Children[0])

	invalid, ok := H("p", nil, struct{}{}).(*Invalid)
	require.True(t, ok)
	assert.True(t, errors.IsKind(invalid.Err, errors.KindInvalidChild))

	invalid, ok = H(42, nil).(*Invalid)
	require.True(t, ok)
	assert.True(t, errors.IsKind(invalid.Err, errors.KindMalformedTemplate))
}

func TestHComponent(t *testing.T) {
	list := NewComponent("List", guard.Object(guard.Shape{}), func(_ context.Context, _ Props, children []Node) (Node, error) {
		return Fragment(children), nil
	})

	inv, ok := H(list, nil, "a", "b").(*Invocation)
	require.True(t, ok)
	assert.Equal(t, []Node{Text("a"), Text("b")}, inv.Children)
}

func TestFromTempl(t *testing.T) {
	c := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<em>templ</em>")
		return err
	})

	nodes, err := Children(c)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	inv, ok := nodes[0].(*Invocation)
	require.True(t, ok)

	out, err := inv.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SafeText("<em>templ</em>"), out)
}
