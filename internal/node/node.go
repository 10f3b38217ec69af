// Package node defines the renderable tree produced by template evaluation:
// a closed set of node variants plus the component contract.
package node

import (
	"context"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/escape"
	"github.com/conneroisu/markup/internal/guard"
)

// Node is one of *Element, Text, SafeText, *Invocation, Fragment or
// *Invalid. The set is closed; consumers switch over it exhaustively.
type Node interface {
	isNode()
}

// Text is raw text. It is always escaped on render.
type Text string

// SafeText is trusted markup emitted verbatim.
type SafeText string

// Fragment is an ordered run of sibling nodes without a wrapping element.
type Fragment []Node

// Attr is a single element attribute. Value holds a string or a bool.
type Attr struct {
	Name  string
	Value any
}

// Element is a markup element.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []Node
}

// Props carries the properties handed to a component.
type Props map[string]any

// RenderFunc produces the replacement node for a component invocation. It may
// block; ctx is the context of the render call.
type RenderFunc func(ctx context.Context, props Props, children []Node) (Node, error)

// Component pairs a render function with the shape its props must satisfy.
type Component struct {
	Name   string
	Props  guard.Validator
	Render RenderFunc
}

// Invocation is a deferred component call, resolved during rendering.
type Invocation struct {
	Component *Component
	Props     Props
	Children  []Node
}

// Invalid is a node whose construction failed. Rendering it returns Err.
type Invalid struct {
	Err error
}

func (*Element) isNode()    {}
func (Text) isNode()        {}
func (SafeText) isNode()    {}
func (Fragment) isNode()    {}
func (*Invocation) isNode() {}
func (*Invalid) isNode()    {}

// Unescaped marks s as trusted markup.
func Unescaped(s string) SafeText { return SafeText(s) }

var voidTags = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "param": {}, "source": {}, "track": {}, "wbr": {},
}

// IsVoid reports whether tag may never have children.
func IsVoid(tag string) bool {
	_, ok := voidTags[tag]
	return ok
}

// VoidTags returns the void tag names.
func VoidTags() []string {
	return []string{"area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "param", "source", "track", "wbr"}
}

// NewComponent creates a component. props may be nil to accept anything.
func NewComponent(name string, props guard.Validator, render RenderFunc) *Component {
	return &Component{Name: name, Props: props, Render: render}
}

// NewElement creates an element after checking the tag name, the attribute
// names and values, and the void-element rule. Attributes named className are
// renamed to class; later duplicates replace earlier ones in place.
func NewElement(tag string, attrs []Attr, children []Node) (*Element, error) {
	if !escape.ValidAttributeName(tag) {
		return nil, errors.NewMalformedTemplate(errors.ErrCodeInvalidTag,
			"invalid tag name").WithTag(tag)
	}
	el := &Element{Tag: tag, Children: children}
	for _, attr := range attrs {
		if err := el.SetAttr(attr.Name, attr.Value); err != nil {
			return nil, err
		}
	}
	if IsVoid(tag) && len(children) > 0 {
		return nil, errors.ErrVoidElementWithChildren(tag, len(children))
	}
	return el, nil
}

// SetAttr validates and stores an attribute. A nil value removes it.
func (e *Element) SetAttr(name string, value any) error {
	key, err := escape.AttributeName(name)
	if err != nil {
		return err
	}
	switch value.(type) {
	case nil:
		e.removeAttr(key)
		return nil
	case string, bool:
	default:
		return errors.ErrInvalidPropType(key, value).WithTag(e.Tag)
	}
	for i := range e.Attrs {
		if e.Attrs[i].Name == key {
			e.Attrs[i].Value = value
			return nil
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: key, Value: value})
	return nil
}

func (e *Element) removeAttr(key string) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == key {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (any, bool) {
	for _, attr := range e.Attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// NewInvocation checks props against the component's shape and returns the
// deferred call.
func NewInvocation(c *Component, props Props, children []Node) (*Invocation, error) {
	if props == nil {
		props = Props{}
	}
	if c.Props != nil {
		if err := c.Props.Validate(props); err != nil {
			return nil, errors.ErrInvalidComponentProps(c.Name, err)
		}
	}
	return &Invocation{Component: c, Props: props, Children: children}, nil
}

// Resolve runs the component and returns its replacement node.
func (i *Invocation) Resolve(ctx context.Context) (Node, error) {
	n, err := i.Component.Render(ctx, i.Props, i.Children)
	if err != nil {
		var me *errors.MarkupError
		if errors.As(err, &me) {
			if me.Component == "" {
				me.WithComponent(i.Component.Name)
			}
			return nil, me
		}
		return nil, errors.NewInternalError(errors.ErrCodeComponentFailed,
			"component failed", err).WithComponent(i.Component.Name)
	}
	return n, nil
}

// AsComponent reports whether v can fill a tag slot as a component.
func AsComponent(v any) (*Component, bool) {
	switch c := v.(type) {
	case *Component:
		return c, c != nil
	case RenderFunc:
		return &Component{Name: "anonymous", Render: c}, c != nil
	case func(context.Context, Props, []Node) (Node, error):
		return &Component{Name: "anonymous", Render: c}, c != nil
	}
	return nil, false
}
