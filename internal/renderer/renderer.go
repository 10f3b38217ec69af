// Package renderer serializes node trees to markup.
//
// Rendering walks the tree depth-first, left to right. Component invocations
// are resolved as they are reached, one at a time, so their side effects
// happen in document order. Output is buffered: a failed render writes
// nothing.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/escape"
	"github.com/conneroisu/markup/internal/node"
)

// Doctype is written before a top-level html element.
const Doctype = "<!DOCTYPE html>"

// Config holds renderer configuration.
type Config struct {
	// MaxDepth bounds how deeply component invocations may nest.
	MaxDepth int
	// OmitDoctype disables the doctype before a top-level html element.
	OmitDoctype bool
}

// DefaultConfig returns the default renderer configuration.
func DefaultConfig() *Config {
	return &Config{MaxDepth: 128}
}

// Renderer turns node trees into markup. It holds no per-call state and is
// safe for concurrent use.
type Renderer struct {
	config  *Config
	buffers sync.Pool
}

// New creates a renderer. A nil config uses DefaultConfig.
func New(config *Config) *Renderer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Renderer{
		config: config,
		buffers: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 4*1024))
			},
		},
	}
}

// Render returns the markup for nodes.
func (r *Renderer) Render(ctx context.Context, nodes ...node.Node) (string, error) {
	buf := r.getBuffer()
	defer r.buffers.Put(buf)

	if err := r.render(ctx, buf, nodes); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo writes the markup for nodes to w once the whole tree has rendered.
func (r *Renderer) RenderTo(ctx context.Context, w io.Writer, nodes ...node.Node) error {
	buf := r.getBuffer()
	defer r.buffers.Put(buf)

	if err := r.render(ctx, buf, nodes); err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "failed to write rendered markup", err)
	}
	return nil
}

func (r *Renderer) getBuffer() *bytes.Buffer {
	buf := r.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (r *Renderer) render(ctx context.Context, buf *bytes.Buffer, nodes []node.Node) error {
	s := &state{Renderer: r, buf: buf}
	for _, n := range nodes {
		if err := s.node(ctx, n, true); err != nil {
			return err
		}
	}
	return nil
}

type state struct {
	*Renderer
	buf   *bytes.Buffer
	depth int
}

// node writes n. top is true while no enclosing element has been written.
func (s *state) node(ctx context.Context, n node.Node, top bool) error {
	switch n := n.(type) {
	case nil:
		return nil
	case node.Text:
		s.buf.WriteString(escape.Text(string(n)))
	case node.SafeText:
		s.buf.WriteString(string(n))
	case node.Fragment:
		for _, child := range n {
			if err := s.node(ctx, child, top); err != nil {
				return err
			}
		}
	case *node.Element:
		return s.element(ctx, n, top)
	case *node.Invocation:
		return s.invocation(ctx, n, top)
	case *node.Invalid:
		return n.Err
	default:
		return errors.NewInternalError(errors.ErrCodeUnknownNode,
			fmt.Sprintf("cannot render node of type %T", n), nil)
	}
	return nil
}

func (s *state) invocation(ctx context.Context, inv *node.Invocation, top bool) error {
	if s.config.MaxDepth > 0 && s.depth >= s.config.MaxDepth {
		return errors.NewMalformedTemplate(errors.ErrCodeRenderDepth,
			fmt.Sprintf("component nesting exceeds %d", s.config.MaxDepth)).
			WithComponent(inv.Component.Name)
	}

	resolved, err := inv.Resolve(ctx)
	if err != nil {
		return err
	}

	s.depth++
	defer func() { s.depth-- }()
	return s.node(ctx, resolved, top)
}

func (s *state) element(ctx context.Context, el *node.Element, top bool) error {
	if el == nil {
		return nil
	}
	if !escape.ValidAttributeName(el.Tag) {
		return errors.NewMalformedTemplate(errors.ErrCodeInvalidTag, "invalid tag name").WithTag(el.Tag)
	}
	void := node.IsVoid(el.Tag)
	if void && len(el.Children) > 0 {
		return errors.ErrVoidElementWithChildren(el.Tag, len(el.Children))
	}

	if top && el.Tag == "html" && !s.config.OmitDoctype {
		s.buf.WriteString(Doctype)
	}

	s.buf.WriteByte('<')
	s.buf.WriteString(el.Tag)
	if err := s.attributes(el); err != nil {
		return err
	}
	s.buf.WriteByte('>')
	if void {
		return nil
	}

	for _, child := range el.Children {
		if err := s.node(ctx, child, false); err != nil {
			return err
		}
	}
	s.buf.WriteString("</")
	s.buf.WriteString(el.Tag)
	s.buf.WriteByte('>')
	return nil
}

// attributes writes name="value" pairs; true writes the bare name and false
// omits the attribute. Two attributes may not resolve to the same name, as
// class and className do.
func (s *state) attributes(el *node.Element) error {
	names := make([]string, 0, len(el.Attrs))
	for _, attr := range el.Attrs {
		name, err := escape.AttributeName(attr.Name)
		if err != nil {
			return err.(*errors.MarkupError).WithTag(el.Tag)
		}
		if attr.Value != nil {
			if slices.Contains(names, name) {
				return errors.ErrInvalidAttributeName(attr.Name).
					WithContext("duplicate", name).
					WithTag(el.Tag)
			}
			names = append(names, name)
		}
		switch v := attr.Value.(type) {
		case nil:
		case bool:
			if v {
				s.buf.WriteByte(' ')
				s.buf.WriteString(name)
			}
		case string:
			s.buf.WriteByte(' ')
			s.buf.WriteString(name)
			s.buf.WriteString(`="`)
			s.buf.WriteString(escape.AttributeValue(v))
			s.buf.WriteByte('"')
		default:
			return errors.ErrInvalidPropType(name, attr.Value).WithTag(el.Tag)
		}
	}
	return nil
}
