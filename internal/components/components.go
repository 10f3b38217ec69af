// Package components provides the built-in components every library starts
// with: a document layout, a site header, a list wrapper and a markdown block.
package components

import (
	"bytes"
	"context"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/conneroisu/markup/internal/assets"
	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/guard"
	"github.com/conneroisu/markup/internal/node"
	"github.com/conneroisu/markup/internal/registry"
)

// Options configures the built-in components.
type Options struct {
	// Title is used by DefaultLayout when no title prop is given.
	Title string
	// Author fills the author meta tag when set.
	Author string
	// Favicon and Stylesheets are static file names linked from the layout.
	Favicon     string
	Stylesheets []string
	// Assets versions static links. Without it links are plain paths.
	Assets *assets.Hasher
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Title:       "markup",
		Favicon:     "favicon.ico",
		Stylesheets: []string{"styles.css"},
	}
}

// Set is the built-in components created from one Options value.
type Set struct {
	opts     Options
	markdown goldmark.Markdown

	DefaultLayout *node.Component
	Header        *node.Component
	UnorderedList *node.Component
	Markdown      *node.Component
}

// New creates the built-in components.
func New(opts Options) *Set {
	s := &Set{
		opts: opts,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}

	s.Header = node.NewComponent("Header", guard.Object(guard.Shape{}), s.header)
	s.DefaultLayout = node.NewComponent("DefaultLayout", guard.Object(guard.Shape{
		"title":    guard.Optional(guard.Nullish(guard.String())),
		"noHeader": guard.Optional(guard.Nullish(guard.Bool())),
		"head":     guard.Optional(guard.Any()),
	}), s.layout)
	s.UnorderedList = node.NewComponent("UnorderedList", guard.Object(guard.Shape{}), unorderedList)
	s.Markdown = node.NewComponent("Markdown", guard.Object(guard.Shape{
		"source": guard.String(),
	}), s.render)

	return s
}

// All returns the components in registration order.
func (s *Set) All() []*node.Component {
	return []*node.Component{s.DefaultLayout, s.Header, s.UnorderedList, s.Markdown}
}

// Register adds every component to reg with source "builtin".
func (s *Set) Register(reg *registry.ComponentRegistry) {
	params := map[string][]registry.ParameterInfo{
		"DefaultLayout": {
			{Name: "head", Type: "any", Optional: true},
			{Name: "noHeader", Type: "bool", Optional: true},
			{Name: "title", Type: "string", Optional: true},
		},
		"Markdown": {
			{Name: "source", Type: "string"},
		},
	}
	for _, c := range s.All() {
		reg.Register(&registry.ComponentInfo{
			Name:       c.Name,
			Source:     "builtin",
			Parameters: params[c.Name],
			Component:  c,
		})
	}
}

func (s *Set) header(_ context.Context, _ node.Props, _ []node.Node) (node.Node, error) {
	return node.H("header", map[string]any{"class": "mw-page mx-auto"},
		node.H("nav", nil,
			node.H("a", map[string]any{"href": "/"}, "\u2039 Home"),
		),
	), nil
}

func (s *Set) staticPath(ctx context.Context, name string) (string, error) {
	if s.opts.Assets == nil {
		return "/" + name, nil
	}
	return s.opts.Assets.PathWithHash(ctx, name)
}

func (s *Set) layout(ctx context.Context, props node.Props, children []node.Node) (node.Node, error) {
	title := s.opts.Title
	if t, ok := props["title"].(string); ok {
		title = t
	}

	head := []any{
		node.H("meta", map[string]any{"charset": "utf-8"}),
		node.H("title", nil, title),
		node.H("meta", map[string]any{"name": "viewport", "content": "width=device-width, initial-scale=1"}),
	}
	if s.opts.Author != "" {
		head = append(head, node.H("meta", map[string]any{"name": "author", "content": s.opts.Author}))
	}
	if s.opts.Favicon != "" {
		href, err := s.staticPath(ctx, s.opts.Favicon)
		if err != nil {
			return nil, err
		}
		head = append(head, node.H("link", map[string]any{"rel": "icon", "type": "image/x-icon", "href": href}))
	}
	for _, sheet := range s.opts.Stylesheets {
		href, err := s.staticPath(ctx, sheet)
		if err != nil {
			return nil, err
		}
		head = append(head, node.H("link", map[string]any{"rel": "stylesheet", "href": href}))
	}
	head = append(head, props["head"])

	var body []any
	if noHeader, _ := props["noHeader"].(bool); !noHeader {
		body = append(body, node.H(s.Header, nil))
	}
	body = append(body, node.H("main", map[string]any{"class": "mw-page mx-auto"}, children))

	return node.H("html", map[string]any{"lang": "en"},
		node.H("head", nil, head...),
		node.H("body", nil, body...),
	), nil
}

// unorderedList wraps each child in an li; its props become ul attributes.
func unorderedList(_ context.Context, props node.Props, children []node.Node) (node.Node, error) {
	items := make([]any, len(children))
	for i, child := range children {
		items[i] = node.H("li", nil, child)
	}
	return node.H("ul", props, items...), nil
}

// render converts markdown to trusted markup. Raw HTML in the source is
// replaced by a comment, so only the markdown itself can produce tags.
func (s *Set) render(_ context.Context, props node.Props, _ []node.Node) (node.Node, error) {
	source, _ := props["source"].(string)

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(source), &buf); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeComponentFailed, "markdown conversion failed", err)
	}
	return node.Unescaped(buf.String()), nil
}
