package markup

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/markup/internal/compiler"
	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/logging"
	"github.com/conneroisu/markup/internal/node"
	"github.com/conneroisu/markup/internal/renderer"
)

// Node types.
type (
	Node       = node.Node
	Element    = node.Element
	Attr       = node.Attr
	Text       = node.Text
	SafeText   = node.SafeText
	Fragment   = node.Fragment
	Invocation = node.Invocation
	Props      = node.Props
	Component  = node.Component
	RenderFunc = node.RenderFunc
)

// Engine collaborators.
type (
	TemplateCache  = compiler.TemplateCache
	RendererConfig = renderer.Config
)

// Error types.
type (
	MarkupError = errors.MarkupError
	Kind        = errors.Kind
)

const (
	KindInvalidAttributeName    = errors.KindInvalidAttributeName
	KindInvalidPropType         = errors.KindInvalidPropType
	KindVoidElementWithChildren = errors.KindVoidElementWithChildren
	KindInvalidComponentProps   = errors.KindInvalidComponentProps
	KindMalformedTemplate       = errors.KindMalformedTemplate
	KindInvalidChild            = errors.KindInvalidChild
)

var (
	// H builds a node in hyperscript style.
	H = node.H
	// Unescaped marks a string as trusted markup.
	Unescaped = node.Unescaped
	// NewComponent pairs a render function with a props shape.
	NewComponent = node.NewComponent
	// IsKind reports whether err is a *MarkupError of the given kind.
	IsKind = errors.IsKind
	// NewTemplateCache creates a cache that engines can share.
	NewTemplateCache = compiler.NewTemplateCache
)

// Engine compiles, evaluates and renders templates. It is safe for
// concurrent use.
type Engine struct {
	cache    *compiler.TemplateCache
	renderer *renderer.Renderer
	logger   logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.WithComponent("markup")
	}
}

// WithRendererConfig replaces the renderer configuration.
func WithRendererConfig(config *RendererConfig) Option {
	return func(e *Engine) {
		e.renderer = renderer.New(config)
	}
}

// WithCache shares a template cache between engines.
func WithCache(cache *TemplateCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// New creates an engine with its own template cache.
func New(opts ...Option) *Engine {
	e := &Engine{
		cache:    compiler.NewTemplateCache(),
		renderer: renderer.New(nil),
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the engine's template cache.
func (e *Engine) Cache() *TemplateCache {
	return e.cache
}

// Evaluate compiles segments on first use and evaluates them with values.
func (e *Engine) Evaluate(segments []string, values ...any) ([]Node, error) {
	tmpl, hit, err := e.cache.Load(segments)
	if err != nil {
		return nil, err
	}
	if !hit {
		e.logger.Debug(context.Background(), "Compiled template",
			"blocks", tmpl.Blocks(),
			"fields", tmpl.Fields())
	}
	return tmpl.Evaluate(values)
}

// HTML evaluates a template into a single node that can be rendered or
// passed as a value to another template. Several root nodes are returned as a
// Fragment. Failures are carried by the returned node and reported when it is
// rendered.
func (e *Engine) HTML(segments []string, values ...any) Node {
	nodes, err := e.Evaluate(segments, values...)
	if err != nil {
		return &node.Invalid{Err: err}
	}
	if len(nodes) == 1 {
		return nodes[0]
	}
	return Fragment(nodes)
}

// Render serializes nodes to markup.
func (e *Engine) Render(ctx context.Context, nodes ...Node) (string, error) {
	op := logging.StartOperation(e.logger, "render")
	out, err := e.renderer.Render(ctx, nodes...)
	if err != nil {
		e.logger.Debug(ctx, "Render failed", "error", err.Error())
		return "", err
	}
	op.End(ctx, "bytes", len(out))
	return out, nil
}

// RenderTo writes the markup for nodes to w. Nothing is written on failure.
func (e *Engine) RenderTo(ctx context.Context, w io.Writer, nodes ...Node) error {
	op := logging.StartOperation(e.logger, "render")
	if err := e.renderer.RenderTo(ctx, w, nodes...); err != nil {
		e.logger.Debug(ctx, "Render failed", "error", err.Error())
		return err
	}
	op.End(ctx)
	return nil
}

// RenderTemplate evaluates and renders a template in one step.
func (e *Engine) RenderTemplate(ctx context.Context, segments []string, values ...any) (string, error) {
	nodes, err := e.Evaluate(segments, values...)
	if err != nil {
		return "", err
	}
	return e.Render(ctx, nodes...)
}

// Templ adapts nodes into a templ component rendered by this engine.
func (e *Engine) Templ(nodes ...Node) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return e.RenderTo(ctx, w, nodes...)
	})
}
