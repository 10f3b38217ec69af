package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/guard"
	"github.com/conneroisu/markup/internal/logging"
	"github.com/conneroisu/markup/internal/node"
	"github.com/conneroisu/markup/internal/registry"
	"github.com/conneroisu/markup/pkg/markup"
)

// Config locates templates inside the library file system.
type Config struct {
	// ComponentsDir holds reusable components, registered by name.
	ComponentsDir string
	// PagesDir holds pages, addressed by route.
	PagesDir string
	// DataFile is an optional YAML file whose top-level keys are visible to
	// every template.
	DataFile string
}

// Library loads template files and keeps components and pages current.
type Library struct {
	fsys     fs.FS
	config   Config
	engine   *markup.Engine
	registry *registry.ComponentRegistry
	logger   logging.Logger

	mutex sync.RWMutex
	pages map[string]*node.Component
	data  map[string]any
}

// NewLibrary creates a library reading from fsys. Components are registered
// in reg so that templates can refer to them, and to built-ins registered
// there, by name.
func NewLibrary(fsys fs.FS, config Config, engine *markup.Engine, reg *registry.ComponentRegistry, logger logging.Logger) *Library {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Library{
		fsys:     fsys,
		config:   config,
		engine:   engine,
		registry: reg,
		logger:   logger.WithComponent("loader"),
		pages:    make(map[string]*node.Component),
		data:     make(map[string]any),
	}
}

var titleCase = cases.Title(language.Und, cases.NoLower)

// ComponentName derives a component name from a file name:
// user-card.html becomes UserCard.
func ComponentName(file string) string {
	base := strings.TrimSuffix(path.Base(file), path.Ext(file))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	for i, w := range words {
		words[i] = titleCase.String(w)
	}
	return strings.Join(words, "")
}

// Route derives the route of a page from its path below the pages directory:
// index.html is /, blog/index.html is /blog and blog/first-post.html is
// /blog/first-post.
func Route(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	if rel == "index" {
		return "/"
	}
	rel = strings.TrimSuffix(rel, "/index")
	return "/" + rel
}

// Load reads the data file, components and pages. It may be called again to
// pick up changes; components whose files disappeared are unregistered. Any
// failure leaves the previous data, components and pages in place.
func (l *Library) Load(ctx context.Context) error {
	op := logging.StartOperation(l.logger, "load")

	data, err := l.loadData()
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}

	var components []*registry.ComponentInfo
	if l.config.ComponentsDir != "" {
		err := l.walk(l.config.ComponentsDir, func(file string, tmpl *fileTemplate) {
			name := ComponentName(file)
			components = append(components, &registry.ComponentInfo{
				Name:       name,
				Source:     file,
				Parameters: tmpl.params,
				Hash:       tmpl.hash,
				Component:  l.component(name, tmpl),
			})
		})
		if err != nil {
			op.EndWithError(ctx, err)
			return err
		}
	}

	pages := make(map[string]*node.Component)
	if l.config.PagesDir != "" {
		err := l.walk(l.config.PagesDir, func(file string, tmpl *fileTemplate) {
			rel := strings.TrimPrefix(file, strings.TrimSuffix(l.config.PagesDir, "/")+"/")
			route := Route(rel)
			pages[route] = l.component(route, tmpl)
		})
		if err != nil {
			op.EndWithError(ctx, err)
			return err
		}
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	seen := make(map[string]bool, len(components))
	for _, info := range components {
		seen[info.Name] = true
		if old, ok := l.registry.Get(info.Name); ok && old.Hash == info.Hash && old.Source == info.Source {
			continue
		}
		l.registry.Register(info)
	}
	for _, info := range l.registry.GetAll() {
		if info.Source != "builtin" && !seen[info.Name] {
			l.registry.Remove(info.Name)
		}
	}
	l.data = data
	l.pages = pages

	op.End(ctx, "components", len(seen), "pages", len(pages))
	return nil
}

func (l *Library) loadData() (map[string]any, error) {
	data := make(map[string]any)
	if l.config.DataFile == "" {
		return data, nil
	}
	raw, err := fs.ReadFile(l.fsys, l.config.DataFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, nil
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "failed to read data file", err).
			WithContext("file", l.config.DataFile)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid data file: "+err.Error()).
			WithContext("file", l.config.DataFile)
	}
	return data, nil
}

type fileTemplate struct {
	source *Source
	props  guard.Validator
	params []registry.ParameterInfo
	locals map[string]any
	hash   string
}

func (l *Library) walk(dir string, visit func(file string, tmpl *fileTemplate)) error {
	err := fs.WalkDir(l.fsys, dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(file) != ".html" {
			return nil
		}
		tmpl, err := l.parse(file)
		if err != nil {
			return err
		}
		visit(file, tmpl)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn(context.Background(), err, "Template directory not found", "dir", dir)
		return nil
	}
	return err
}

func (l *Library) parse(file string) (*fileTemplate, error) {
	raw, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "failed to read template", err).
			WithContext("file", file)
	}
	sum := sha256.Sum256(raw)

	fm, body, err := splitFrontMatter(string(raw))
	if err != nil {
		return nil, withFile(err, file)
	}
	props, params, err := fm.shape()
	if err != nil {
		return nil, withFile(err, file)
	}
	source, err := Split(body)
	if err != nil {
		return nil, withFile(err, file)
	}
	// Compile now so syntax errors surface at load time.
	if _, err := l.engine.Cache().Get(source.Segments); err != nil {
		return nil, withFile(err, file)
	}

	return &fileTemplate{
		source: source,
		props:  props,
		params: params,
		locals: fm.Data,
		hash:   hex.EncodeToString(sum[:]),
	}, nil
}

func withFile(err error, file string) error {
	var me *errors.MarkupError
	if errors.As(err, &me) {
		return me.WithContext("file", file)
	}
	return err
}

// component wraps a template file as a component. Its scope holds, from
// lowest to highest precedence: data file keys, registered components, front
// matter data, declared props (nil when absent), the supplied props, plus
// props and children themselves.
func (l *Library) component(name string, tmpl *fileTemplate) *node.Component {
	c := &node.Component{Name: name, Props: tmpl.props}
	c.Render = func(ctx context.Context, props node.Props, children []node.Node) (node.Node, error) {
		scope := l.scope()
		for k, v := range tmpl.locals {
			scope[k] = v
		}
		for _, p := range tmpl.params {
			scope[p.Name] = nil
		}
		for k, v := range props {
			scope[k] = v
		}
		scope["props"] = props
		scope["children"] = children

		values := make([]any, len(tmpl.source.Exprs))
		for i, expr := range tmpl.source.Exprs {
			v, err := Resolve(expr, scope)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}

		nodes, err := l.engine.Evaluate(tmpl.source.Segments, values...)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 1 {
			return nodes[0], nil
		}
		return node.Fragment(nodes), nil
	}
	return c
}

func (l *Library) scope() map[string]any {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	scope := make(map[string]any, len(l.data)+l.registry.Count()+2)
	for k, v := range l.data {
		scope[k] = v
	}
	for k, v := range l.registry.Scope() {
		scope[k] = v
	}
	return scope
}

// Page returns the page component for route.
func (l *Library) Page(route string) (*node.Component, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	page, ok := l.pages[route]
	return page, ok
}

// Routes returns the routes of all pages, sorted.
func (l *Library) Routes() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	routes := make([]string, 0, len(l.pages))
	for route := range l.pages {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// RenderPage renders the page at route.
func (l *Library) RenderPage(ctx context.Context, route string, props node.Props) (string, error) {
	page, ok := l.Page(route)
	if !ok {
		return "", errors.NewIOError(errors.ErrCodePageNotFound, "no page for route", nil).
			WithContext("route", route)
	}
	inv, err := node.NewInvocation(page, props, nil)
	if err != nil {
		return "", err
	}
	return l.engine.Render(ctx, inv)
}

// Render renders the registered component name with props.
func (l *Library) Render(ctx context.Context, name string, props node.Props) (string, error) {
	info, ok := l.registry.Get(name)
	if !ok {
		return "", errors.NewIOError(errors.ErrCodeFileNotFound, "unknown component", nil).
			WithComponent(name)
	}
	inv, err := node.NewInvocation(info.Component, props, nil)
	if err != nil {
		return "", err
	}
	return l.engine.Render(ctx, inv)
}
