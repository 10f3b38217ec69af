// Package di wires the engine, component registry, template library, static
// file hasher and server from one configuration.
package di

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/conneroisu/markup/internal/assets"
	"github.com/conneroisu/markup/internal/components"
	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/loader"
	"github.com/conneroisu/markup/internal/logging"
	"github.com/conneroisu/markup/internal/registry"
	"github.com/conneroisu/markup/internal/renderer"
	"github.com/conneroisu/markup/internal/server"
	"github.com/conneroisu/markup/pkg/markup"
)

// Names of the core services.
const (
	ServiceLogger     = "logger"
	ServiceRegistry   = "registry"
	ServiceEngine     = "engine"
	ServiceHasher     = "hasher"
	ServiceComponents = "components"
	ServiceLibrary    = "library"
	ServiceServer     = "server"
)

// FactoryFunc creates a service instance using the dependency resolver
type FactoryFunc func(resolver DependencyResolver) (interface{}, error)

// DependencyResolver resolves dependencies from inside a factory and
// detects cycles.
type DependencyResolver interface {
	Get(name string) (interface{}, error)
}

type dependencyResolver struct {
	container *ServiceContainer
	resolving map[string]bool
}

func (dr *dependencyResolver) Get(name string) (interface{}, error) {
	return dr.container.getWithResolver(name, dr.resolving)
}

// ServiceDefinition defines how a service should be created and managed
type ServiceDefinition struct {
	Name         string
	Factory      FactoryFunc
	Singleton    bool
	Dependencies []string
}

// ServiceContainer creates services on first use. Singletons are created
// once, even when requested concurrently.
type ServiceContainer struct {
	mu          sync.RWMutex
	services    map[string]ServiceDefinition
	singletons  map[string]interface{}
	creating    map[string]*sync.WaitGroup
	config      *config.Config
	logger      logging.Logger
	initialized bool
}

// ServiceBuilder adjusts a registered definition.
type ServiceBuilder struct {
	name      string
	container *ServiceContainer
}

// NewServiceContainer creates a container for cfg.
func NewServiceContainer(cfg *config.Config, logger logging.Logger) *ServiceContainer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ServiceContainer{
		services:   make(map[string]ServiceDefinition),
		singletons: make(map[string]interface{}),
		creating:   make(map[string]*sync.WaitGroup),
		config:     cfg,
		logger:     logger,
	}
}

// Register registers a transient service. Registering a name again
// replaces its definition.
func (c *ServiceContainer) Register(name string, factory FactoryFunc) *ServiceBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.services[name] = ServiceDefinition{Name: name, Factory: factory}
	delete(c.singletons, name)
	return &ServiceBuilder{name: name, container: c}
}

// RegisterSingleton registers a singleton service
func (c *ServiceContainer) RegisterSingleton(name string, factory FactoryFunc) *ServiceBuilder {
	return c.Register(name, factory).AsSingleton()
}

// RegisterInstance registers an existing instance as a singleton
func (c *ServiceContainer) RegisterInstance(name string, instance interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.services[name] = ServiceDefinition{Name: name, Singleton: true}
	c.singletons[name] = instance
}

// AsSingleton marks the service as a singleton
func (sb *ServiceBuilder) AsSingleton() *ServiceBuilder {
	sb.update(func(def *ServiceDefinition) { def.Singleton = true })
	return sb
}

// DependsOn records dependencies for Definitions. Resolution itself
// happens through the resolver.
func (sb *ServiceBuilder) DependsOn(dependencies ...string) *ServiceBuilder {
	sb.update(func(def *ServiceDefinition) {
		def.Dependencies = append(def.Dependencies, dependencies...)
	})
	return sb
}

func (sb *ServiceBuilder) update(fn func(*ServiceDefinition)) {
	c := sb.container
	c.mu.Lock()
	defer c.mu.Unlock()

	def := c.services[sb.name]
	fn(&def)
	c.services[sb.name] = def
}

// Has checks if a service is registered
func (c *ServiceContainer) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.services[name]
	return ok
}

// Definitions returns the registered definitions sorted by name.
func (c *ServiceContainer) Definitions() []ServiceDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]ServiceDefinition, 0, len(c.services))
	for _, def := range c.services {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Get retrieves a service from the container
func (c *ServiceContainer) Get(name string) (interface{}, error) {
	return c.getWithResolver(name, make(map[string]bool))
}

func (c *ServiceContainer) getWithResolver(name string, resolving map[string]bool) (interface{}, error) {
	if resolving[name] {
		return nil, fmt.Errorf("circular dependency detected for service '%s'", name)
	}

	c.mu.Lock()
	definition, exists := c.services[name]
	if !exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("service '%s' not registered", name)
	}

	if !definition.Singleton {
		c.mu.Unlock()
		resolving[name] = true
		instance, err := c.create(definition, resolving)
		delete(resolving, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create service '%s': %w", name, err)
		}
		return instance, nil
	}

	if instance, ok := c.singletons[name]; ok {
		c.mu.Unlock()
		return instance, nil
	}
	if wg, creating := c.creating[name]; creating {
		c.mu.Unlock()
		wg.Wait()
		c.mu.RLock()
		instance, ok := c.singletons[name]
		c.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("failed to create singleton service '%s'", name)
		}
		return instance, nil
	}

	// Reserve creation and build without holding the lock so factories can
	// resolve their own dependencies.
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.creating[name] = wg
	c.mu.Unlock()

	resolving[name] = true
	instance, err := c.create(definition, resolving)
	delete(resolving, name)

	c.mu.Lock()
	delete(c.creating, name)
	if err == nil {
		c.singletons[name] = instance
	}
	c.mu.Unlock()
	wg.Done()

	if err != nil {
		return nil, fmt.Errorf("failed to create singleton service '%s': %w", name, err)
	}
	return instance, nil
}

func (c *ServiceContainer) create(definition ServiceDefinition, resolving map[string]bool) (interface{}, error) {
	if definition.Factory == nil {
		return nil, fmt.Errorf("factory is nil")
	}
	return definition.Factory(&dependencyResolver{container: c, resolving: resolving})
}

// Initialize registers the core services. It is idempotent.
func (c *ServiceContainer) Initialize() error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	c.mu.Unlock()

	c.registerCoreServices()
	return nil
}

func (c *ServiceContainer) registerCoreServices() {
	cfg := c.config

	c.RegisterInstance(ServiceLogger, c.logger)

	c.RegisterSingleton(ServiceRegistry, func(DependencyResolver) (interface{}, error) {
		return registry.NewComponentRegistry(), nil
	})

	c.RegisterSingleton(ServiceEngine, func(DependencyResolver) (interface{}, error) {
		return markup.New(
			markup.WithLogger(c.logger),
			markup.WithRendererConfig(&renderer.Config{
				MaxDepth:    cfg.Render.MaxDepth,
				OmitDoctype: cfg.Render.OmitDoctype,
			}),
		), nil
	})

	c.RegisterSingleton(ServiceHasher, func(DependencyResolver) (interface{}, error) {
		if cfg.Static.Dir == "" {
			return (*assets.Hasher)(nil), nil
		}
		return assets.NewHasher(os.DirFS(cfg.Static.Dir), c.logger), nil
	})

	c.RegisterSingleton(ServiceComponents, func(resolver DependencyResolver) (interface{}, error) {
		reg, err := get[*registry.ComponentRegistry](resolver, ServiceRegistry)
		if err != nil {
			return nil, err
		}
		hasher, err := get[*assets.Hasher](resolver, ServiceHasher)
		if err != nil {
			return nil, err
		}

		opts := components.DefaultOptions()
		opts.Title = cfg.Render.Title
		opts.Author = cfg.Render.Author
		opts.Favicon = cfg.Static.Favicon
		opts.Stylesheets = cfg.Static.Stylesheets
		opts.Assets = hasher

		set := components.New(opts)
		set.Register(reg)
		return set, nil
	}).DependsOn(ServiceRegistry, ServiceHasher)

	c.RegisterSingleton(ServiceLibrary, func(resolver DependencyResolver) (interface{}, error) {
		engine, err := get[*markup.Engine](resolver, ServiceEngine)
		if err != nil {
			return nil, err
		}
		reg, err := get[*registry.ComponentRegistry](resolver, ServiceRegistry)
		if err != nil {
			return nil, err
		}
		// Built-ins must be registered before templates refer to them.
		if _, err := resolver.Get(ServiceComponents); err != nil {
			return nil, err
		}

		return loader.NewLibrary(os.DirFS(cfg.Templates.Root), loader.Config{
			ComponentsDir: cfg.Templates.ComponentsDir,
			PagesDir:      cfg.Templates.PagesDir,
			DataFile:      cfg.Templates.DataFile,
		}, engine, reg, c.logger), nil
	}).DependsOn(ServiceEngine, ServiceRegistry, ServiceComponents)

	c.RegisterSingleton(ServiceServer, func(resolver DependencyResolver) (interface{}, error) {
		lib, err := get[*loader.Library](resolver, ServiceLibrary)
		if err != nil {
			return nil, err
		}
		reg, err := get[*registry.ComponentRegistry](resolver, ServiceRegistry)
		if err != nil {
			return nil, err
		}
		hasher, err := get[*assets.Hasher](resolver, ServiceHasher)
		if err != nil {
			return nil, err
		}

		return server.New(cfg, server.Deps{
			Library:  lib,
			Registry: reg,
			Hasher:   hasher,
			Logger:   c.logger,
		}), nil
	}).DependsOn(ServiceLibrary, ServiceRegistry, ServiceHasher)
}

func get[T any](resolver DependencyResolver, name string) (T, error) {
	var zero T
	instance, err := resolver.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("service '%s' is %T, not %T", name, instance, zero)
	}
	return typed, nil
}

// Resolve retrieves a service as T.
func Resolve[T any](c *ServiceContainer, name string) (T, error) {
	return get[T](c, name)
}

// Registry returns the component registry.
func (c *ServiceContainer) Registry() (*registry.ComponentRegistry, error) {
	return Resolve[*registry.ComponentRegistry](c, ServiceRegistry)
}

// Engine returns the markup engine.
func (c *ServiceContainer) Engine() (*markup.Engine, error) {
	return Resolve[*markup.Engine](c, ServiceEngine)
}

// Library returns the template library. It is not loaded yet.
func (c *ServiceContainer) Library() (*loader.Library, error) {
	return Resolve[*loader.Library](c, ServiceLibrary)
}

// Server returns the development server.
func (c *ServiceContainer) Server() (*server.Server, error) {
	return Resolve[*server.Server](c, ServiceServer)
}

// Shutdown shuts down created services that support it, server first.
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	instances := make([]interface{}, 0, 1)
	if instance, ok := c.singletons[ServiceServer]; ok {
		instances = append(instances, instance)
	}
	c.singletons = make(map[string]interface{})
	c.initialized = false
	c.mu.Unlock()

	var errs []error
	for _, instance := range instances {
		if shutdownable, ok := instance.(interface{ Shutdown(context.Context) error }); ok {
			if err := shutdownable.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
