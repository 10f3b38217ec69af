// Package registry tracks the components available to file templates and
// notifies watchers when they change.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/markup/internal/node"
)

// ComponentRegistry manages all known components
type ComponentRegistry struct {
	components map[string]*ComponentInfo
	mutex      sync.RWMutex
	watchers   map[chan ComponentEvent]struct{}
}

// ComponentInfo holds a component and where it came from.
type ComponentInfo struct {
	Name       string
	Source     string // file path, or "builtin"
	Parameters []ParameterInfo
	LastMod    time.Time
	Hash       string
	Component  *node.Component
}

// ParameterInfo describes a declared component prop
type ParameterInfo struct {
	Name     string
	Type     string
	Optional bool
}

// ComponentEvent is one change to the registry.
type ComponentEvent struct {
	Type      EventType
	Component *ComponentInfo
	Timestamp time.Time
}

// EventType says how a component changed.
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	}
	return "unknown"
}

// NewComponentRegistry creates a new component registry
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]*ComponentInfo),
		watchers:   make(map[chan ComponentEvent]struct{}),
	}
}

// Register adds or updates a component in the registry
func (r *ComponentRegistry) Register(component *ComponentInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.components[component.Name]; exists {
		eventType = EventTypeUpdated
	}

	r.components[component.Name] = component
	r.notify(ComponentEvent{
		Type:      eventType,
		Component: component,
		Timestamp: time.Now(),
	})
}

// notify must be called with the lock held. A subscriber whose buffer is
// full misses the event.
func (r *ComponentRegistry) notify(event ComponentEvent) {
	for ch := range r.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Get retrieves a component by name
func (r *ComponentRegistry) Get(name string) (*ComponentInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	component, exists := r.components[name]
	return component, exists
}

// GetAll returns all registered components sorted by name
func (r *ComponentRegistry) GetAll() []*ComponentInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*ComponentInfo, 0, len(r.components))
	for _, component := range r.components {
		result = append(result, component)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Scope returns the registered components keyed by name, ready to be used as
// template values.
func (r *ComponentRegistry) Scope() map[string]any {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	scope := make(map[string]any, len(r.components))
	for name, info := range r.components {
		scope[name] = info.Component
	}
	return scope
}

// Remove removes a component from the registry
func (r *ComponentRegistry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	component, exists := r.components[name]
	if !exists {
		return
	}

	delete(r.components, name)
	r.notify(ComponentEvent{
		Type:      EventTypeRemoved,
		Component: component,
		Timestamp: time.Now(),
	})
}

// watchBuffer is the number of events a subscriber may fall behind.
const watchBuffer = 64

// Watch subscribes to component events. The channel is closed once ctx is
// done.
func (r *ComponentRegistry) Watch(ctx context.Context) <-chan ComponentEvent {
	ch := make(chan ComponentEvent, watchBuffer)

	r.mutex.Lock()
	r.watchers[ch] = struct{}{}
	r.mutex.Unlock()

	context.AfterFunc(ctx, func() {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		delete(r.watchers, ch)
		close(ch)
	})
	return ch
}

// Count returns the number of registered components
func (r *ComponentRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.components)
}
