package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/markup/internal/node"
)

func testComponent(name string) *ComponentInfo {
	return &ComponentInfo{
		Name:   name,
		Source: "/path/to/" + name + ".html",
		Component: node.NewComponent(name, nil, func(context.Context, node.Props, []node.Node) (node.Node, error) {
			return node.Text(name), nil
		}),
	}
}

func TestNewComponentRegistry(t *testing.T) {
	registry := NewComponentRegistry()

	assert.NotNil(t, registry)
	assert.Equal(t, 0, registry.Count())
	assert.Empty(t, registry.GetAll())
}

func TestComponentRegistry_RegisterAndGet(t *testing.T) {
	registry := NewComponentRegistry()
	component := testComponent("UserCard")
	component.Parameters = []ParameterInfo{{Name: "title", Type: "string"}}

	registry.Register(component)

	retrieved, exists := registry.Get("UserCard")
	assert.True(t, exists)
	assert.Equal(t, component, retrieved)
	assert.Equal(t, 1, registry.Count())

	updated := testComponent("UserCard")
	registry.Register(updated)
	retrieved, _ = registry.Get("UserCard")
	assert.Same(t, updated, retrieved)
	assert.Equal(t, 1, registry.Count())
}

func TestComponentRegistry_GetAllSorted(t *testing.T) {
	registry := NewComponentRegistry()
	for _, name := range []string{"Header", "Card", "Layout"} {
		registry.Register(testComponent(name))
	}

	names := make([]string, 0, 3)
	for _, c := range registry.GetAll() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Card", "Header", "Layout"}, names)
}

func TestComponentRegistry_Scope(t *testing.T) {
	registry := NewComponentRegistry()
	card := testComponent("Card")
	registry.Register(card)

	scope := registry.Scope()
	require.Contains(t, scope, "Card")
	assert.Same(t, card.Component, scope["Card"])
}

func TestComponentRegistry_Remove(t *testing.T) {
	registry := NewComponentRegistry()
	registry.Register(testComponent("Card"))

	registry.Remove("Card")
	registry.Remove("Missing")

	_, exists := registry.Get("Card")
	assert.False(t, exists)
	assert.Equal(t, 0, registry.Count())
}

func TestComponentRegistry_EventTypes(t *testing.T) {
	registry := NewComponentRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher := registry.Watch(ctx)

	expect := func(eventType EventType) {
		t.Helper()
		select {
		case event := <-watcher:
			assert.Equal(t, eventType, event.Type)
			assert.Equal(t, "Card", event.Component.Name)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("expected %s event", eventType)
		}
	}

	registry.Register(testComponent("Card"))
	expect(EventTypeAdded)
	registry.Register(testComponent("Card"))
	expect(EventTypeUpdated)
	registry.Remove("Card")
	expect(EventTypeRemoved)
}

func TestComponentRegistry_WatchEndsWithContext(t *testing.T) {
	registry := NewComponentRegistry()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	watcher1 := registry.Watch(ctx1)
	watcher2 := registry.Watch(ctx2)
	cancel1()

	select {
	case _, ok := <-watcher1:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after cancel")
	}

	registry.Register(testComponent("Card"))
	select {
	case event := <-watcher2:
		assert.Equal(t, EventTypeAdded, event.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("second watcher should still receive events")
	}
}

func TestComponentRegistry_FullWatcherDoesNotBlock(t *testing.T) {
	registry := NewComponentRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = registry.Watch(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 250; i++ {
			registry.Register(testComponent(fmt.Sprintf("C%d", i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register blocked on a full watcher")
	}
	assert.Equal(t, 250, registry.Count())
}

func TestComponentRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewComponentRegistry()
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(index int) {
			registry.Register(testComponent(fmt.Sprintf("Component%d", index)))
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 10, registry.Count())

	for i := 0; i < 10; i++ {
		go func(index int) {
			_, exists := registry.Get(fmt.Sprintf("Component%d", index))
			assert.True(t, exists)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "added", EventTypeAdded.String())
	assert.Equal(t, "updated", EventTypeUpdated.String())
	assert.Equal(t, "removed", EventTypeRemoved.String())
	assert.Equal(t, "unknown", EventType(9).String())
}
