package compiler

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/node"
)

type flags uint8

const (
	// selfDynamic is set when a tag or property operand came from a value.
	selfDynamic flags = 1 << iota
	// childDynamic is set when a child came from a value or a nested block
	// was not static.
	childDynamic
)

// props keeps property assignments in first-set order.
type props struct {
	names  []string
	values map[string]any
}

func (p *props) set(name string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

func (p *props) appendTo(name string, value any) {
	p.set(name, node.Stringify(p.values[name])+node.Stringify(value))
}

// Evaluate builds the node trees of the template's root fragment from one
// invocation's values.
//
// Static subtrees are shared between invocations; the returned trees must be
// treated as read-only.
func (t *Template) Evaluate(values []any) ([]node.Node, error) {
	if len(values) != t.fields {
		return nil, errors.NewMalformedTemplate(errors.ErrCodeFieldCount,
			fmt.Sprintf("template takes %d values, got %d", t.fields, len(values)))
	}
	var children []node.Node
	for _, op := range t.blocks[t.root] {
		var err error
		if children, _, err = t.child(children, op, values); err != nil {
			return nil, err
		}
	}
	return children, nil
}

// Element evaluates a template that must produce exactly one element or
// component invocation.
func (t *Template) Element(values []any) (node.Node, error) {
	nodes, err := t.Evaluate(values)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, errors.NewMalformedTemplate(errors.ErrCodeRootCount,
			fmt.Sprintf("expected exactly one root element, got %d nodes", len(nodes)))
	}
	switch nodes[0].(type) {
	case *node.Element, *node.Invocation:
		return nodes[0], nil
	}
	return nil, errors.NewMalformedTemplate(errors.ErrCodeRootCount,
		fmt.Sprintf("expected a root element, got %T", nodes[0]))
}

// child applies a child instruction and reports the flags it contributes.
func (t *Template) child(children []node.Node, op Op, values []any) ([]node.Node, flags, error) {
	switch op.Kind {
	case OpChildAppend:
		if !op.IsField() {
			return append(children, node.Text(op.Literal.(string))), 0, nil
		}
		out, err := node.AppendChildren(children, values[op.Field])
		return out, childDynamic, err

	case OpChildRecurse:
		if m := t.memo[op.Block].Load(); m != nil {
			return append(children, m.node), 0, nil
		}
		n, f, err := t.element(op.Block, values)
		if err != nil {
			return nil, 0, err
		}
		if f != 0 {
			return append(children, n), childDynamic, nil
		}
		// Racing evaluations build equivalent nodes; the first store wins.
		t.memo[op.Block].CompareAndSwap(nil, &memoEntry{node: n})
		return append(children, n), 0, nil
	}
	return nil, 0, errors.NewInternalError(errors.ErrCodeUnknownNode,
		"unexpected instruction "+op.Kind.String(), nil)
}

func (t *Template) element(block int, values []any) (node.Node, flags, error) {
	var (
		tag      any
		p        props
		children []node.Node
		f        flags
	)

	for _, op := range t.blocks[block] {
		if op.Kind == OpChildAppend || op.Kind == OpChildRecurse {
			var (
				cf  flags
				err error
			)
			if children, cf, err = t.child(children, op, values); err != nil {
				return nil, 0, err
			}
			f |= cf
			continue
		}

		value := op.Literal
		if op.IsField() {
			value = values[op.Field]
			f |= selfDynamic
		}

		switch op.Kind {
		case OpTagSet:
			tag = value
		case OpPropSet:
			p.set(op.Name, value)
		case OpPropAppend:
			p.appendTo(op.Name, value)
		case OpPropsAssign:
			entries, err := spread(value)
			if err != nil {
				return nil, 0, err
			}
			for _, e := range entries {
				p.set(e.name, e.value)
			}
		}
	}

	if c, ok := node.AsComponent(tag); ok {
		componentProps := make(node.Props, len(p.names))
		for _, name := range p.names {
			componentProps[name] = p.values[name]
		}
		inv, err := node.NewInvocation(c, componentProps, children)
		if err != nil {
			return nil, 0, err
		}
		return inv, f, nil
	}

	name, ok := tag.(string)
	if !ok {
		return nil, 0, errors.NewMalformedTemplate(errors.ErrCodeInvalidTag,
			fmt.Sprintf("tag must be a string or a component, got %T", tag))
	}
	attrs := make([]node.Attr, 0, len(p.names))
	for _, n := range p.names {
		attrs = append(attrs, node.Attr{Name: n, Value: p.values[n]})
	}
	el, err := node.NewElement(name, attrs, children)
	if err != nil {
		return nil, 0, err
	}
	return el, f, nil
}

type entry struct {
	name  string
	value any
}

// spread lists the entries of a spread value in sorted key order.
func spread(v any) ([]entry, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case node.Props:
		return sortedEntries(m), nil
	case map[string]any:
		return sortedEntries(m), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, errors.ErrInvalidPropType("...", v)
	}
	out := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out = append(out, entry{name: iter.Key().String(), value: iter.Value().Interface()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func sortedEntries(m map[string]any) []entry {
	out := make([]entry, 0, len(m))
	for k, v := range m {
		out = append(out, entry{name: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
