package node

import (
	"sort"

	"github.com/conneroisu/markup/internal/errors"
)

// H builds a node in hyperscript style. tag is an element name or anything
// AsComponent accepts; props may be nil. Children are converted with
// AppendChildren.
//
// Construction problems are deferred: H returns an *Invalid node that fails
// when rendered, so trees can be built with plain nested calls. Element
// attributes are added in sorted key order and are checked when rendered.
func H(tag any, props map[string]any, children ...any) Node {
	kids, err := Children(children...)
	if err != nil {
		return &Invalid{Err: err}
	}

	if c, ok := AsComponent(tag); ok {
		inv, err := NewInvocation(c, Props(props), kids)
		if err != nil {
			return &Invalid{Err: err}
		}
		return inv
	}

	name, ok := tag.(string)
	if !ok {
		return &Invalid{Err: errors.NewMalformedTemplate(errors.ErrCodeInvalidTag,
			"tag must be a string or a component").WithContext("tag", tag)}
	}

	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	el := &Element{Tag: name, Children: kids}
	for _, key := range keys {
		if props[key] == nil {
			continue
		}
		el.Attrs = append(el.Attrs, Attr{Name: key, Value: props[key]})
	}
	return el
}
