package node

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/markup/internal/guard"
)

const templProp = "component"

var templAdapter = &Component{
	Name:  "templ",
	Props: guard.Object(guard.Shape{templProp: guard.Is[templ.Component]()}),
	Render: func(ctx context.Context, props Props, _ []Node) (Node, error) {
		var b strings.Builder
		if err := props[templProp].(templ.Component).Render(ctx, &b); err != nil {
			return nil, err
		}
		return SafeText(b.String()), nil
	},
}

// FromTempl wraps a templ component so it renders in place as trusted markup.
func FromTempl(c templ.Component) *Invocation {
	return &Invocation{Component: templAdapter, Props: Props{templProp: c}}
}
