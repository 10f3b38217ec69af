// Package markup renders HTML from templates written as literal segments with
// interpolated values.
//
// Go has no tagged template literals, so a template is passed as the slice of
// its literal segments followed by the values that sit between them:
//
//	engine := markup.New()
//	page := engine.HTML([]string{`<main class="page"><h1>`, `</h1>`, `</main>`},
//		title, items)
//	out, err := engine.Render(ctx, page)
//
// The segments are compiled once per distinct sequence and cached for the
// life of the Engine. Every evaluation reuses the compiled form; subtrees that
// depend on no value are built once and shared.
//
// # Values
//
// Child positions accept strings (escaped), numbers, nil and booleans
// (rendered as nothing), nodes, slices of any of these, templ components and
// fmt.Stringers. Attribute positions accept strings and booleans; nil drops
// the attribute. A value in tag position may be a *Component or a RenderFunc,
// which turns the element into a component invocation:
//
//	card := markup.NewComponent("Card",
//		markup.Object(markup.Shape{"title": markup.String()}),
//		func(ctx context.Context, props markup.Props, children []markup.Node) (markup.Node, error) {
//			return markup.H("section", nil, markup.H("h2", nil, props["title"]), children), nil
//		})
//
//	engine.HTML([]string{"<", ` title="Hello">body<//>`}, card)
//
// Props are checked against the component's shape before it runs.
//
// # Errors
//
// Compilation, evaluation and rendering failures are *MarkupError values
// with a Kind such as KindMalformedTemplate or KindInvalidComponentProps. A
// failed render produces no output.
package markup
