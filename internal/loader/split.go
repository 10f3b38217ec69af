// Package loader turns a directory of .html template files into components
// and pages.
//
// A template file is markup with ${expr} placeholders. Each placeholder is
// resolved against a scope and passed to the engine as a value, so
// placeholders work anywhere a value does: as children, attribute values,
// spreads (...${props}) and tag names (<${Card} title="x" />).
package loader

import (
	"fmt"
	"strings"

	"github.com/conneroisu/markup/internal/errors"
)

// Source is a template file split at its placeholders.
type Source struct {
	Segments []string
	Exprs    []string
}

// Split separates src into literal segments and placeholder expressions.
func Split(src string) (*Source, error) {
	out := &Source{}
	rest := src
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.Segments = append(out.Segments, rest)
			return out, nil
		}
		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			return nil, errors.NewMalformedTemplate(errors.ErrCodeUnterminated,
				"unterminated placeholder").WithContext("offset", len(src)-len(rest)+start)
		}
		expr := strings.TrimSpace(rest[start+2 : start+2+end])
		if expr == "" {
			return nil, errors.NewMalformedTemplate(errors.ErrCodeUnresolved,
				fmt.Sprintf("empty placeholder at offset %d", len(src)-len(rest)+start))
		}
		out.Segments = append(out.Segments, rest[:start])
		out.Exprs = append(out.Exprs, expr)
		rest = rest[start+2+end+1:]
	}
}
