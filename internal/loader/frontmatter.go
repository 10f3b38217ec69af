package loader

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/guard"
	"github.com/conneroisu/markup/internal/node"
	"github.com/conneroisu/markup/internal/registry"
)

const fence = "---"

// frontMatter is the optional YAML header of a template file:
//
//	---
//	props:
//	  title: string
//	  tags: array?
//	data:
//	  year: 2024
//	---
type frontMatter struct {
	Props map[string]string `yaml:"props"`
	Data  map[string]any    `yaml:"data"`
}

// splitFrontMatter returns the parsed header and the template body.
func splitFrontMatter(src string) (*frontMatter, string, error) {
	fm := &frontMatter{}
	trimmed := strings.TrimLeft(src, "\r\n")
	if !strings.HasPrefix(trimmed, fence+"\n") && !strings.HasPrefix(trimmed, fence+"\r\n") {
		return fm, src, nil
	}

	rest := trimmed[strings.IndexByte(trimmed, '\n')+1:]
	end := strings.Index(rest, "\n"+fence)
	var header string
	switch {
	case strings.HasPrefix(rest, fence):
		header, rest = "", rest[len(fence):]
	case end >= 0:
		header, rest = rest[:end], rest[end+1+len(fence):]
	default:
		return nil, "", errors.NewMalformedTemplate(errors.ErrCodeFrontMatter, "front matter is not closed")
	}

	if err := yaml.Unmarshal([]byte(header), fm); err != nil {
		return nil, "", errors.NewMalformedTemplate(errors.ErrCodeFrontMatter, "invalid front matter").
			WithContext("cause", err.Error())
	}
	return fm, rest, nil
}

// shape builds the props validator and parameter list declared by the header.
// A nil validator means no props were declared and any props are accepted.
func (fm *frontMatter) shape() (guard.Validator, []registry.ParameterInfo, error) {
	if len(fm.Props) == 0 {
		return nil, nil, nil
	}

	names := make([]string, 0, len(fm.Props))
	for name := range fm.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	shape := guard.Shape{}
	params := make([]registry.ParameterInfo, 0, len(names))
	for _, name := range names {
		kind := strings.TrimSpace(fm.Props[name])
		optional := strings.HasSuffix(kind, "?")
		kind = strings.TrimSuffix(kind, "?")

		v, err := validatorFor(kind)
		if err != nil {
			return nil, nil, err
		}
		if optional {
			v = guard.Optional(guard.Nullish(v))
		}
		shape[name] = v
		params = append(params, registry.ParameterInfo{Name: name, Type: kind, Optional: optional})
	}
	return guard.Object(shape), params, nil
}

func validatorFor(kind string) (guard.Validator, error) {
	switch kind {
	case "string":
		return guard.String(), nil
	case "number":
		return guard.Number(), nil
	case "bool", "boolean":
		return guard.Bool(), nil
	case "any":
		return guard.Any(), nil
	case "array":
		return guard.Array(guard.Any()), nil
	case "object":
		return guard.Object(guard.Shape{}), nil
	case "node":
		return guard.Is[node.Node](), nil
	}
	return nil, errors.NewMalformedTemplate(errors.ErrCodeFrontMatter,
		fmt.Sprintf("unknown prop type %q", kind))
}
