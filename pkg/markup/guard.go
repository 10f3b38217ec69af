package markup

import "github.com/conneroisu/markup/internal/guard"

// Validator checks component props against a shape.
type (
	Validator = guard.Validator
	Shape     = guard.Shape
)

// Validator combinators.
var (
	String   = guard.String
	Bool     = guard.Bool
	Number   = guard.Number
	Null     = guard.Null
	Func     = guard.Func
	Any      = guard.Any
	Literal  = guard.Literal
	Optional = guard.Optional
	Nullish  = guard.Nullish
	Union    = guard.Union
	Object   = guard.Object
	Array    = guard.Array
	Tuple    = guard.Tuple
)

// Is accepts values whose dynamic type is, or implements, T.
func Is[T any]() Validator { return guard.Is[T]() }
