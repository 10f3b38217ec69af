// Package middleware holds the HTTP middleware used by the dev server:
// request IDs, request logging, panic recovery, security headers and
// response compression.
package middleware

import (
	"net/http"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware. The first middleware added is the outermost:
// requests flow through the chain in the order it was built.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from middlewares, outermost first.
func NewChain(middlewares ...Middleware) *Chain {
	c := &Chain{}
	for _, m := range middlewares {
		c.Use(m)
	}
	return c
}

// Use appends m as the innermost middleware. Nil middleware is ignored.
func (c *Chain) Use(m Middleware) *Chain {
	if m != nil {
		c.middlewares = append(c.middlewares, m)
	}
	return c
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Apply wraps handler with every middleware in the chain.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
	}
	return wrapped
}

// ApplyFunc is Apply for a handler function.
func (c *Chain) ApplyFunc(fn http.HandlerFunc) http.Handler {
	return c.Apply(fn)
}
