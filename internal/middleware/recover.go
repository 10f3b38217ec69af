package middleware

import (
	"fmt"
	"net/http"

	"github.com/conneroisu/markup/internal/errors"
)

// Recover turns a panic in a handler into a generic 500 response. The panic
// value is reported through handler and never sent to the client.
func Recover(handler *errors.ErrorHandler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := errors.NewInternalError(errors.ErrCodeComponentFailed, "handler panicked", fmt.Errorf("%v", v)).
					WithContext("path", r.URL.Path)
				if handler != nil {
					handler.Handle(r.Context(), err)
				}
				InternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// InternalServerError writes the generic 500 page.
func InternalServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("Internal Server Error"))
}
