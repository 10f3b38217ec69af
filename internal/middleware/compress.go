package middleware

import (
	"compress/gzip"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// DefaultMinSize is the smallest response body worth compressing.
const DefaultMinSize = 1024

// Compress gzips responses of at least minSize bytes for clients that accept
// it. Disabled compression returns a pass-through middleware.
func Compress(enabled bool, minSize int) Middleware {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(minSize),
		gzhttp.CompressionLevel(gzip.DefaultCompression),
	)
	if err != nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return wrapper(next)
	}
}
