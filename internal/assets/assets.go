// Package assets serves static files with content-hash versioning.
//
// Templates reference a file through PathWithHash, which appends the file's
// SHA-512 as a "v" query parameter. The handler marks responses whose "v"
// matches the current hash as immutable, so browsers only refetch a file
// after its content changes.
package assets

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/logging"
)

// OneDay is the max-age sent for versioned responses.
const OneDay = 24 * time.Hour

// supportedExtensions limits the handler to file types a site actually
// serves; anything else falls through to the next handler.
var supportedExtensions = map[string]string{
	"css":   "text/css; charset=utf-8",
	"gif":   "image/gif",
	"html":  "text/html; charset=utf-8",
	"ico":   "image/x-icon",
	"jpeg":  "image/jpeg",
	"jpg":   "image/jpeg",
	"js":    "text/javascript; charset=utf-8",
	"json":  "application/json",
	"png":   "image/png",
	"svg":   "image/svg+xml",
	"txt":   "text/plain; charset=utf-8",
	"webp":  "image/webp",
	"woff2": "font/woff2",
	"xml":   "application/xml",
}

// Extensions returns the served extensions with their leading dot, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, "."+ext)
	}
	sort.Strings(exts)
	return exts
}

// ContentType returns the content type for a file name and whether the
// extension is served at all.
func ContentType(name string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	ct, ok := supportedExtensions[ext]
	return ct, ok
}

// Hasher computes and caches content hashes for files under one directory.
type Hasher struct {
	fsys   fs.FS
	logger logging.Logger

	group  singleflight.Group
	mutex  sync.RWMutex
	hashes map[string]string
}

// NewHasher creates a hasher over fsys. A nil logger discards output.
func NewHasher(fsys fs.FS, logger logging.Logger) *Hasher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hasher{
		fsys:   fsys,
		logger: logger.WithComponent("assets"),
		hashes: make(map[string]string),
	}
}

// Clean maps a request or template path onto a name inside the static root.
// Names that escape the root are rejected.
func Clean(name string) (string, error) {
	for _, part := range strings.Split(strings.ReplaceAll(name, `\`, "/"), "/") {
		if part == ".." {
			return "", errors.NewIOError(errors.ErrCodePathTraversal,
				fmt.Sprintf("path %q escapes the static directory", name), nil)
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if clean == "" || !fs.ValidPath(clean) {
		return "", errors.NewIOError(errors.ErrCodePathTraversal,
			fmt.Sprintf("invalid static path %q", name), nil)
	}
	return clean, nil
}

// Hash returns the hex SHA-512 of the named file. Results are cached until
// Invalidate is called; concurrent callers for the same file share one read.
func (h *Hasher) Hash(ctx context.Context, name string) (string, error) {
	clean, err := Clean(name)
	if err != nil {
		return "", err
	}

	h.mutex.RLock()
	sum, ok := h.hashes[clean]
	h.mutex.RUnlock()
	if ok {
		return sum, nil
	}

	v, err, _ := h.group.Do(clean, func() (interface{}, error) {
		data, err := fs.ReadFile(h.fsys, clean)
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("cannot read static file %q", clean), err)
		}
		sum := HashBytes(data)

		h.mutex.Lock()
		h.hashes[clean] = sum
		h.mutex.Unlock()

		h.logger.Debug(ctx, "Hashed static file", "file", clean, "bytes", len(data))
		return sum, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// PathWithHash returns "/name?v=<hash>" for use in href and src attributes.
func (h *Hasher) PathWithHash(ctx context.Context, name string) (string, error) {
	clean, err := Clean(name)
	if err != nil {
		return "", err
	}
	sum, err := h.Hash(ctx, clean)
	if err != nil {
		return "", err
	}
	return "/" + clean + "?" + url.Values{"v": {sum}}.Encode(), nil
}

// Invalidate forgets cached hashes. With no names every entry is dropped.
func (h *Hasher) Invalidate(names ...string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(names) == 0 {
		h.hashes = make(map[string]string)
		return
	}
	for _, name := range names {
		if clean, err := Clean(name); err == nil {
			delete(h.hashes, clean)
		}
	}
}

// HashBytes returns the hex SHA-512 of data.
func HashBytes(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// Handler serves files from the hasher's directory. Requests it cannot
// answer (other methods, missing files, unsupported types) go to next.
func (h *Hasher) Handler(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		name := r.URL.Path
		if name == "/" {
			name = "/index.html"
		}
		clean, err := Clean(name)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		contentType, ok := ContentType(clean)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		data, err := fs.ReadFile(h.fsys, clean)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		sum := HashBytes(data)
		etag := fmt.Sprintf(`"%s"`, sum)

		query := r.URL.Query()
		version := query.Get("v")
		cacheControl := "no-cache"
		if version == sum {
			cacheControl = fmt.Sprintf("public, max-age=%d, immutable", int(OneDay.Seconds()))
		} else if query.Has("v") {
			h.logger.Warn(r.Context(), nil, "Version does not match etag",
				"file", clean, "v", version)
		}

		w.Header().Set("Cache-Control", cacheControl)
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", contentType)

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		http.ServeContent(w, r, clean, time.Time{}, bytes.NewReader(data))
	})
}
