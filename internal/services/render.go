// Package services holds the business logic behind the CLI commands:
// rendering a site to disk, serving it, and scaffolding a new one.
package services

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/di"
	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/logging"
)

// RenderService renders every page of a site to static files.
type RenderService struct {
	config *config.Config
	logger logging.Logger
}

// NewRenderService creates a new render service
func NewRenderService(cfg *config.Config, logger logging.Logger) *RenderService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RenderService{config: cfg, logger: logger.WithComponent("render")}
}

// RenderOptions contains options for the render process
type RenderOptions struct {
	// Output is the directory pages and static files are written to.
	Output string
	// Clean removes Output before writing.
	Clean bool
	// Workers bounds concurrent page renders. Zero means 4.
	Workers int
}

// RenderedFile is one written file.
type RenderedFile struct {
	Route string
	Path  string
	Size  int64
}

// RenderResult contains the result of a render operation
type RenderResult struct {
	Duration time.Duration
	Pages    []RenderedFile
	Static   []RenderedFile
}

// TotalSize is the number of bytes written.
func (r *RenderResult) TotalSize() int64 {
	var total int64
	for _, f := range r.Pages {
		total += f.Size
	}
	for _, f := range r.Static {
		total += f.Size
	}
	return total
}

// Summary is a one-line human readable description of the result.
func (r *RenderResult) Summary() string {
	return fmt.Sprintf("%d pages, %d static files, %s in %s",
		len(r.Pages), len(r.Static), humanize.Bytes(uint64(r.TotalSize())), r.Duration.Round(time.Millisecond))
}

// PagePath maps a route to the file serving it under clean URLs:
// / is index.html and /blog/post is blog/post/index.html.
func PagePath(route string) string {
	route = strings.Trim(route, "/")
	if route == "" {
		return "index.html"
	}
	return path.Join(route, "index.html")
}

// Render loads the site and writes every page and static file below
// opts.Output. Each file is replaced atomically; the first failure stops
// the run and is returned.
func (s *RenderService) Render(ctx context.Context, opts RenderOptions) (*RenderResult, error) {
	start := time.Now()
	if opts.Output == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "no output directory")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	if opts.Clean {
		if err := os.RemoveAll(opts.Output); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot clean output directory", err)
		}
	}

	container := di.NewServiceContainer(s.config, s.logger)
	if err := container.Initialize(); err != nil {
		return nil, err
	}
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			s.logger.Warn(ctx, err, "Container shutdown failed")
		}
	}()

	lib, err := container.Library()
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeComponentFailed, "cannot create template library", err)
	}
	if err := lib.Load(ctx); err != nil {
		return nil, err
	}

	result := &RenderResult{}
	var mutex sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, route := range lib.Routes() {
		g.Go(func() error {
			page, err := lib.RenderPage(gctx, route, nil)
			if err != nil {
				return errors.NewInternalError(errors.ErrCodeComponentFailed,
					fmt.Sprintf("cannot render %s", route), err)
			}
			file, err := write(opts.Output, PagePath(route), []byte(page))
			if err != nil {
				return err
			}
			file.Route = route

			mutex.Lock()
			result.Pages = append(result.Pages, file)
			mutex.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.config.Static.Dir != "" {
		static, err := copyStatic(ctx, os.DirFS(s.config.Static.Dir), opts.Output)
		if err != nil {
			return nil, err
		}
		result.Static = static
	}

	sort.Slice(result.Pages, func(i, j int) bool { return result.Pages[i].Route < result.Pages[j].Route })
	result.Duration = time.Since(start)
	s.logger.Info(ctx, "Site rendered",
		"pages", len(result.Pages),
		"static", len(result.Static),
		"size", humanize.Bytes(uint64(result.TotalSize())),
		"output", opts.Output)
	return result, nil
}

func write(root, name string, data []byte) (RenderedFile, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return RenderedFile{}, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot create directory", err).
			WithContext("path", filepath.Dir(target))
	}
	if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
		return RenderedFile{}, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot write file", err).
			WithContext("path", target)
	}
	return RenderedFile{Path: target, Size: int64(len(data))}, nil
}

// copyStatic copies every regular, non-hidden file of fsys below out.
// A missing static directory copies nothing.
func copyStatic(ctx context.Context, fsys fs.FS, out string) ([]RenderedFile, error) {
	var files []RenderedFile
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && name == "." {
				return fs.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if name != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		file, err := write(out, name, data)
		if err != nil {
			return err
		}
		file.Route = "/" + name
		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot copy static files", err)
	}
	return files, nil
}
