// Package server is the development server: it renders pages from the
// template library, serves static files with versioned caching and, while
// developing, reloads the browser when templates change.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/markup/internal/assets"
	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/loader"
	"github.com/conneroisu/markup/internal/logging"
	"github.com/conneroisu/markup/internal/middleware"
	"github.com/conneroisu/markup/internal/registry"
	"github.com/conneroisu/markup/internal/renderer"
	"github.com/conneroisu/markup/internal/watcher"
)

// Deps are the collaborators the server renders with.
type Deps struct {
	Library  *loader.Library
	Registry *registry.ComponentRegistry
	Hasher   *assets.Hasher
	Logger   logging.Logger
}

// Server serves one site.
type Server struct {
	config   *config.Config
	library  *loader.Library
	registry *registry.ComponentRegistry
	hasher   *assets.Hasher
	logger   logging.Logger
	errors   *errors.ErrorHandler
	live     *LiveReload
	scripts  *renderer.Renderer

	stopEvents context.CancelFunc

	serverMutex sync.Mutex
	httpServer  *http.Server
	listener    net.Listener
}

// New creates a server. The library must already be loaded.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	s := &Server{
		config:   cfg,
		library:  deps.Library,
		registry: deps.Registry,
		hasher:   deps.Hasher,
		logger:   logger,
		errors:   errors.NewErrorHandler(logger),
		scripts:  renderer.New(&renderer.Config{MaxDepth: 1, OmitDoctype: true}),
	}
	if cfg.Development.LiveReload {
		s.live = NewLiveReload(logger)
		if s.registry != nil {
			ctx, cancel := context.WithCancel(context.Background())
			s.stopEvents = cancel
			go s.forwardComponentEvents(s.registry.Watch(ctx))
		}
	}
	return s
}

// forwardComponentEvents tells browsers about registry changes. Events that
// arrive together are sent as one message.
func (s *Server) forwardComponentEvents(events <-chan registry.ComponentEvent) {
	for event := range events {
		names := []string{event.Component.Name}
	drain:
		for {
			select {
			case more, ok := <-events:
				if !ok {
					break drain
				}
				names = append(names, more.Component.Name)
			default:
				break drain
			}
		}
		slices.Sort(names)
		names = slices.Compact(names)

		s.logger.Debug(context.Background(), "Components changed", "components", names)
		s.live.Broadcast(UpdateMessage{Type: "components", Components: names})
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	site := http.NewServeMux()
	site.HandleFunc("/_markup/health", s.handleHealth)
	site.HandleFunc("/_markup/components", s.handleComponents)
	site.Handle("/", s.static(http.HandlerFunc(s.handlePage)))

	root := http.NewServeMux()
	if s.live != nil {
		root.Handle(LivePath, s.live)
	}
	root.Handle("/", middleware.Compress(s.config.Server.Gzip, middleware.DefaultMinSize)(site))

	return middleware.NewChain(
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.Recover(s.errors),
		middleware.Security(middleware.SecurityConfig{ConnectSelf: s.live != nil}),
	).Apply(root)
}

func (s *Server) static(next http.Handler) http.Handler {
	if s.hasher == nil {
		return next
	}
	return s.hasher.Handler(next)
}

// Listen binds the configured address. Port 0 picks a free port.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot listen on %s", s.config.Server.Addr()), err)
	}

	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Unlock()
	return ln.Addr(), nil
}

// Serve runs until ctx is cancelled, then shuts down gracefully. With
// development.watch set, template and static changes reload the library
// and notify live reload clients.
func (s *Server) Serve(ctx context.Context) error {
	s.serverMutex.Lock()
	srv, ln := s.httpServer, s.listener
	s.serverMutex.Unlock()
	if srv == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
		s.serverMutex.Lock()
		srv, ln = s.httpServer, s.listener
		s.serverMutex.Unlock()
	}

	if s.config.Development.Watch {
		fw, err := s.startWatcher(ctx)
		if err != nil {
			s.logger.Warn(ctx, err, "File watching disabled")
		} else {
			defer fw.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info(ctx, "Server started", "addr", ln.Addr().String(), "pages", len(s.library.Routes()))

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.NewIOError(errors.ErrCodeWriteFailed, "server stopped", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown closes live reload connections and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopEvents != nil {
		s.stopEvents()
	}
	if s.live != nil {
		s.live.Close()
	}
	s.serverMutex.Lock()
	srv, ln := s.httpServer, s.listener
	s.serverMutex.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info(ctx, "Shutting down server")
	err := srv.Shutdown(ctx)
	// A listener that was never served is not tracked by srv.
	_ = ln.Close()
	return err
}

func (s *Server) startWatcher(ctx context.Context) (*watcher.FileWatcher, error) {
	debounce := s.config.Development.Debounce
	fw, err := watcher.NewFileWatcher(debounce, s.logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.ExtensionFilter(append([]string{".yml", ".yaml"}, assets.Extensions()...)...))
	fw.AddHandler(s.Reload)

	root := s.config.Templates.Root
	dirs := []string{root}
	if s.config.Static.Dir != "" {
		dirs = append(dirs, s.config.Static.Dir)
	}
	for _, dir := range dirs {
		if err := fw.AddRecursive(dir); err != nil {
			s.logger.Warn(ctx, err, "Cannot watch directory", "dir", dir)
		}
	}

	fw.Start(ctx)
	return fw, nil
}

// Reload reloads templates and data, forgets static hashes and tells
// browsers to reload. Component changes reach browsers through registry
// events, so a batch of component files alone sends no reload message. A
// load error keeps the previous pages and is reported without notifying
// browsers.
func (s *Server) Reload(ctx context.Context, events []watcher.ChangeEvent) error {
	files := make([]string, 0, len(events))
	others := len(events) == 0
	for _, event := range events {
		files = append(files, filepath.ToSlash(event.Path))
		if !s.isComponentFile(event.Path) {
			others = true
		}
	}

	if s.hasher != nil {
		s.hasher.Invalidate()
	}
	if err := s.library.Load(ctx); err != nil {
		s.errors.Handle(ctx, err)
		return err
	}

	s.logger.Info(ctx, "Reloaded templates", "files", len(files))
	if s.live != nil && others {
		s.live.Broadcast(UpdateMessage{Type: "reload", Files: files})
	}
	return nil
}

// isComponentFile reports whether file lies in the components directory.
func (s *Server) isComponentFile(file string) bool {
	dir := strings.Trim(filepath.ToSlash(s.config.Templates.ComponentsDir), "/")
	if dir == "" || s.registry == nil {
		return false
	}
	rel, err := filepath.Rel(s.config.Templates.Root, file)
	if err != nil {
		return false
	}
	return strings.HasPrefix(filepath.ToSlash(rel), dir+"/")
}
