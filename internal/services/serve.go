package services

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/di"
	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/logging"
	"github.com/conneroisu/markup/internal/server"
)

// ServeService runs the development server.
type ServeService struct {
	config *config.Config
	logger logging.Logger
}

// NewServeService creates a new serve service
func NewServeService(cfg *config.Config, logger logging.Logger) *ServeService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ServeService{config: cfg, logger: logger}
}

// ServerInfo describes where the server listens.
type ServerInfo struct {
	Host       string
	Port       int
	ServerURL  string
	LiveReload bool
}

// GetServerInfo returns information about the server configuration
func (s *ServeService) GetServerInfo() *ServerInfo {
	return &ServerInfo{
		Host:       s.config.Server.Host,
		Port:       s.config.Server.Port,
		ServerURL:  fmt.Sprintf("http://%s", s.config.Server.Addr()),
		LiveReload: s.config.Development.LiveReload,
	}
}

// Prepare builds and loads the site and binds the listening socket, so that
// configuration and template errors surface before serving starts.
func (s *ServeService) Prepare(ctx context.Context) (*server.Server, *ServerInfo, error) {
	container := di.NewServiceContainer(s.config, s.logger)
	if err := container.Initialize(); err != nil {
		return nil, nil, err
	}

	lib, err := container.Library()
	if err != nil {
		return nil, nil, errors.NewInternalError(errors.ErrCodeComponentFailed, "cannot create template library", err)
	}
	if err := lib.Load(ctx); err != nil {
		return nil, nil, err
	}

	srv, err := container.Server()
	if err != nil {
		return nil, nil, errors.NewInternalError(errors.ErrCodeComponentFailed, "cannot create server", err)
	}
	addr, err := srv.Listen()
	if err != nil {
		return nil, nil, err
	}

	info := s.GetServerInfo()
	info.ServerURL = "http://" + addr.String()
	return srv, info, nil
}

// Serve runs the server until ctx is cancelled or the process receives
// SIGINT or SIGTERM.
func (s *ServeService) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, info, err := s.Prepare(ctx)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "Serving site", "url", info.ServerURL, "live_reload", info.LiveReload)
	return srv.Serve(ctx)
}
