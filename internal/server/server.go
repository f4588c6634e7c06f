// Package server serves rendered templates for preview.
//
// Templates are rendered through the engine on GET /render/<vendor>/<path>/<name>.
// Connected browsers receive a reload message on /ws whenever the watcher
// reports a template change.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/tagdoc/internal/config"
	"github.com/conneroisu/tagdoc/internal/engine"
	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/logging"
	"github.com/conneroisu/tagdoc/internal/watcher"
)

// shutdownTimeout bounds the graceful shutdown started by context
// cancellation.
const shutdownTimeout = 5 * time.Second

// PreviewServer serves templates with live reload.
type PreviewServer struct {
	config      *config.Config
	engine      *engine.Engine
	logger      logging.Logger
	hub         *Hub
	watcher     *watcher.FileWatcher
	httpServer  *http.Server
	serverMutex sync.RWMutex
	shutdown    sync.Once
	started     time.Time
}

// Option configures a PreviewServer.
type Option func(*PreviewServer)

// WithLogger sets the server logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *PreviewServer) {
		s.logger = logger
	}
}

// New creates a preview server rendering through eng.
func New(cfg *config.Config, eng *engine.Engine, opts ...Option) *PreviewServer {
	s := &PreviewServer{
		config: cfg,
		engine: eng,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")
	s.hub = NewHub(s.logger)
	return s
}

// Hub returns the websocket hub.
func (s *PreviewServer) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes wrapped in the server middleware.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /render/{path...}", s.handleRender)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.addMiddleware(mux)
}

// Start watches the template roots when enabled and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *PreviewServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return docerrors.NewIOError("LISTEN_FAILED", "cannot listen on "+s.config.Address(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *PreviewServer) Serve(ctx context.Context, listener net.Listener) error {
	if s.config.Watch.Enabled {
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "Live reload disabled")
		}
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Lock()
	s.httpServer = server
	s.started = time.Now()
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Preview server listening", "address", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return docerrors.NewIOError("SERVE_FAILED", "preview server stopped", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func (s *PreviewServer) startWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.config.Watch.Debounce, watcher.WithLogger(s.logger))
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.ExtensionFilter(s.config.Templates.Extension))
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(s.HandleChanges)

	for _, root := range s.config.VendorRoots() {
		if err := fw.AddRecursive(root); err != nil {
			s.logger.Warn(ctx, err, "Cannot watch template root", "root", root)
		}
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}

	s.serverMutex.Lock()
	s.watcher = fw
	s.serverMutex.Unlock()
	return nil
}

// HandleChanges drops the render cache and tells every client to reload.
func (s *PreviewServer) HandleChanges(events []watcher.ChangeEvent) error {
	if err := s.engine.InvalidateAll(); err != nil {
		return err
	}
	for _, event := range events {
		s.logger.Debug(context.Background(), "Template changed", "path", event.Path, "change", event.Type.String())
		s.hub.Broadcast(ReloadMessage{
			Type:      "reload",
			Path:      event.Path,
			Change:    event.Type.String(),
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

// Shutdown stops the watcher, closes websocket clients and shuts the HTTP
// server down. Only the first call has an effect.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdown.Do(func() {
		s.logger.Info(ctx, "Shutting down preview server")

		s.serverMutex.RLock()
		fw := s.watcher
		server := s.httpServer
		s.serverMutex.RUnlock()

		if fw != nil {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Cannot stop watcher")
			}
		}

		s.hub.Close()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
