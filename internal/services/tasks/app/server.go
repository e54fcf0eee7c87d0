// Package server composes and runs the task service process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dkapsis/pms/internal/platform/timeouts"
	"github.com/dkapsis/pms/internal/services/tasks/aggregate"
	"github.com/dkapsis/pms/internal/services/tasks/api"
	"github.com/dkapsis/pms/internal/services/tasks/directory"
	"github.com/dkapsis/pms/internal/services/tasks/files"
	"github.com/dkapsis/pms/internal/services/tasks/storage/sqlite"
)

// storeRetryInterval paces SQLite open attempts during startup.
const storeRetryInterval = 500 * time.Millisecond

// Config defines the inputs for the task service process.
type Config struct {
	HTTPAddr          string
	DBPath            string
	FilesDir          string
	UserBaseURL       string
	TeamBaseURL       string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the task HTTP process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
}

// NewServer wires storage, directory clients, and the HTTP surface.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.DBPath) == "" {
		return nil, errors.New("db path is required")
	}
	if strings.TrimSpace(config.FilesDir) == "" {
		return nil, errors.New("files directory is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := openStoreWithRetry(ctx, config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	fileStore, err := files.New(config.FilesDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open file store: %w", err)
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	identities := directory.NewHTTPIdentityDirectory(config.UserBaseURL, httpClient)
	teams := directory.NewHTTPTeamDirectory(config.TeamBaseURL, httpClient)

	handler := api.New(store, aggregate.New(store, identities, teams), identities, teams, fileStore)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           otelhttp.NewHandler(handler.Routes(), "task.http"),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves a task server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init task server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve task: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("task server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("task server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close task store: %v", err)
		}
	}
}

// openStoreWithRetry keeps trying the SQLite open until it succeeds or the
// startup budget runs out. A sibling process may still hold the file lock
// briefly after a rolling restart.
func openStoreWithRetry(ctx context.Context, path string) (*sqlite.Store, error) {
	deadline := time.Now().Add(timeouts.StorageStartup)
	for {
		store, err := sqlite.Open(path)
		if err == nil {
			return store, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		log.Printf("task store not ready, retrying: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(storeRetryInterval):
		}
	}
}
