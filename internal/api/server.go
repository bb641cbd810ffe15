package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/birbparty/cooldb/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/multierr"
)

const defaultShutdownTimeout = 30 * time.Second

// Server is the CoolDB HTTP server
type Server struct {
	app       *fiber.App
	config    *Config
	publisher *AsyncPublisher
}

// NewServer builds the fiber app over s. publisher may be nil.
func NewServer(config *Config, s store.Store, publisher *AsyncPublisher) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "CoolDB",
		ErrorHandler:          ErrorHandler,
		ReadTimeout:           time.Duration(config.RequestTimeout) * time.Second,
		WriteTimeout:          time.Duration(config.RequestTimeout) * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})

	SetupMiddleware(app)

	var events EventPublisher
	if publisher != nil {
		events = publisher
	}
	SetupRoutes(app, NewHandler(s, events), config.MetricsPath)

	return &Server{app: app, config: config, publisher: publisher}
}

// App exposes the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled. See Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		if s.publisher != nil {
			s.publisher.Shutdown()
		}
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. It returns only
// after in-flight requests have finished and queued events are drained, so
// the caller may close the store and the queue connection afterwards.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.app.Listener(ln)
	}()

	select {
	case err := <-serveErr:
		if s.publisher != nil {
			s.publisher.Shutdown()
		}
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(s.config.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.Shutdown(shutdownCtx)
	return multierr.Combine(err, <-serveErr)
}

// Shutdown stops the listener, waits for in-flight requests, then drains
// queued events
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.publisher != nil {
		s.publisher.Shutdown()
	}
	return err
}
