package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/desertthunder/tracksearch/internal/instrumentation"
	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Catalog is the part of [services.Catalog] both transports call into.
type Catalog interface {
	Search(ctx context.Context, p services.SearchParams) (*services.TrackPage, error)
	TracksWithFeatures(ctx context.Context, ids []string) ([]models.TrackWithFeatures, error)
}

// Server runs the HTTP API and the gRPC service over one [Catalog].
type Server struct {
	cfg     shared.ServerConfig
	catalog Catalog
	logger  *log.Logger
	inst    *instrumentation.Instrumentation

	http *http.Server
	grpc *grpc.Server
}

// New wires both transports. A nil logger discards; a nil inst records nothing.
func New(cfg shared.ServerConfig, catalog Catalog, logger *log.Logger, inst *instrumentation.Instrumentation) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if inst == nil {
		inst = instrumentation.Noop()
	}

	s := &Server{cfg: cfg, catalog: catalog, logger: logger, inst: inst}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration,
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(logger)))
	RegisterSpotifySearch(s.grpc, NewSearchService(catalog, logger))
	return s
}

// Handler builds the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := NewBasicRouter()
	r.Use(RequestID, AccessLog(s.logger, s.inst.Metrics()), Recover(s.logger))

	api := NewAPIHandler(s.catalog, s.logger)
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(Health))
	r.Handle(http.MethodGet, "/api/v1/search", http.HandlerFunc(api.Search))
	r.Handle(http.MethodGet, "/api/v1/tracks/with-features", http.HandlerFunc(api.TracksWithFeatures))
	return r
}

// ListenAndServe binds the configured addresses and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr())
	if err != nil {
		return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr(), err)
	}
	grpcLn, err := net.Listen("tcp", s.cfg.GRPCAddr())
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("listen grpc %s: %w", s.cfg.GRPCAddr(), err)
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve runs both transports on the given listeners. When ctx is done the servers drain for up to
// the configured shutdown timeout before being stopped.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http listening", "addr", httpLn.Addr().String())
		if err := s.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.logger.Info("grpc listening", "addr", grpcLn.Addr().String())
		if err := s.grpc.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	timeout := s.cfg.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down", "timeout", timeout)

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	err := s.http.Shutdown(ctx)
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	if err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
