// Package server is the reference HTTP backend for the card directory and
// the versioned cloud key store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vaultsandbox/e3kit-go/internal/api"
	"github.com/vaultsandbox/e3kit-go/internal/logging"
	"github.com/vaultsandbox/e3kit-go/internal/storage"
	"github.com/vaultsandbox/e3kit-go/internal/token"
)

const (
	maxBodyBytes    = 1 << 20
	maxSearchLength = 100
)

// Options configures a Server.
type Options struct {
	Store  storage.Store
	Issuer *token.Issuer
	Logger *slog.Logger

	// ReadRPS and ReadBurst throttle cloud entry reads per identity. Zero
	// disables the throttle.
	ReadRPS     float64
	ReadBurst   int
	ReadIdleTTL time.Duration
}

// Server serves the directory and cloud entry API.
type Server struct {
	store   storage.Store
	issuer  *token.Issuer
	log     *slog.Logger
	limiter *identityLimiter
	metrics *metrics
	mux     *http.ServeMux
	now     func() time.Time
}

// New returns a Server. Store and Issuer are required.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Issuer == nil {
		return nil, errors.New("server: token issuer is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	} else {
		log = slog.New(logging.Wrap(log.Handler()))
	}

	s := &Server{
		store:   opts.Store,
		issuer:  opts.Issuer,
		log:     log,
		limiter: newIdentityLimiter(opts.ReadRPS, opts.ReadBurst, opts.ReadIdleTTL),
		metrics: newMetrics(),
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET "+api.HealthPath, s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.handler())

	s.mux.HandleFunc("POST "+api.CardsPath, s.handlePublishCard)
	s.mux.HandleFunc("POST "+api.CardSearchPath, s.handleSearchCards)

	entry := api.KeyknoxPathBase + "/{identity}/{name}"
	s.mux.HandleFunc("GET "+entry, s.handleGetEntry)
	s.mux.HandleFunc("PUT "+entry, s.handlePutEntry)
	s.mux.HandleFunc("DELETE "+entry, s.handleDeleteEntry)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.instrument(s.mux).ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down,
// giving in-flight requests up to shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}
