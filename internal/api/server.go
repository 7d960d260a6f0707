package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	serverconfig "github.com/jonesrussell/goprospect/internal/config/server"
	"github.com/jonesrussell/goprospect/internal/logger"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the ops HTTP listener.
type Server struct {
	srv *http.Server
	log logger.Interface
}

// NewServer builds the ops server from its config and router wiring.
func NewServer(cfg *serverconfig.Config, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           SetupRouter(deps),
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: deps.Logger,
	}
}

// Start begins serving in the background. Listen failures are logged,
// not fatal: the pool keeps crawling without its ops surface.
func (s *Server) Start() {
	s.log.Info("ops server listening", "address", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("ops server failed", "error", err.Error())
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
