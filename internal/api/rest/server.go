package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Server - HTTP-сервер CRM API.
type Server struct {
	httpServer *http.Server
	logger     *log.Entry
}

// NewServer создаёт сервер на addr с указанным обработчиком.
func NewServer(addr string, handler http.Handler, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger.WithField("component", "http-server"),
	}
}

// Serve обслуживает соединения из lis до Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.WithField("addr", lis.Addr().String()).Info("http server started")
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown завершает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server is shutting down")
	return s.httpServer.Shutdown(ctx)
}
