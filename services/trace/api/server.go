// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves reconstruction and path explanation over HTTP.
//
// Endpoints:
//
//	POST /v1/axiomtrace/reconstruct      - Reconstruct bindings of a scenario
//	POST /v1/axiomtrace/paths            - Explain a scenario's paths
//	GET  /v1/axiomtrace/results          - List stored results
//	GET  /v1/axiomtrace/results/:scenario - Stored results of one scenario
//	GET  /v1/axiomtrace/health           - Health and cache counters
//	GET  /metrics                        - Prometheus metrics
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AxiomTrace/services/trace/config"
	"github.com/AleutianAI/AxiomTrace/services/trace/engine"
	"github.com/AleutianAI/AxiomTrace/services/trace/telemetry"
)

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end of an Engine.
type Server struct {
	engine  *engine.Engine
	cfg     config.ServerConfig
	logger  *slog.Logger
	version string
	service string
	router  *gin.Engine
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the request logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

// WithServiceName sets the otelgin service name. Default: "axiomtrace".
func WithServiceName(name string) ServerOption {
	return func(s *Server) { s.service = name }
}

// NewServer builds the router.
func NewServer(e *engine.Engine, cfg config.ServerConfig, opts ...ServerOption) *Server {
	s := &Server{
		engine:  e,
		cfg:     cfg,
		logger:  slog.Default(),
		version: "dev",
		service: "axiomtrace",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "api"))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.service))
	router.Use(requestID())
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		router.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}

	router.GET("/metrics", gin.WrapH(metricsHandler()))

	h := &handlers{engine: e, logger: s.logger, version: s.version}
	v1 := router.Group("/v1/axiomtrace")
	v1.GET("/health", h.health)
	v1.POST("/reconstruct", bodyLimit(cfg.MaxBodyBytes), h.reconstruct)
	v1.POST("/paths", bodyLimit(cfg.MaxBodyBytes), h.paths)
	v1.GET("/results", h.history)
	v1.GET("/results/:scenario", h.history)

	s.router = router
	return s
}

func metricsHandler() http.Handler {
	if h := telemetry.MetricsHandler(); h != nil {
		return h
	}
	return promhttp.Handler()
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
