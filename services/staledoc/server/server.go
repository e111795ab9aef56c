// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes staledoc checks over HTTP for editor integrations.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/staledoc/services/staledoc/config"
	"github.com/AleutianAI/staledoc/services/staledoc/lint"
)

const shutdownTimeout = 5 * time.Second

// Server serves the check API.
//
// Routes:
//
//	POST /v1/check - Check one in-memory source.
//	GET  /healthz  - Liveness probe.
//	GET  /metrics  - Prometheus metrics, when a handler is configured.
//
// Thread Safety: Safe for concurrent use.
type Server struct {
	runner  *lint.Runner
	cfg     config.ServerConfig
	metrics http.Handler
	version string
	logger  *slog.Logger
	limiter *rate.Limiter
	engine  *gin.Engine
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the router.
//
// Inputs:
//
//	runner - Runner holding the strategy and rule flags for every request.
//	cfg - Listen address, rate limit and body size limit.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Server - Ready to Serve.
func New(runner *lint.Runner, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		cfg:     cfg,
		version: "dev",
		logger:  slog.Default(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("staledoc"))
	router.Use(requestIDMiddleware())

	router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := router.Group("/v1")
	v1.Use(s.rateLimitMiddleware(), s.bodyLimitMiddleware())
	v1.POST("/check", s.handleCheck)

	s.engine = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server listening",
		slog.String("address", ln.Addr().String()),
		slog.String("strategy", s.runner.Strategy().String()),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

const requestIDKey = "request_id"

// requestIDMiddleware propagates X-Request-ID or assigns a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestIDKey, getOrCreateRequestID(c))
		c.Next()
	}
}

// rateLimitMiddleware applies one token bucket to every API request.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(max(1, int(1/s.cfg.RateLimit)))
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:     "rate limit exceeded",
				Code:      CodeRateLimited,
				RequestID: c.GetString(requestIDKey),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) bodyLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		c.Next()
	}
}
