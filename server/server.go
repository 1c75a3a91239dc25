// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes stored benchmark results and baselines over a
// read-only HTTP API, plus on-demand regression detection. Serving never
// feeds back into measurement; data flows one way.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/perfbench/regression"
	"github.com/AleutianAI/perfbench/store"
)

// Server wires the HTTP API over a store and a detector.
type Server struct {
	store    store.Store
	detector *regression.Detector
	logger   *slog.Logger
	registry *prometheus.Registry
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Nil values are ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRegistry enables the /metrics endpoint over the given
// Prometheus registry.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) { s.registry = registry }
}

// NewServer creates the API server.
//
// Inputs:
//   - st: The result/baseline store. Must not be nil.
//   - detector: The regression detector. Must not be nil.
func NewServer(st store.Store, detector *regression.Detector, opts ...Option) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("server requires a store")
	}
	if detector == nil {
		return nil, fmt.Errorf("server requires a detector")
	}
	s := &Server{
		store:    st,
		detector: detector,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router builds the Gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("perfbench-server"))

	router.GET("/healthz", handleHealth())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/results/:operation", handleListResults(s.store, s.logger))
		v1.GET("/baselines", handleListBaselines(s.detector))
		v1.POST("/detect", handleDetect(s.detector))
	}

	if s.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			s.registry, promhttp.HandlerOpts{})))
	}
	return router
}

// Run serves the API on the given address, blocking until the listener
// fails or the process exits.
func (s *Server) Run(address string) error {
	s.logger.Info("serving benchmark API", slog.String("address", address))
	srv := &http.Server{
		Addr:    address,
		Handler: s.Router(),
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving on %s: %w", address, err)
	}
	return nil
}
