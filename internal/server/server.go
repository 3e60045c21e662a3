/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package server exposes the dispatcher and the live inventory over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/internal/dispatcher"
	"github.com/llm-d/llm-d-edge-placement/internal/inventory"
	"github.com/llm-d/llm-d-edge-placement/internal/logging"
)

// RequestIDHeader carries the request identifier in requests and responses.
const RequestIDHeader = "X-Request-ID"

// Config holds configuration for the Server.
type Config struct {
	// Address is the listen address, e.g. ":8080".
	Address string
	// ShutdownTimeout bounds the wait for in-flight requests on shutdown.
	ShutdownTimeout time.Duration
	// Gatherer backs the /metrics endpoint. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// Server serves the placement API.
type Server struct {
	config     Config
	store      *inventory.Store
	dispatcher inventory.Dispatcher
	router     *mux.Router
}

// NewServer creates a server that executes calls against store.
func NewServer(cfg Config, store *inventory.Store, d inventory.Dispatcher) (*Server, error) {
	if store == nil || d == nil {
		return nil, fmt.Errorf("store and dispatcher cannot be nil")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		config:     cfg,
		store:      store,
		dispatcher: d,
		router:     mux.NewRouter(),
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/v1/calls", s.handleCalls).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/nodes", s.handleNodes).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/applications", s.handleApplications).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)
}

// Run serves on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	logger := ctrl.LoggerFrom(ctx)
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctrl.LoggerInto(context.Background(), logger) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting placement API server", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("placement API server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down placement API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down placement API server: %w", err)
	}
	return <-errCh
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(dispatcher.WithRequestID(r.Context(), id)))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		ctrl.LoggerFrom(r.Context()).V(logging.DEBUG).Info("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"requestID", w.Header().Get(RequestIDHeader),
			"duration", time.Since(start))
	})
}
