// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the HTTP/WebSocket control surface consumed by the
// desktop UI.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/dockhand/internal/api/handlers"
	"github.com/wingedpig/dockhand/internal/api/middleware"
	"github.com/wingedpig/dockhand/internal/events"
	"github.com/wingedpig/dockhand/internal/registry"
	"github.com/wingedpig/dockhand/internal/terminal"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host string
	Port int
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Registry *registry.Registry
	Broker   *terminal.Broker
	EventBus events.EventBus
}

// NewRouter creates the API router with the given terminal handler.
func NewRouter(deps Dependencies, terminalHandler *handlers.TerminalHandler) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Project handlers
	projectHandler := handlers.NewProjectHandler(deps.Registry)
	api.HandleFunc("/projects", projectHandler.List).Methods("GET")
	api.HandleFunc("/projects", projectHandler.Open).Methods("POST")
	api.HandleFunc("/projects/active", projectHandler.Active).Methods("GET")
	api.HandleFunc("/projects/{id}", projectHandler.Get).Methods("GET")
	api.HandleFunc("/projects/{id}", projectHandler.Close).Methods("DELETE")
	api.HandleFunc("/projects/{id}/activate", projectHandler.Activate).Methods("POST")
	api.HandleFunc("/projects/{id}/logs", projectHandler.Logs).Methods("GET")
	api.HandleFunc("/projects/{id}/logs/stream", projectHandler.StreamLogs).Methods("GET")

	// Terminal handlers
	api.HandleFunc("/terminals", terminalHandler.List).Methods("GET")
	api.HandleFunc("/terminals", terminalHandler.Create).Methods("POST")
	api.HandleFunc("/terminals/{id}", terminalHandler.Destroy).Methods("DELETE")
	api.HandleFunc("/terminals/{id}/ws", terminalHandler.WebSocket).Methods("GET")

	// Event handlers
	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	return r
}

// Server represents the API server.
type Server struct {
	router          *mux.Router
	cfg             ServerConfig
	server          *http.Server
	terminalHandler *handlers.TerminalHandler
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	terminalHandler := handlers.NewTerminalHandler(deps.Broker)
	return &Server{
		router:          NewRouter(deps, terminalHandler),
		cfg:             cfg,
		terminalHandler: terminalHandler,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	// Shutdown terminal handler first to release attached sessions
	if s.terminalHandler != nil {
		s.terminalHandler.Shutdown()
	}

	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	// Create a timeout context if none provided
	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
