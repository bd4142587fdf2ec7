// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/dockhand/internal/devserver"
	"github.com/wingedpig/dockhand/internal/ports"
	"github.com/wingedpig/dockhand/internal/registry"
)

// ProjectHandler handles project-related API requests.
type ProjectHandler struct {
	reg *registry.Registry
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(reg *registry.Registry) *ProjectHandler {
	return &ProjectHandler{reg: reg}
}

// List returns all open projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.reg.List())
}

// Open opens a project and starts its dev server.
func (h *ProjectHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "path is required")
		return
	}

	// Use background context - the dev server should outlive the HTTP request
	project, err := h.reg.Open(context.Background(), req.Path)
	if err != nil {
		var notProj *registry.NotAProjectError
		var timeout *devserver.ReadinessTimeoutError
		switch {
		case errors.As(err, &notProj):
			WriteError(w, http.StatusBadRequest, ErrNotAProject, err.Error())
		case errors.Is(err, ports.ErrPortExhausted):
			WriteError(w, http.StatusConflict, ErrPortExhausted, err.Error())
		case errors.As(err, &timeout):
			// The project stays open in the error state; report both
			WriteErrorWithDetails(w, http.StatusBadGateway, ErrProjectError, err.Error(),
				map[string]interface{}{"project": project})
		default:
			WriteErrorWithDetails(w, http.StatusBadGateway, ErrProjectError, err.Error(),
				map[string]interface{}{"project": project})
		}
		return
	}

	WriteJSON(w, http.StatusOK, project)
}

// Get returns a single project by id.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	project, ok := h.reg.Get(vars["id"])
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "project not found")
		return
	}

	WriteJSON(w, http.StatusOK, project)
}

// Close closes a project and stops its dev server. Unknown ids succeed.
func (h *ProjectHandler) Close(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	// Use background context - stop should complete even if request is cancelled
	if err := h.reg.Close(context.Background(), id); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"closed": true,
	})
}

// Activate marks a project as the active one.
func (h *ProjectHandler) Activate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if !h.reg.SetActive(r.Context(), id) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "project not found")
		return
	}

	project, _ := h.reg.Get(id)
	WriteJSON(w, http.StatusOK, project)
}

// Active returns the active project, if any.
func (h *ProjectHandler) Active(w http.ResponseWriter, r *http.Request) {
	project, ok := h.reg.Active()
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "no active project")
		return
	}

	WriteJSON(w, http.StatusOK, project)
}

// Logs returns recent dev-server output for a project.
func (h *ProjectHandler) Logs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	lines := 100 // default
	if linesStr := r.URL.Query().Get("lines"); linesStr != "" {
		if n, err := strconv.Atoi(linesStr); err == nil && n > 0 {
			lines = n
		}
	}

	logs, ok := h.reg.Logs(id, lines)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "project not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"lines": logs,
	})
}

// StreamLogs streams dev-server output via Server-Sent Events.
func (h *ProjectHandler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	ch, ok := h.reg.SubscribeLogs(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "project not found")
		return
	}
	defer h.reg.UnsubscribeLogs(id, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "streaming not supported")
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: {\"id\":%q}\n\n", id)
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case line, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(map[string]interface{}{
				"line":     line.Line,
				"sequence": line.Sequence,
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
