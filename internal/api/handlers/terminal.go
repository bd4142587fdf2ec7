// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wingedpig/dockhand/internal/terminal"
)

// terminalMessage represents a message from the terminal frontend.
type terminalMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// TerminalHandler handles terminal-related API requests.
type TerminalHandler struct {
	broker *terminal.Broker
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{} // Active WebSocket connections
}

// NewTerminalHandler creates a new terminal handler.
func NewTerminalHandler(broker *terminal.Broker) *TerminalHandler {
	return &TerminalHandler{
		broker: broker,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// trackConn registers a WebSocket connection for shutdown tracking.
func (h *TerminalHandler) trackConn(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

// untrackConn removes a WebSocket connection from shutdown tracking.
func (h *TerminalHandler) untrackConn(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// Shutdown closes all active WebSocket connections to allow graceful
// server shutdown.
func (h *TerminalHandler) Shutdown() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	if len(conns) > 0 {
		log.Printf("Terminal handler: closing %d active WebSocket connections", len(conns))
	}

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// Create starts a new terminal session.
func (h *TerminalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir  string `json:"dir"`
		Cols uint16 `json:"cols"`
		Rows uint16 `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Dir == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "dir is required")
		return
	}

	info, err := h.broker.Create(req.Dir, req.Cols, req.Rows)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrTerminalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, info)
}

// List returns all terminal sessions.
func (h *TerminalHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": h.broker.List(),
	})
}

// Destroy kills a terminal session. Unknown ids succeed.
func (h *TerminalHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if err := h.broker.Destroy(id); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrTerminalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"destroyed": true,
	})
}

// WebSocket attaches to a terminal session for interactive I/O. Inbound
// messages are JSON envelopes ({type:"input"} or {type:"resize"});
// outbound messages are raw shell output.
func (h *TerminalHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Terminal WebSocket: upgrade failed: %v", err)
		return
	}

	h.trackConn(conn)
	defer func() {
		h.untrackConn(conn)
		conn.Close()
	}()

	var writeMu sync.Mutex

	stream, err := h.broker.Attach(id)
	if err != nil {
		msg := "Error: " + err.Error() + "\r\n"
		if errors.Is(err, terminal.ErrAlreadyAttached) {
			msg = "Error: session already attached from another window\r\n"
		}
		writeMu.Lock()
		conn.WriteMessage(websocket.TextMessage, []byte(msg))
		writeMu.Unlock()
		return
	}
	defer stream.Close()

	const pongWait = 60 * time.Second
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Ping ticker keeps intermediaries from dropping idle sessions
	pingTicker := time.NewTicker(pongWait * 9 / 10)
	defer pingTicker.Stop()

	done := make(chan struct{})

	// Shell output -> WebSocket
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				writeMu.Lock()
				werr := conn.WriteMessage(websocket.TextMessage, buf[:n])
				writeMu.Unlock()
				if werr != nil {
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					log.Printf("Terminal WebSocket: session read error: %v", err)
				}
				// Tell the client the shell is gone
				writeMu.Lock()
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(time.Second))
				writeMu.Unlock()
				return
			}
		}
	}()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}()

	// WebSocket -> shell
	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg terminalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "input":
			if _, err := stream.Write([]byte(msg.Data)); err != nil {
				log.Printf("Terminal WebSocket: pty write error: %v", err)
			}

		case "resize":
			if msg.Cols > 0 && msg.Rows > 0 {
				h.broker.Resize(id, uint16(msg.Cols), uint16(msg.Rows))
			}
		}
	}
}
