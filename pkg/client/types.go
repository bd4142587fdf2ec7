// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Project is an open project and its supervised dev server.
type Project struct {
	// ID is the stable project identifier, derived from the normalized
	// root path.
	ID string `json:"id"`

	// RootPath is the normalized absolute path of the project directory.
	RootPath string `json:"rootPath"`

	// Name is the display name (the last path component).
	Name string `json:"name"`

	// Port is the TCP port allocated to the project's dev server.
	Port int `json:"port"`

	// Status is the dev-server state: "starting", "running", "stopped",
	// or "error".
	Status string `json:"status"`

	// Error describes why the project is in the error state, if it is.
	Error string `json:"error,omitempty"`

	// OpenedAt is when the project was opened in this daemon session.
	OpenedAt time.Time `json:"openedAt"`

	// Active reports whether this is the active project.
	Active bool `json:"active"`
}

// ProjectLogs holds recent dev-server output for a project.
type ProjectLogs struct {
	ID    string   `json:"id"`
	Lines []string `json:"lines"`
}

// TerminalSession is a pty-backed shell session.
type TerminalSession struct {
	// ID is the opaque session identifier.
	ID string `json:"id"`

	// Dir is the session's working directory.
	Dir string `json:"dir"`

	// Attached reports whether a client is currently attached.
	Attached bool `json:"attached"`

	// Cols and Rows are the current pty dimensions.
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Event is one entry in the daemon's event history.
//
// Event types include project.opened, project.running, project.error,
// project.stopped, project.closed, project.activated, project.dir_removed,
// session.restored, terminal.created, and terminal.destroyed.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Project   string                 `json:"project"`
	Payload   map[string]interface{} `json:"payload"`
}
