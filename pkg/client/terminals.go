// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// TerminalClient provides access to terminal session operations.
//
// Sessions are created and destroyed over HTTP; interactive I/O flows over
// the session's WebSocket endpoint (/api/v1/terminals/{id}/ws), which this
// client does not wrap.
//
// Access this client through [Client.Terminals]:
//
//	sessions, err := client.Terminals.List(ctx)
type TerminalClient struct {
	c *Client
}

// CreateOptions configures a new terminal session.
type CreateOptions struct {
	// Dir is the working directory for the shell. Required.
	Dir string `json:"dir"`

	// Cols and Rows are the initial pty dimensions. Zero values use the
	// server defaults (80x24).
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// Create starts a new shell session in dir.
func (t *TerminalClient) Create(ctx context.Context, dir string, cols, rows uint16) (*TerminalSession, error) {
	data, err := t.c.postJSON(ctx, "/api/v1/terminals", CreateOptions{
		Dir:  dir,
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		return nil, err
	}

	var session TerminalSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	return &session, nil
}

// List returns all live terminal sessions.
func (t *TerminalClient) List(ctx context.Context) ([]TerminalSession, error) {
	data, err := t.c.get(ctx, "/api/v1/terminals")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Sessions []TerminalSession `json:"sessions"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}

	return resp.Sessions, nil
}

// Destroy kills a terminal session's shell and removes the session.
// Destroying an unknown id succeeds.
func (t *TerminalClient) Destroy(ctx context.Context, id string) error {
	_, err := t.c.delete(ctx, "/api/v1/terminals/"+id)
	return err
}
