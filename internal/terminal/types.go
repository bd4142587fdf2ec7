// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package terminal manages interactive pty-backed shell sessions. Each
// session owns one shell process; clients attach over an io stream, and
// detaching leaves the shell running for later reattachment.
package terminal

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned for operations on unknown session ids.
	ErrSessionNotFound = errors.New("terminal session not found")

	// ErrAlreadyAttached is returned when a session already has a client.
	ErrAlreadyAttached = errors.New("terminal session already attached")
)

// SessionInfo is a read-only snapshot of one terminal session.
type SessionInfo struct {
	ID           string    `json:"id"`
	Dir          string    `json:"dir"`
	Attached     bool      `json:"attached"`
	Cols         uint16    `json:"cols"`
	Rows         uint16    `json:"rows"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Config holds the broker's tunable settings.
type Config struct {
	// Shell is the command to run in each session. Empty means $SHELL,
	// falling back to /bin/sh.
	Shell string

	// Scrollback is the per-session output history in bytes, replayed on
	// reattach. Defaults to 256 KiB.
	Scrollback int
}

const defaultScrollback = 256 * 1024
