// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package devserver manages a single project's dev-server process:
// launching, readiness probing, output capture, and graceful shutdown.
package devserver

import "time"

// State represents the state of a dev-server process.
type State int

const (
	StatusStopped State = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusError
)

func (s State) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler to output the string representation.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Status contains the current status of a dev-server process.
type Status struct {
	State     State     `json:"state"`
	PID       int       `json:"pid"`
	ExitCode  int       `json:"exitCode"`
	StartedAt time.Time `json:"startedAt"`
	StoppedAt time.Time `json:"stoppedAt"`
}
