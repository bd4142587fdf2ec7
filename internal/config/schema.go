// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for dockhand.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for dockhand.
type Config struct {
	Version   string          `json:"version"`
	Project   ProjectConfig   `json:"project"`
	Server    ServerConfig    `json:"server"`
	Ports     PortsConfig     `json:"ports"`
	DevServer DevServerConfig `json:"devserver"`
	State     StateConfig     `json:"state"`
	Terminal  TerminalConfig  `json:"terminal"`
	Events    EventsConfig    `json:"events"`
	Watch     WatchConfig     `json:"watch"`
}

// ProjectConfig describes what qualifies a directory as an openable project.
type ProjectConfig struct {
	// Marker is a file or directory that must exist inside a project root
	// for it to qualify (e.g. ".git", "package.json").
	Marker string `json:"marker"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// PortsConfig configures dev-server port allocation.
type PortsConfig struct {
	// Base is the port above which dev-server ports are allocated.
	Base int `json:"base"`
}

// DevServerConfig configures how per-project dev servers are launched.
type DevServerConfig struct {
	// Command is the dev-server command, either a shell string or an
	// argv array. Occurrences of {port} in arguments are replaced with
	// the allocated port; the port is also exported as PORT.
	Command          interface{}       `json:"command"`
	Args             []string          `json:"args"`
	Env              map[string]string `json:"env"`
	ReadinessTimeout string            `json:"readiness_timeout"`
	StopTimeout      string            `json:"stop_timeout"`
	LogBufferSize    int               `json:"log_buffer_size"`
}

// GetCommand returns the dev-server command as an argv slice.
// String commands are executed through the shell.
func (c DevServerConfig) GetCommand() []string {
	switch cmd := c.Command.(type) {
	case string:
		if cmd == "" {
			return nil
		}
		return []string{"sh", "-c", cmd}
	case []string:
		return cmd
	case []interface{}:
		result := make([]string, 0, len(cmd))
		for _, v := range cmd {
			switch s := v.(type) {
			case string:
				result = append(result, s)
			default:
				if v != nil {
					result = append(result, fmt.Sprintf("%v", v))
				}
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	default:
		return nil
	}
}

// StateConfig configures session-state persistence.
type StateConfig struct {
	// File is the path of the session state file.
	File string `json:"file"`
}

// TerminalConfig configures interactive terminal sessions.
type TerminalConfig struct {
	// Shell is the program started for each terminal session.
	// Defaults to $SHELL, then /bin/sh.
	Shell string `json:"shell"`
	// Scrollback is the size in bytes of the per-session replay buffer.
	Scrollback int `json:"scrollback"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History EventHistoryConfig `json:"history"`
}

// EventHistoryConfig configures event retention.
type EventHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// WatchConfig configures project directory watching.
type WatchConfig struct {
	Debounce string `json:"debounce"`
}

// ParseDuration parses a duration string, returning def when the string is
// empty or invalid.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
