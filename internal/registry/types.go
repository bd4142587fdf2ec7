// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registry tracks the set of open projects, one supervised dev
// server per project, and which project is active. All mutations pass
// through a single mutex so lifecycle transitions observe a consistent
// view of ports and paths.
package registry

import (
	"time"

	"github.com/wingedpig/dockhand/internal/devserver"
)

// Project is a read-only snapshot of one open project.
type Project struct {
	ID       string          `json:"id"`
	RootPath string          `json:"rootPath"`
	Name     string          `json:"name"`
	Port     int             `json:"port"`
	Status   devserver.State `json:"status"`
	Error    string          `json:"error,omitempty"`
	OpenedAt time.Time       `json:"openedAt"`
	Active   bool            `json:"active"`
}

// managedProject pairs the snapshot data with its live process handle.
type managedProject struct {
	info Project
	proc *devserver.Process
}
