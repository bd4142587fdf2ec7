// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import "fmt"

// NotAProjectError indicates a path that exists but does not carry the
// configured project marker.
type NotAProjectError struct {
	Path   string
	Marker string
}

func (e *NotAProjectError) Error() string {
	return fmt.Sprintf("not a project: %s (missing %s)", e.Path, e.Marker)
}

// ProcessCrashError records a dev server that exited on its own with a
// nonzero code. It is stored on the project rather than returned, since
// crashes happen after Open already succeeded.
type ProcessCrashError struct {
	ExitCode int
}

func (e *ProcessCrashError) Error() string {
	return fmt.Sprintf("dev server crashed with exit code %d", e.ExitCode)
}
