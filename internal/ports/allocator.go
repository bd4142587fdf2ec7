// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ports allocates dev-server TCP ports above a base port.
package ports

import "errors"

// DefaultBase is the default base port for dev-server allocation.
const DefaultBase = 6969

// maxScan bounds the allocation window above the base port.
const maxScan = 4096

// ErrPortExhausted is returned when no free port exists in the allocation
// window. This indicates a configuration problem and aborts the operation.
var ErrPortExhausted = errors.New("ports: no free port above base port")

// Allocate returns the first port above base that is not in excluded.
// It is deterministic and side-effect-free: the caller must commit the
// returned port to the excluded set before allocating again, so allocation
// may only run on the serialized registry path.
func Allocate(base int, excluded map[int]bool) (int, error) {
	for port := base + 1; port <= base+maxScan; port++ {
		if !excluded[port] {
			return port, nil
		}
	}
	return 0, ErrPortExhausted
}
