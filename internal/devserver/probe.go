// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ReadinessTimeoutError indicates a dev server did not accept connections
// on its port within the probe timeout. The process is left running and
// log-visible so the failure can be diagnosed.
type ReadinessTimeoutError struct {
	Port    int
	Timeout time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("dev server not ready on port %d after %s", e.Port, e.Timeout)
}

// Prober checks whether a dev server accepts TCP connections on its port.
// It is pluggable so tests can substitute a fake.
type Prober interface {
	WaitReady(ctx context.Context, port int, timeout time.Duration) error
}

// TCPProber polls a local TCP port until it accepts a connection.
type TCPProber struct {
	// Interval between connection attempts. Defaults to 250ms.
	Interval time.Duration
}

// WaitReady blocks until the port accepts a connection, the timeout
// elapses, or the context is cancelled.
func (p *TCPProber) WaitReady(ctx context.Context, port int, timeout time.Duration) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	for {
		conn, err := net.DialTimeout("tcp", addr, interval)
		if err == nil {
			conn.Close()
			return nil
		}

		if time.Now().After(deadline) {
			return &ReadinessTimeoutError{Port: port, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
