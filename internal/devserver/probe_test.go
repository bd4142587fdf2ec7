// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPProberReadyImmediately(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	p := &TCPProber{Interval: 20 * time.Millisecond}
	err = p.WaitReady(context.Background(), port, 2*time.Second)
	assert.NoError(t, err)
}

func TestTCPProberWaitsForListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	// Start listening shortly after the probe begins
	go func() {
		time.Sleep(150 * time.Millisecond)
		ln2, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err == nil {
			defer ln2.Close()
			time.Sleep(time.Second)
		}
	}()

	p := &TCPProber{Interval: 20 * time.Millisecond}
	err = p.WaitReady(context.Background(), port, 3*time.Second)
	assert.NoError(t, err)
}

func TestTCPProberTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // nothing listens here anymore

	p := &TCPProber{Interval: 20 * time.Millisecond}
	err = p.WaitReady(context.Background(), port, 200*time.Millisecond)

	var timeout *ReadinessTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, port, timeout.Port)
}

func TestTCPProberContextCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	p := &TCPProber{Interval: 20 * time.Millisecond}
	err = p.WaitReady(ctx, port, 10*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
