// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shLauncher runs an arbitrary shell snippet in place of a dev server.
type shLauncher struct {
	script string
}

func (l *shLauncher) Launch(ctx context.Context, dir string, port int) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", l.script)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd, nil
}

func newTestProcess(t *testing.T, script string) *Process {
	t.Helper()
	p := NewProcess(Options{
		Dir:         t.TempDir(),
		Port:        6970,
		Launcher:    &shLauncher{script: script},
		StopTimeout: 2 * time.Second,
	})
	t.Cleanup(func() {
		p.Stop(context.Background())
	})
	return p
}

func waitForState(t *testing.T, p *Process, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.Status().State == want
	}, 5*time.Second, 20*time.Millisecond, "state never reached %s", want)
}

func TestProcessStartAndStop(t *testing.T) {
	p := newTestProcess(t, "sleep 60")

	require.NoError(t, p.Start(context.Background()))
	st := p.Status()
	assert.Equal(t, StatusRunning, st.State)
	assert.Greater(t, st.PID, 0)

	require.NoError(t, p.Stop(context.Background()))
	st = p.Status()
	assert.Equal(t, StatusStopped, st.State)
	assert.False(t, st.StoppedAt.IsZero())
}

func TestProcessDoubleStartFails(t *testing.T) {
	p := newTestProcess(t, "sleep 60")
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
}

func TestProcessStopWhenNotRunning(t *testing.T) {
	p := newTestProcess(t, "sleep 60")
	assert.NoError(t, p.Stop(context.Background()))
}

func TestProcessCapturesOutput(t *testing.T) {
	p := newTestProcess(t, `echo line-out; echo line-err >&2; sleep 60`)
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool {
		logs := strings.Join(p.Logs(50), "\n")
		return strings.Contains(logs, "line-out") && strings.Contains(logs, "line-err")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestProcessCleanExitCallsOnExit(t *testing.T) {
	p := newTestProcess(t, "exit 0")

	exitCode := make(chan int, 1)
	p.OnExit(func(code int) { exitCode <- code })

	require.NoError(t, p.Start(context.Background()))

	select {
	case code := <-exitCode:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("OnExit never fired")
	}
	waitForState(t, p, StatusStopped)
}

func TestProcessCrashReportsExitCode(t *testing.T) {
	p := newTestProcess(t, "exit 7")

	exitCode := make(chan int, 1)
	p.OnExit(func(code int) { exitCode <- code })

	require.NoError(t, p.Start(context.Background()))

	select {
	case code := <-exitCode:
		assert.Equal(t, 7, code)
	case <-time.After(5 * time.Second):
		t.Fatal("OnExit never fired")
	}

	waitForState(t, p, StatusError)
	assert.Equal(t, 7, p.Status().ExitCode)
}

func TestProcessRequestedStopSkipsCallbacks(t *testing.T) {
	p := newTestProcess(t, "sleep 60")

	fired := make(chan struct{}, 1)
	p.OnExit(func(code int) { fired <- struct{}{} })

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop(context.Background()))

	select {
	case <-fired:
		t.Fatal("OnExit fired for a requested stop")
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, StatusStopped, p.Status().State)
}

func TestProcessStopKillsChildren(t *testing.T) {
	// Parent shell spawns a child sleep; SIGTERM goes to the group
	p := newTestProcess(t, "sleep 60 & wait")

	require.NoError(t, p.Start(context.Background()))
	pid := p.Status().PID

	done := make(chan struct{})
	go func() {
		p.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Process group must be gone
	require.Eventually(t, func() bool {
		return syscall.Kill(-pid, syscall.Signal(0)) != nil
	}, 5*time.Second, 50*time.Millisecond)
}

func TestProcessSigtermIgnoredEscalatesToKill(t *testing.T) {
	p := NewProcess(Options{
		Dir:         t.TempDir(),
		Port:        6970,
		Launcher:    &shLauncher{script: `trap '' TERM; sleep 60`},
		StopTimeout: 300 * time.Millisecond,
	})

	require.NoError(t, p.Start(context.Background()))
	// Give the shell a moment to install the trap
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Stop(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StatusStopped, p.Status().State)
}

func TestProcessSubscribeLogs(t *testing.T) {
	p := newTestProcess(t, "sleep 60")
	require.NoError(t, p.Start(context.Background()))

	ch := p.SubscribeLogs()
	defer p.UnsubscribeLogs(ch)

	// The launch banner may already be in the ring; write arrives live
	p.logs.Write("live-line")

	require.Eventually(t, func() bool {
		select {
		case line := <-ch:
			return line.Line == "live-line"
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
