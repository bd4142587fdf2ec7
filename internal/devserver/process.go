// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const defaultStopTimeout = 10 * time.Second

// Process manages a single dev-server process bound to a project
// directory and port.
type Process struct {
	dir         string
	port        int
	launcher    Launcher
	stopTimeout time.Duration

	mu            sync.RWMutex
	cmd           *exec.Cmd
	state         State
	pid           int
	exitCode      int
	startedAt     time.Time
	stoppedAt     time.Time
	logs          *LogBuffer
	stopRequested bool
	isRunning     bool

	onExit   func(int)
	onError  func(error)
	cancelFn context.CancelFunc
	waitDone chan struct{}
}

// Options configures a Process.
type Options struct {
	Dir         string
	Port        int
	Launcher    Launcher
	StopTimeout time.Duration
	LogBufSize  int
}

// NewProcess creates a new dev-server process handle. It does not start
// the process.
func NewProcess(opts Options) *Process {
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &Process{
		dir:         opts.Dir,
		port:        opts.Port,
		launcher:    opts.Launcher,
		stopTimeout: stopTimeout,
		state:       StatusStopped,
		logs:        NewLogBuffer(opts.LogBufSize),
	}
}

// Port returns the port the process is bound to.
func (p *Process) Port() int {
	return p.port
}

// Start launches the process.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("process already running")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelFn = cancel

	cmd, err := p.launcher.Launch(runCtx, p.dir, p.port)
	if err != nil {
		cancel()
		p.logs.Write(fmt.Sprintf("[dockhand] Error: %v", err))
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	p.logs.Write(fmt.Sprintf("[dockhand] Starting dev server in %s on port %d", p.dir, p.port))

	p.state = StatusStarting
	if err := cmd.Start(); err != nil {
		cancel()
		p.state = StatusStopped
		p.logs.Write(fmt.Sprintf("[dockhand] Failed to start: %v", err))
		return fmt.Errorf("start process: %w", err)
	}

	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	p.exitCode = 0
	p.isRunning = true
	p.state = StatusRunning
	p.waitDone = make(chan struct{})

	go p.captureOutput(stdout)
	go p.captureOutput(stderr)
	go p.waitForExit()

	return nil
}

// Stop stops the process gracefully: SIGTERM to the process group, then
// SIGKILL after the grace period. Never blocks indefinitely.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.state = StatusStopping
	p.stopRequested = true
	cmd := p.cmd
	waitDone := p.waitDone
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	// Signal the process group (negative PID) to reach child processes
	pgid := cmd.Process.Pid
	syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case <-waitDone:
		// Process exited
	case <-time.After(p.stopTimeout):
		// The user asked for termination; escalate
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-waitDone
	case <-ctx.Done():
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-waitDone
	}

	return nil
}

// Status returns the current process status.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Status{
		State:     p.state,
		PID:       p.pid,
		ExitCode:  p.exitCode,
		StartedAt: p.startedAt,
		StoppedAt: p.stoppedAt,
	}
}

// Logs returns the last n lines of output.
func (p *Process) Logs(n int) []string {
	return p.logs.Lines(n)
}

// SubscribeLogs returns a channel that receives new log lines.
func (p *Process) SubscribeLogs() chan LogLine {
	return p.logs.Subscribe()
}

// UnsubscribeLogs removes a log subscription.
func (p *Process) UnsubscribeLogs(ch chan LogLine) {
	p.logs.Unsubscribe(ch)
}

// CloseLogSubscribers closes all log subscriber channels.
func (p *Process) CloseLogSubscribers() {
	p.logs.CloseAllSubscribers()
}

// OnExit sets a callback for when the process exits on its own.
// It is not called when the exit was requested via Stop.
func (p *Process) OnExit(fn func(int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = fn
}

// OnError sets a callback for asynchronous process errors.
func (p *Process) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

func (p *Process) captureOutput(r io.Reader) {
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")

			// Truncate very long lines to bound memory
			const maxLineLen = 1024 * 1024
			if len(line) > maxLineLen {
				line = line[:maxLineLen] + "... [truncated]"
			}
			p.logs.Write(line)
		}
		if err != nil {
			if err != io.EOF {
				p.logs.Write(fmt.Sprintf("[dockhand] Output read error: %v", err))
			}
			break
		}
	}
}

func (p *Process) waitForExit() {
	cmd := p.cmd
	err := cmd.Wait()

	p.mu.Lock()
	p.isRunning = false
	p.stoppedAt = time.Now()

	if err != nil {
		p.logs.Write(fmt.Sprintf("[dockhand] Dev server exited with error: %v", err))
	} else {
		p.logs.Write("[dockhand] Dev server exited cleanly")
	}
	wasStopRequested := p.stopRequested

	var asyncErr error
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			p.exitCode = exitErr.ExitCode()
			if wasStopRequested || p.exitCode == 0 {
				p.state = StatusStopped
			} else {
				p.state = StatusError
			}
		} else {
			if wasStopRequested {
				p.state = StatusStopped
				p.exitCode = 0
			} else {
				p.state = StatusError
				p.exitCode = -1
				asyncErr = err
			}
		}
	} else {
		p.exitCode = 0
		p.state = StatusStopped
	}

	exitCode := p.exitCode
	onExit := p.onExit
	onError := p.onError
	cancelFn := p.cancelFn
	waitDone := p.waitDone
	p.cmd = nil
	p.pid = 0
	p.stopRequested = false
	p.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}

	close(waitDone)

	// Callbacks fire only for unrequested exits; requested stops are
	// handled synchronously by the caller of Stop.
	if wasStopRequested {
		return
	}
	if asyncErr != nil && onError != nil {
		onError(asyncErr)
	}
	if onExit != nil {
		onExit(exitCode)
	}
}
