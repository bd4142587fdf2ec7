// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/wingedpig/dockhand/internal/events"
)

// Broker owns the terminal session pool.
type Broker struct {
	cfg Config
	bus events.EventBus

	mu       sync.Mutex
	sessions map[string]*session
}

// NewBroker creates a broker. The bus may be nil; event publication is
// skipped when absent.
func NewBroker(cfg Config, bus events.EventBus) *Broker {
	if cfg.Scrollback <= 0 {
		cfg.Scrollback = defaultScrollback
	}
	return &Broker{
		cfg:      cfg,
		bus:      bus,
		sessions: make(map[string]*session),
	}
}

// Create starts a new shell session in dir with the given initial size.
func (b *Broker) Create(dir string, cols, rows uint16) (SessionInfo, error) {
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	shell := b.cfg.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return SessionInfo{}, fmt.Errorf("start shell: %w", err)
	}

	s := &session{
		id:           generateSessionID(),
		dir:          dir,
		cmd:          cmd,
		ptmx:         ptmx,
		ring:         newByteRing(b.cfg.Scrollback),
		cols:         cols,
		rows:         rows,
		createdAt:    time.Now(),
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}

	b.mu.Lock()
	b.sessions[s.id] = s
	b.mu.Unlock()

	go s.readLoop()
	go b.reap(s)

	b.publish(events.EventTerminalCreated, s)
	return s.info(), nil
}

// Get returns a snapshot of one session.
func (b *Broker) Get(id string) (SessionInfo, bool) {
	b.mu.Lock()
	s, ok := b.sessions[id]
	b.mu.Unlock()
	if !ok {
		return SessionInfo{}, false
	}
	return s.info(), true
}

// List returns snapshots of all live sessions.
func (b *Broker) List() []SessionInfo {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	list := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, s.info())
	}
	return list
}

// Attach connects a client to a session. Shell output (recent scrollback
// first) arrives via Read; Write feeds the shell; Close detaches and
// leaves the shell running. Only one client may be attached at a time.
func (b *Broker) Attach(id string) (io.ReadWriteCloser, error) {
	b.mu.Lock()
	s, ok := b.sessions[id]
	b.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.attach()
}

// Resize changes a session's terminal dimensions.
func (b *Broker) Resize(id string, cols, rows uint16) error {
	b.mu.Lock()
	s, ok := b.sessions[id]
	b.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return s.resize(cols, rows)
}

// Destroy kills a session's shell and frees the id. Unknown ids are a
// no-op.
func (b *Broker) Destroy(id string) error {
	b.mu.Lock()
	s, ok := b.sessions[id]
	if ok {
		delete(b.sessions, id)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}

	s.kill()
	b.publish(events.EventTerminalDestroyed, s)
	return nil
}

// DestroyAll kills every session. Used on shutdown.
func (b *Broker) DestroyAll() {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.sessions = make(map[string]*session)
	b.mu.Unlock()

	for _, s := range sessions {
		s.kill()
		<-s.done
	}
}

// reap waits for the shell to exit, then finalizes and removes the
// session. Covers both Destroy and the shell exiting on its own.
func (b *Broker) reap(s *session) {
	if err := s.cmd.Wait(); err != nil {
		// Normal for killed shells; only worth a log line otherwise
		if _, ok := err.(*exec.ExitError); !ok {
			log.Printf("Warning: reaping terminal session %s: %v", s.id, err)
		}
	}
	s.markExited()

	b.mu.Lock()
	cur, ok := b.sessions[s.id]
	removed := ok && cur == s
	if removed {
		delete(b.sessions, s.id)
	}
	b.mu.Unlock()

	// Destroy already published for its own removals
	if removed {
		b.publish(events.EventTerminalDestroyed, s)
	}
}

func (b *Broker) publish(eventType string, s *session) {
	if b.bus == nil {
		return
	}
	err := b.bus.Publish(context.Background(), events.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"terminalId": s.id,
			"dir":        s.dir,
		},
	})
	if err != nil {
		log.Printf("Warning: publishing %s event: %v", eventType, err)
	}
}

func generateSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
