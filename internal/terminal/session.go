// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// session is one live shell under a pty.
type session struct {
	id  string
	dir string

	mu           sync.Mutex
	cmd          *exec.Cmd
	ptmx         *os.File
	ring         *byteRing
	att          *attachment
	cols, rows   uint16
	createdAt    time.Time
	lastActivity time.Time
	exited       bool
	done         chan struct{}
}

func (s *session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:           s.id,
		Dir:          s.dir,
		Attached:     s.att != nil,
		Cols:         s.cols,
		Rows:         s.rows,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// readLoop pumps pty output into the scrollback ring and, when a client
// is attached, into its channel. Runs until the pty closes.
func (s *session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			s.mu.Lock()
			s.ring.Write(data)
			s.lastActivity = time.Now()
			att := s.att
			s.mu.Unlock()

			if att != nil {
				select {
				case att.out <- data:
				case <-att.closed:
				case <-s.done:
				}
			}
		}
		if err != nil {
			// Read fails with EIO once the shell exits and the pty
			// slave side closes
			return
		}
	}
}

// writePty forwards client input to the shell.
func (s *session) writePty(p []byte) (int, error) {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	ptmx := s.ptmx
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return ptmx.Write(p)
}

func (s *session) resize(cols, rows uint16) error {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	ptmx := s.ptmx
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
	return pty.Setsize(ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// attach wires a client to the session, replaying recent scrollback
// first. At most one client may be attached.
func (s *session) attach() (io.ReadWriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited {
		return nil, ErrSessionNotFound
	}
	if s.att != nil {
		return nil, ErrAlreadyAttached
	}
	att := &attachment{
		s:      s,
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
		buf:    s.ring.Bytes(),
	}
	s.att = att
	return att, nil
}

func (s *session) detach(att *attachment) {
	s.mu.Lock()
	if s.att == att {
		s.att = nil
	}
	s.mu.Unlock()
}

// kill force-terminates the shell. The reaper goroutine handles cleanup.
func (s *session) kill() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

// markExited finalizes the session after the shell process is reaped.
func (s *session) markExited() {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.exited = true
	s.ptmx.Close()
	att := s.att
	s.att = nil
	s.mu.Unlock()

	close(s.done)
	if att != nil {
		att.Close()
	}
}

// attachment is the client side of a session: Read yields shell output
// (scrollback replay first), Write feeds the shell, Close detaches
// without killing the shell.
type attachment struct {
	s      *session
	out    chan []byte
	buf    []byte
	closed chan struct{}
	once   sync.Once
}

func (a *attachment) Read(p []byte) (int, error) {
	if len(a.buf) > 0 {
		n := copy(p, a.buf)
		a.buf = a.buf[n:]
		return n, nil
	}
	select {
	case data := <-a.out:
		n := copy(p, data)
		if n < len(data) {
			a.buf = data[n:]
		}
		return n, nil
	case <-a.closed:
		return 0, io.EOF
	case <-a.s.done:
		// Drain anything the read loop queued before exit
		select {
		case data := <-a.out:
			n := copy(p, data)
			if n < len(data) {
				a.buf = data[n:]
			}
			return n, nil
		default:
			return 0, io.EOF
		}
	}
}

func (a *attachment) Write(p []byte) (int, error) {
	return a.s.writePty(p)
}

func (a *attachment) Close() error {
	a.once.Do(func() {
		a.s.detach(a)
		close(a.closed)
	})
	return nil
}

// byteRing is a bounded byte buffer keeping the most recent output.
type byteRing struct {
	buf  []byte
	size int
	head int
}

func newByteRing(capacity int) *byteRing {
	if capacity <= 0 {
		capacity = defaultScrollback
	}
	return &byteRing{buf: make([]byte, capacity)}
}

func (r *byteRing) Write(p []byte) {
	if len(p) >= len(r.buf) {
		copy(r.buf, p[len(p)-len(r.buf):])
		r.head = 0
		r.size = len(r.buf)
		return
	}
	for _, b := range p {
		r.buf[(r.head+r.size)%len(r.buf)] = b
		if r.size < len(r.buf) {
			r.size++
		} else {
			r.head = (r.head + 1) % len(r.buf)
		}
	}
}

func (r *byteRing) Bytes() []byte {
	out := make([]byte, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
