// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBroker uses cat as the shell: the pty echoes input and cat
// copies it back, so written bytes show up on the output side.
func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker(Config{Shell: "/bin/cat", Scrollback: 4096}, nil)
	t.Cleanup(b.DestroyAll)
	return b
}

// readUntil reads from r until the accumulated output contains substr.
func readUntil(t *testing.T, r io.Reader, substr string) string {
	t.Helper()
	result := make(chan string, 1)
	go func() {
		var sb strings.Builder
		buf := make([]byte, 1024)
		for {
			n, err := r.Read(buf)
			sb.Write(buf[:n])
			if strings.Contains(sb.String(), substr) {
				result <- sb.String()
				return
			}
			if err != nil {
				result <- sb.String()
				return
			}
		}
	}()
	select {
	case out := <-result:
		require.Contains(t, out, substr)
		return out
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", substr)
		return ""
	}
}

func TestCreateAndList(t *testing.T) {
	b := newTestBroker(t)

	info, err := b.Create(t.TempDir(), 100, 30)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, uint16(100), info.Cols)
	assert.Equal(t, uint16(30), info.Rows)
	assert.False(t, info.Attached)

	list := b.List()
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)

	got, ok := b.Get(info.ID)
	require.True(t, ok)
	assert.Equal(t, info.ID, got.ID)
}

func TestAttachRoundTrip(t *testing.T) {
	b := newTestBroker(t)
	info, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)

	conn, err := b.Attach(info.ID)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello\n"))
	require.NoError(t, err)
	readUntil(t, conn, "hello")

	got, _ := b.Get(info.ID)
	assert.True(t, got.Attached)
}

func TestSecondAttachRejected(t *testing.T) {
	b := newTestBroker(t)
	info, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)

	conn, err := b.Attach(info.ID)
	require.NoError(t, err)
	defer conn.Close()

	_, err = b.Attach(info.ID)
	assert.ErrorIs(t, err, ErrAlreadyAttached)
}

func TestReattachReplaysScrollback(t *testing.T) {
	b := newTestBroker(t)
	info, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)

	conn, err := b.Attach(info.ID)
	require.NoError(t, err)
	_, err = conn.Write([]byte("remember-me\n"))
	require.NoError(t, err)
	readUntil(t, conn, "remember-me")
	require.NoError(t, conn.Close())

	// Shell survives detach; history replays on reattach
	got, ok := b.Get(info.ID)
	require.True(t, ok)
	assert.False(t, got.Attached)

	conn2, err := b.Attach(info.ID)
	require.NoError(t, err)
	defer conn2.Close()
	readUntil(t, conn2, "remember-me")
}

func TestSessionsAreIsolated(t *testing.T) {
	b := newTestBroker(t)
	a, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)
	c, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)

	connA, err := b.Attach(a.ID)
	require.NoError(t, err)
	defer connA.Close()
	connC, err := b.Attach(c.ID)
	require.NoError(t, err)
	defer connC.Close()

	_, err = connA.Write([]byte("only-in-a\n"))
	require.NoError(t, err)
	readUntil(t, connA, "only-in-a")

	_, err = connC.Write([]byte("only-in-c\n"))
	require.NoError(t, err)
	out := readUntil(t, connC, "only-in-c")
	assert.NotContains(t, out, "only-in-a")
}

func TestDestroyKillsSession(t *testing.T) {
	b := newTestBroker(t)
	info, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)

	require.NoError(t, b.Destroy(info.ID))

	_, ok := b.Get(info.ID)
	assert.False(t, ok)
	_, err = b.Attach(info.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDestroyUnknownIsNoop(t *testing.T) {
	b := newTestBroker(t)
	assert.NoError(t, b.Destroy("no-such-session"))
}

func TestShellExitReapsSession(t *testing.T) {
	b := NewBroker(Config{Shell: "/bin/true"}, nil)
	t.Cleanup(b.DestroyAll)

	info, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := b.Get(info.ID)
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestResize(t *testing.T) {
	b := newTestBroker(t)
	info, err := b.Create(t.TempDir(), 80, 24)
	require.NoError(t, err)

	require.NoError(t, b.Resize(info.ID, 120, 40))
	got, _ := b.Get(info.ID)
	assert.Equal(t, uint16(120), got.Cols)
	assert.Equal(t, uint16(40), got.Rows)

	assert.ErrorIs(t, b.Resize("missing", 80, 24), ErrSessionNotFound)
}

func TestByteRingKeepsTail(t *testing.T) {
	r := newByteRing(8)
	r.Write([]byte("abcdefgh"))
	assert.Equal(t, "abcdefgh", string(r.Bytes()))

	r.Write([]byte("ij"))
	assert.Equal(t, "cdefghij", string(r.Bytes()))

	r.Write([]byte("0123456789abcdef"))
	assert.Equal(t, "89abcdef", string(r.Bytes()))
}
