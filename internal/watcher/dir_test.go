// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/dockhand/internal/events"
)

func newTestWatcher(t *testing.T) (*DirWatcher, events.EventBus) {
	t.Helper()
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	w, err := NewDirWatcher(bus, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() {
		w.Close()
		bus.Close()
	})
	return w, bus
}

func collectRemovals(t *testing.T, bus events.EventBus) (*sync.Mutex, *[]events.Event) {
	t.Helper()
	var mu sync.Mutex
	var got []events.Event
	_, err := bus.Subscribe(events.EventProjectDirRemoved, func(ctx context.Context, e events.Event) error {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return &mu, &got
}

func TestDirRemovalEmitsEvent(t *testing.T) {
	w, bus := newTestWatcher(t)
	mu, got := collectRemovals(t, bus)

	parent := t.TempDir()
	root := filepath.Join(parent, "proj")
	require.NoError(t, os.Mkdir(root, 0755))
	require.NoError(t, w.Watch("abc123", root))

	require.NoError(t, os.Remove(root))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*got) == 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "abc123", (*got)[0].Project)
	assert.Equal(t, root, (*got)[0].Payload["path"])
}

func TestSiblingRemovalIgnored(t *testing.T) {
	w, bus := newTestWatcher(t)
	mu, got := collectRemovals(t, bus)

	parent := t.TempDir()
	root := filepath.Join(parent, "proj")
	sibling := filepath.Join(parent, "other")
	require.NoError(t, os.Mkdir(root, 0755))
	require.NoError(t, os.Mkdir(sibling, 0755))
	require.NoError(t, w.Watch("abc123", root))

	require.NoError(t, os.Remove(sibling))
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *got)
}

func TestUnwatchStopsEvents(t *testing.T) {
	w, bus := newTestWatcher(t)
	mu, got := collectRemovals(t, bus)

	parent := t.TempDir()
	root := filepath.Join(parent, "proj")
	require.NoError(t, os.Mkdir(root, 0755))
	require.NoError(t, w.Watch("abc123", root))
	assert.Equal(t, []string{"abc123"}, w.Watching())

	w.Unwatch("abc123")
	assert.Empty(t, w.Watching())

	require.NoError(t, os.Remove(root))
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *got)
}

func TestTransientRenameSuppressed(t *testing.T) {
	w, bus := newTestWatcher(t)
	mu, got := collectRemovals(t, bus)

	parent := t.TempDir()
	root := filepath.Join(parent, "proj")
	tmp := filepath.Join(parent, "proj.tmp")
	require.NoError(t, os.Mkdir(root, 0755))
	require.NoError(t, w.Watch("abc123", root))

	// Rename away and back within the debounce window
	require.NoError(t, os.Rename(root, tmp))
	require.NoError(t, os.Rename(tmp, root))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *got)
}

func TestWatchAfterCloseFails(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()
	w, err := NewDirWatcher(bus, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Error(t, w.Watch("abc123", t.TempDir()))
}
