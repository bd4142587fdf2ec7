// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher detects open project directories disappearing from
// disk, so their dev servers can be shut down instead of serving a
// deleted tree.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingedpig/dockhand/internal/events"
)

// DirWatcher watches open project root directories and emits
// project.dir_removed when one is deleted or renamed away. It watches
// each root's parent directory, since fsnotify drops a watch on the
// directory itself once it is removed.
type DirWatcher struct {
	mu            sync.RWMutex
	bus           events.EventBus
	watcher       *fsnotify.Watcher
	debouncer     *Debouncer
	watches       map[string]string // project id -> root path
	pathToProject map[string]string // root path -> project id
	parents       map[string]int    // parent dir -> watch count
	closed        bool
	closeCh       chan struct{}
	wg            sync.WaitGroup
}

// NewDirWatcher creates a directory watcher publishing on bus.
func NewDirWatcher(bus events.EventBus, debounce time.Duration) (*DirWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &DirWatcher{
		bus:           bus,
		watcher:       fsWatcher,
		debouncer:     NewDebouncer(debounce),
		watches:       make(map[string]string),
		pathToProject: make(map[string]string),
		parents:       make(map[string]int),
		closeCh:       make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Watch starts watching a project's root directory for removal.
func (w *DirWatcher) Watch(projectID, rootPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}

	if old, exists := w.watches[projectID]; exists {
		w.removeParentWatch(filepath.Dir(old))
		delete(w.pathToProject, old)
	}

	parent := filepath.Dir(rootPath)
	if err := w.addParentWatch(parent); err != nil {
		return fmt.Errorf("watch %s: %w", parent, err)
	}

	w.watches[projectID] = rootPath
	w.pathToProject[rootPath] = projectID
	return nil
}

// Unwatch stops watching a project. Unknown ids are a no-op.
func (w *DirWatcher) Unwatch(projectID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rootPath, exists := w.watches[projectID]
	if !exists {
		return
	}
	w.removeParentWatch(filepath.Dir(rootPath))
	delete(w.pathToProject, rootPath)
	delete(w.watches, projectID)
	w.debouncer.Cancel(projectID)
}

// Watching returns the project ids currently watched.
func (w *DirWatcher) Watching() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]string, 0, len(w.watches))
	for id := range w.watches {
		result = append(result, id)
	}
	return result
}

// Close stops the watcher and releases resources.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	w.watcher.Close()
	w.wg.Wait()

	return nil
}

func (w *DirWatcher) addParentWatch(parent string) error {
	w.parents[parent]++
	if w.parents[parent] == 1 {
		if err := w.watcher.Add(parent); err != nil {
			w.parents[parent]--
			if w.parents[parent] == 0 {
				delete(w.parents, parent)
			}
			return err
		}
	}
	return nil
}

func (w *DirWatcher) removeParentWatch(parent string) {
	w.parents[parent]--
	if w.parents[parent] <= 0 {
		w.watcher.Remove(parent)
		delete(w.parents, parent)
	}
}

func (w *DirWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: directory watcher: %v", err)
		}
	}
}

func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	// Only removals and renames matter; writes inside the parent are
	// routine project activity
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.RLock()
	projectID, exists := w.pathToProject[event.Name]
	w.mu.RUnlock()

	if exists {
		w.triggerRemoved(projectID, event.Name)
	}
}

func (w *DirWatcher) triggerRemoved(projectID, rootPath string) {
	w.debouncer.Debounce(projectID, func() {
		// An editor save-and-replace can emit a transient rename;
		// confirm the directory is actually gone
		if fi, err := os.Stat(rootPath); err == nil && fi.IsDir() {
			return
		}

		if w.bus != nil {
			w.bus.Publish(context.Background(), events.Event{
				Type:    events.EventProjectDirRemoved,
				Project: projectID,
				Payload: map[string]interface{}{
					"path": rootPath,
				},
			})
		}
	})
}
