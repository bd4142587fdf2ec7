// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/dockhand/internal/devserver"
	"github.com/wingedpig/dockhand/internal/events"
	"github.com/wingedpig/dockhand/internal/ports"
	"github.com/wingedpig/dockhand/internal/state"
)

const defaultReadinessTimeout = 30 * time.Second

// Config holds the registry's tunable settings.
type Config struct {
	// Marker is the file or directory whose presence identifies a
	// project root. Defaults to ".git".
	Marker string

	// BasePort is the floor of the port range; allocated ports are
	// strictly above it.
	BasePort int

	// ReadinessTimeout bounds the wait for a dev server to accept
	// connections after launch.
	ReadinessTimeout time.Duration

	// StopTimeout is the SIGTERM grace period before SIGKILL.
	StopTimeout time.Duration

	// LogBufferSize is the per-project log ring capacity.
	LogBufferSize int
}

// Registry manages the set of open projects and their dev servers.
type Registry struct {
	cfg      Config
	launcher devserver.Launcher
	prober   devserver.Prober
	store    *state.Store
	bus      events.EventBus

	mu       sync.Mutex
	projects map[string]*managedProject // keyed by project id
	byPath   map[string]string          // normalized path -> project id
	activeID string
}

// NewRegistry creates a registry. The store and bus may be nil in tests;
// persistence and event publication are skipped when absent.
func NewRegistry(cfg Config, launcher devserver.Launcher, prober devserver.Prober, store *state.Store, bus events.EventBus) *Registry {
	if cfg.Marker == "" {
		cfg.Marker = ".git"
	}
	if cfg.BasePort <= 0 {
		cfg.BasePort = ports.DefaultBase
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = defaultReadinessTimeout
	}
	return &Registry{
		cfg:      cfg,
		launcher: launcher,
		prober:   prober,
		store:    store,
		bus:      bus,
		projects: make(map[string]*managedProject),
		byPath:   make(map[string]string),
	}
}

// NormalizePath resolves a project path to its canonical absolute form.
// Symlink resolution is best effort; a dangling symlink falls back to the
// cleaned absolute path.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	abs = filepath.Clean(abs)
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

// ProjectID derives the stable id for a normalized path.
func ProjectID(normPath string) string {
	sum := sha256.Sum256([]byte(normPath))
	return hex.EncodeToString(sum[:])[:12]
}

// Open opens the project at rootPath, starting its dev server. Opening a
// path that is already open is idempotent: the existing project becomes
// active and is returned unchanged. The returned snapshot reflects the
// project after launch and readiness probing; a readiness timeout or
// launch failure leaves the project registered in the error state and is
// also returned as the error.
func (r *Registry) Open(ctx context.Context, rootPath string) (Project, error) {
	normPath, err := NormalizePath(rootPath)
	if err != nil {
		return Project{}, err
	}

	r.mu.Lock()

	// Already open: promote to active, nothing else changes
	if id, ok := r.byPath[normPath]; ok {
		mp := r.projects[id]
		r.activeID = id
		mp.info.Active = true
		snap := r.snapshotLocked(mp)
		r.persistLocked()
		r.mu.Unlock()
		r.publish(ctx, events.EventProjectActivated, snap, nil)
		return snap, nil
	}

	if err := r.validateMarker(normPath); err != nil {
		r.mu.Unlock()
		return Project{}, err
	}

	excluded := make(map[int]bool, len(r.projects))
	for _, mp := range r.projects {
		excluded[mp.info.Port] = true
	}
	port, err := ports.Allocate(r.cfg.BasePort, excluded)
	if err != nil {
		r.mu.Unlock()
		return Project{}, err
	}

	id := ProjectID(normPath)
	proc := devserver.NewProcess(devserver.Options{
		Dir:         normPath,
		Port:        port,
		Launcher:    r.launcher,
		StopTimeout: r.cfg.StopTimeout,
		LogBufSize:  r.cfg.LogBufferSize,
	})
	mp := &managedProject{
		info: Project{
			ID:       id,
			RootPath: normPath,
			Name:     filepath.Base(normPath),
			Port:     port,
			Status:   devserver.StatusStarting,
			OpenedAt: time.Now(),
			Active:   true,
		},
		proc: proc,
	}
	r.projects[id] = mp
	r.byPath[normPath] = id
	r.activeID = id
	opened := r.snapshotLocked(mp)
	r.persistLocked()
	r.mu.Unlock()

	proc.OnExit(func(code int) { r.handleExit(id, proc, code) })
	proc.OnError(func(err error) {
		log.Printf("Warning: dev server for %s: %v", normPath, err)
	})

	r.publish(ctx, events.EventProjectOpened, opened, nil)
	r.publish(ctx, events.EventProjectActivated, opened, nil)

	if err := proc.Start(ctx); err != nil {
		snap := r.markError(ctx, id, proc, err)
		return snap, err
	}

	if err := r.prober.WaitReady(ctx, port, r.cfg.ReadinessTimeout); err != nil {
		// Process stays up for diagnosis; only the status changes
		snap := r.markError(ctx, id, proc, err)
		return snap, err
	}

	r.mu.Lock()
	cur, ok := r.projects[id]
	if !ok || cur.proc != proc {
		// Closed or replaced while we were probing
		snap := opened
		r.mu.Unlock()
		return snap, nil
	}
	var running *Project
	if cur.info.Status == devserver.StatusStarting {
		cur.info.Status = devserver.StatusRunning
		snap := r.snapshotLocked(cur)
		running = &snap
	}
	snap := r.snapshotLocked(cur)
	r.mu.Unlock()

	if running != nil {
		r.publish(ctx, events.EventProjectRunning, *running, nil)
	}
	return snap, nil
}

// Close stops the project's dev server and removes it from the open set.
// An unknown id is a no-op. If the closed project was active, an
// arbitrary remaining project is promoted.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	mp, ok := r.projects[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.projects, id)
	delete(r.byPath, mp.info.RootPath)

	var promoted *Project
	if r.activeID == id {
		r.activeID = ""
		for nid, nmp := range r.projects {
			r.activeID = nid
			nmp.info.Active = true
			snap := r.snapshotLocked(nmp)
			promoted = &snap
			break
		}
	}
	closed := r.snapshotLocked(mp)
	r.persistLocked()
	r.mu.Unlock()

	if err := mp.proc.Stop(ctx); err != nil {
		log.Printf("Warning: stopping dev server for %s: %v", mp.info.RootPath, err)
	}
	mp.proc.CloseLogSubscribers()

	r.publish(ctx, events.EventProjectClosed, closed, nil)
	if promoted != nil {
		r.publish(ctx, events.EventProjectActivated, *promoted, nil)
	}
	return nil
}

// CloseAll persists the current open set, then stops every dev server
// concurrently and empties the registry. The persist happens before
// teardown so the saved session still lists the projects to restore.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	r.persistLocked()
	closing := make([]*managedProject, 0, len(r.projects))
	for _, mp := range r.projects {
		closing = append(closing, mp)
	}
	r.projects = make(map[string]*managedProject)
	r.byPath = make(map[string]string)
	r.activeID = ""
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, mp := range closing {
		mp := mp
		g.Go(func() error {
			if err := mp.proc.Stop(gctx); err != nil {
				log.Printf("Warning: stopping dev server for %s: %v", mp.info.RootPath, err)
			}
			mp.proc.CloseLogSubscribers()
			return nil
		})
	}
	return g.Wait()
}

// SetActive marks the project active. Returns false for an unknown id.
func (r *Registry) SetActive(ctx context.Context, id string) bool {
	r.mu.Lock()
	mp, ok := r.projects[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.activeID = id
	mp.info.Active = true
	snap := r.snapshotLocked(mp)
	r.persistLocked()
	r.mu.Unlock()

	r.publish(ctx, events.EventProjectActivated, snap, nil)
	return true
}

// Active returns the active project, if any.
func (r *Registry) Active() (Project, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mp, ok := r.projects[r.activeID]
	if !ok {
		return Project{}, false
	}
	return r.snapshotLocked(mp), true
}

// Get returns a snapshot of one project.
func (r *Registry) Get(id string) (Project, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mp, ok := r.projects[id]
	if !ok {
		return Project{}, false
	}
	return r.snapshotLocked(mp), true
}

// GetByPath returns the project open at the given path, if any.
func (r *Registry) GetByPath(path string) (Project, bool) {
	normPath, err := NormalizePath(path)
	if err != nil {
		return Project{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPath[normPath]
	if !ok {
		return Project{}, false
	}
	return r.snapshotLocked(r.projects[id]), true
}

// List returns snapshots of all open projects, sorted by name.
func (r *Registry) List() []Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]Project, 0, len(r.projects))
	for _, mp := range r.projects {
		list = append(list, r.snapshotLocked(mp))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].RootPath < list[j].RootPath
	})
	return list
}

// Logs returns the last n log lines for a project.
func (r *Registry) Logs(id string, n int) ([]string, bool) {
	r.mu.Lock()
	mp, ok := r.projects[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return mp.proc.Logs(n), true
}

// SubscribeLogs subscribes to a project's live log stream.
func (r *Registry) SubscribeLogs(id string) (chan devserver.LogLine, bool) {
	r.mu.Lock()
	mp, ok := r.projects[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return mp.proc.SubscribeLogs(), true
}

// UnsubscribeLogs removes a log subscription.
func (r *Registry) UnsubscribeLogs(id string, ch chan devserver.LogLine) {
	r.mu.Lock()
	mp, ok := r.projects[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	mp.proc.UnsubscribeLogs(ch)
}

// RestoreSession reopens the projects recorded in the session file.
// Entries whose directory no longer exists are skipped; individual open
// failures are logged and do not abort the rest. The previously active
// project is restored last so intermediate opens don't steal activation.
func (r *Registry) RestoreSession(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	st, err := r.store.Load()
	if err != nil {
		log.Printf("Warning: loading session state: %v", err)
		return nil
	}
	if len(st.OpenProjects) == 0 {
		return nil
	}

	var g errgroup.Group
	restored := 0
	for _, op := range st.OpenProjects {
		op := op
		if fi, err := os.Stat(op.ProjectDir); err != nil || !fi.IsDir() {
			log.Printf("Warning: skipping missing project directory %s", op.ProjectDir)
			continue
		}
		restored++
		g.Go(func() error {
			if _, err := r.Open(ctx, op.ProjectDir); err != nil {
				log.Printf("Warning: restoring project %s: %v", op.ProjectDir, err)
			}
			return nil
		})
	}
	g.Wait()

	if st.LastActiveProjectDir != nil {
		if p, ok := r.GetByPath(*st.LastActiveProjectDir); ok {
			r.SetActive(ctx, p.ID)
		}
	}

	if restored > 0 && r.bus != nil {
		r.bus.Publish(ctx, events.Event{
			Type:    events.EventSessionRestored,
			Payload: map[string]interface{}{"count": restored},
		})
	}
	return nil
}

// handleExit is the process exit callback for unrequested exits. It runs
// off the process's wait goroutine and mutates state only under the
// registry lock.
func (r *Registry) handleExit(id string, proc *devserver.Process, code int) {
	r.mu.Lock()
	mp, ok := r.projects[id]
	if !ok || mp.proc != proc {
		r.mu.Unlock()
		return
	}

	var eventType string
	if code == 0 && mp.info.Status == devserver.StatusStarting {
		// Exited cleanly before ever becoming ready: still a failed start
		mp.info.Status = devserver.StatusError
		mp.info.Error = "dev server exited before becoming ready"
		eventType = events.EventProjectError
	} else if code == 0 {
		mp.info.Status = devserver.StatusStopped
		mp.info.Error = ""
		eventType = events.EventProjectStopped
	} else {
		mp.info.Status = devserver.StatusError
		mp.info.Error = (&ProcessCrashError{ExitCode: code}).Error()
		eventType = events.EventProjectError
	}
	snap := r.snapshotLocked(mp)
	r.mu.Unlock()

	payload := map[string]interface{}{"exitCode": code}
	r.publish(context.Background(), eventType, snap, payload)
}

// markError transitions a project to the error state after a launch or
// readiness failure, if it is still registered and still starting or
// running.
func (r *Registry) markError(ctx context.Context, id string, proc *devserver.Process, cause error) Project {
	r.mu.Lock()
	mp, ok := r.projects[id]
	if !ok || mp.proc != proc {
		r.mu.Unlock()
		return Project{ID: id, Status: devserver.StatusError, Error: cause.Error()}
	}
	changed := false
	if mp.info.Status == devserver.StatusStarting || mp.info.Status == devserver.StatusRunning {
		mp.info.Status = devserver.StatusError
		mp.info.Error = cause.Error()
		changed = true
	}
	snap := r.snapshotLocked(mp)
	r.mu.Unlock()

	// An exit callback may already have recorded the failure; don't
	// publish project.error twice for the same transition
	if changed {
		r.publish(ctx, events.EventProjectError, snap, map[string]interface{}{"error": cause.Error()})
	}
	return snap
}

func (r *Registry) validateMarker(normPath string) error {
	fi, err := os.Stat(normPath)
	if err != nil {
		return fmt.Errorf("project path: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("project path is not a directory: %s", normPath)
	}
	if _, err := os.Stat(filepath.Join(normPath, r.cfg.Marker)); err != nil {
		return &NotAProjectError{Path: normPath, Marker: r.cfg.Marker}
	}
	return nil
}

// snapshotLocked copies a project's info, fixing up the Active flag from
// the registry's view. Caller holds r.mu.
func (r *Registry) snapshotLocked(mp *managedProject) Project {
	info := mp.info
	info.Active = mp.info.ID == r.activeID
	return info
}

// persistLocked writes the session file from the current open set. Best
// effort: failures are logged, never propagated. Caller holds r.mu.
func (r *Registry) persistLocked() {
	if r.store == nil {
		return
	}
	st := state.SessionState{
		OpenProjects: make([]state.OpenProject, 0, len(r.projects)),
	}
	for _, mp := range r.projects {
		st.OpenProjects = append(st.OpenProjects, state.OpenProject{
			ProjectDir: mp.info.RootPath,
			LastOpened: mp.info.OpenedAt,
		})
	}
	sort.Slice(st.OpenProjects, func(i, j int) bool {
		return st.OpenProjects[i].ProjectDir < st.OpenProjects[j].ProjectDir
	})
	if mp, ok := r.projects[r.activeID]; ok {
		dir := mp.info.RootPath
		st.LastActiveProjectDir = &dir
	}
	if err := r.store.Save(st); err != nil {
		log.Printf("Warning: saving session state: %v", err)
	}
}

func (r *Registry) publish(ctx context.Context, eventType string, p Project, payload map[string]interface{}) {
	if r.bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["path"] = p.RootPath
	payload["port"] = p.Port
	payload["status"] = p.Status.String()
	if err := r.bus.Publish(ctx, events.Event{
		Type:    eventType,
		Project: p.ID,
		Payload: payload,
	}); err != nil {
		log.Printf("Warning: publishing %s event: %v", eventType, err)
	}
}
