// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the dockhand components together and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/dockhand/internal/api"
	"github.com/wingedpig/dockhand/internal/config"
	"github.com/wingedpig/dockhand/internal/devserver"
	"github.com/wingedpig/dockhand/internal/events"
	"github.com/wingedpig/dockhand/internal/registry"
	"github.com/wingedpig/dockhand/internal/state"
	"github.com/wingedpig/dockhand/internal/terminal"
	"github.com/wingedpig/dockhand/internal/watcher"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	eventBus   events.EventBus
	registry   *registry.Registry
	broker     *terminal.Broker
	dirWatcher *watcher.DirWatcher
	apiServer  *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Debug      bool
	Version    string
}

// New creates a new App instance.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	// Load configuration
	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.config = cfg

	// Override host/port if specified
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	// Initialize event bus
	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
	})

	return app, nil
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	command := cfg.DevServer.GetCommand()
	if len(command) == 0 {
		return fmt.Errorf("devserver.command is not configured")
	}

	// State file lives next to the config file unless absolute
	statePath := cfg.State.File
	if !filepath.IsAbs(statePath) && app.configPath != "" {
		statePath = filepath.Join(filepath.Dir(app.configPath), statePath)
	}
	store := state.NewStore(statePath)

	// Initialize the project registry
	app.registry = registry.NewRegistry(
		registry.Config{
			Marker:           cfg.Project.Marker,
			BasePort:         cfg.Ports.Base,
			ReadinessTimeout: config.ParseDuration(cfg.DevServer.ReadinessTimeout, 30*time.Second),
			StopTimeout:      config.ParseDuration(cfg.DevServer.StopTimeout, 10*time.Second),
			LogBufferSize:    cfg.DevServer.LogBufferSize,
		},
		&devserver.ExecLauncher{
			Command: command,
			Args:    cfg.DevServer.Args,
			Env:     cfg.DevServer.Env,
		},
		&devserver.TCPProber{},
		store,
		app.eventBus,
	)

	// Initialize the terminal broker
	app.broker = terminal.NewBroker(terminal.Config{
		Shell:      cfg.Terminal.Shell,
		Scrollback: cfg.Terminal.Scrollback,
	}, app.eventBus)

	// Initialize the project directory watcher
	debounce := config.ParseDuration(cfg.Watch.Debounce, 100*time.Millisecond)
	dw, err := watcher.NewDirWatcher(app.eventBus, debounce)
	if err != nil {
		log.Printf("Warning: failed to create directory watcher: %v", err)
	} else {
		app.dirWatcher = dw
	}

	// Keep the watcher in sync with the open set
	app.eventBus.Subscribe(events.EventProjectOpened, func(ctx context.Context, event events.Event) error {
		if app.dirWatcher == nil {
			return nil
		}
		if path, ok := event.Payload["path"].(string); ok {
			if err := app.dirWatcher.Watch(event.Project, path); err != nil {
				log.Printf("Warning: failed to watch project directory %s: %v", path, err)
			}
		}
		return nil
	})
	app.eventBus.Subscribe(events.EventProjectClosed, func(ctx context.Context, event events.Event) error {
		if app.dirWatcher != nil {
			app.dirWatcher.Unwatch(event.Project)
		}
		return nil
	})

	// Close projects whose directory vanished from disk
	app.eventBus.Subscribe(events.EventProjectDirRemoved, func(ctx context.Context, event events.Event) error {
		log.Printf("Project directory removed, closing project %s", event.Project)
		// Use background context - teardown must finish even if the
		// publisher's context is gone
		return app.registry.Close(context.Background(), event.Project)
	})

	// Initialize API server
	app.apiServer = api.NewServer(
		api.ServerConfig{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		},
		api.Dependencies{
			Registry: app.registry,
			Broker:   app.broker,
			EventBus: app.eventBus,
		},
	)

	return nil
}

// Start restores the previous session and starts the API server.
func (app *App) Start(ctx context.Context) error {
	// Reopen projects from the previous session
	if err := app.registry.RestoreSession(ctx); err != nil {
		log.Printf("Warning: failed to restore session: %v", err)
	}

	// Start API server in background
	go func() {
		log.Printf("Starting API server on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Stop requests a shutdown from outside Run.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

// Shutdown gracefully shuts down all components. The open set is
// persisted before the dev servers are stopped, so the next start can
// restore it.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop API server first to stop accepting new requests
	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	// Stop the directory watcher before tearing projects down, so
	// shutdown itself doesn't trigger dir_removed churn
	if app.dirWatcher != nil {
		app.dirWatcher.Close()
	}

	// Persist and stop all dev servers
	if app.registry != nil {
		if err := app.registry.CloseAll(shutdownCtx); err != nil {
			log.Printf("Error stopping dev servers: %v", err)
		}
	}

	// Kill terminal sessions
	if app.broker != nil {
		app.broker.DestroyAll()
	}

	// Close event bus last
	if app.eventBus != nil {
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}
