// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProjectClient provides access to project lifecycle operations.
//
// Opening a project starts one dev server for it on a dedicated port;
// closing it stops the dev server. The open set persists across daemon
// restarts.
//
// Access this client through [Client.Projects]:
//
//	projects, err := client.Projects.List(ctx)
type ProjectClient struct {
	c *Client
}

// List returns all open projects, sorted by name.
func (p *ProjectClient) List(ctx context.Context) ([]Project, error) {
	data, err := p.c.get(ctx, "/api/v1/projects")
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse projects: %w", err)
	}

	return projects, nil
}

// Open opens the project at path and starts its dev server, blocking until
// the server accepts TCP connections. Opening an already-open path returns
// the existing project and makes it active.
//
// The path must contain the configured project marker (default ".git") or
// a NOT_A_PROJECT error is returned.
func (p *ProjectClient) Open(ctx context.Context, path string) (*Project, error) {
	data, err := p.c.postJSON(ctx, "/api/v1/projects", map[string]string{"path": path})
	if err != nil {
		return nil, err
	}

	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	return &project, nil
}

// Get returns a single open project by id.
func (p *ProjectClient) Get(ctx context.Context, id string) (*Project, error) {
	data, err := p.c.get(ctx, "/api/v1/projects/"+id)
	if err != nil {
		return nil, err
	}

	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	return &project, nil
}

// Close closes a project and stops its dev server. Closing an unknown id
// succeeds.
func (p *ProjectClient) Close(ctx context.Context, id string) error {
	_, err := p.c.delete(ctx, "/api/v1/projects/"+id)
	return err
}

// Activate marks a project as the active one.
func (p *ProjectClient) Activate(ctx context.Context, id string) (*Project, error) {
	data, err := p.c.post(ctx, "/api/v1/projects/"+id+"/activate")
	if err != nil {
		return nil, err
	}

	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	return &project, nil
}

// Active returns the active project. A NOT_FOUND error means no project
// is open.
func (p *ProjectClient) Active(ctx context.Context) (*Project, error) {
	data, err := p.c.get(ctx, "/api/v1/projects/active")
	if err != nil {
		return nil, err
	}

	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	return &project, nil
}

// Logs returns up to lines of recent dev-server output for a project.
// Zero or negative lines uses the server default.
func (p *ProjectClient) Logs(ctx context.Context, id string, lines int) (*ProjectLogs, error) {
	path := "/api/v1/projects/" + id + "/logs"
	if lines > 0 {
		path += "?lines=" + strconv.Itoa(lines)
	}
	data, err := p.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var logs ProjectLogs
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, fmt.Errorf("failed to parse logs: %w", err)
	}

	return &logs, nil
}
