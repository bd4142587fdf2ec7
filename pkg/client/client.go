// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the Dockhand API.
//
// Dockhand is a local daemon that supervises dev servers for multiple
// projects, each on its own TCP port, with persisted sessions and
// pty-backed terminals. This client library provides typed access to the
// Dockhand API endpoints.
//
// # Getting Started
//
// Create a client pointing to your Dockhand daemon:
//
//	c := client.New("http://localhost:4710")
//
// The client provides access to different API resources through sub-clients:
//
//	// Open a project (starts its dev server)
//	project, err := c.Projects.Open(ctx, "/home/me/src/myapp")
//
//	// List open projects
//	projects, err := c.Projects.List(ctx)
//
//	// Create a terminal session
//	session, err := c.Terminals.Create(ctx, "/home/me/src/myapp", 120, 40)
//
// # Configuration Options
//
// The client can be configured with functional options:
//
//	c := client.New("http://localhost:4710",
//	    client.WithTimeout(60 * time.Second),
//	    client.WithHTTPClient(customHTTPClient),
//	)
//
// # Error Handling
//
// API errors are returned as *APIError values, which include an error code
// and message:
//
//	p, err := c.Projects.Get(ctx, "unknown")
//	if err != nil {
//	    if apiErr, ok := err.(*client.APIError); ok {
//	        fmt.Printf("API error: %s - %s\n", apiErr.Code, apiErr.Message)
//	    }
//	}
//
// # Context Support
//
// All API methods accept a context.Context for cancellation and timeouts:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	projects, err := c.Projects.List(ctx)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a Dockhand API client.
//
// A Client provides access to the Dockhand API through resource-specific
// sub-clients. Use [New] to create a Client instance.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Projects provides access to project lifecycle operations.
	// Each open project has one supervised dev server.
	Projects *ProjectClient

	// Terminals provides access to terminal session operations.
	// Terminal I/O itself flows over the session's WebSocket endpoint.
	Terminals *TerminalClient

	// Events provides access to the event history.
	// Events track activity like project opens, crashes, and activation.
	Events *EventClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a new Dockhand API client with the given base URL and options.
//
// The baseURL should be the root URL of the Dockhand daemon (e.g.,
// "http://localhost:4710"). Any trailing slash is automatically removed.
//
// By default, the client uses a 30-second HTTP timeout. Opening a project
// blocks until its dev server is ready, so use [WithTimeout] if your dev
// servers take longer than that to come up.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	// Initialize resource clients
	c.Projects = &ProjectClient{c: c}
	c.Terminals = &TerminalClient{c: c}
	c.Events = &EventClient{c: c}

	return c
}

// WithHTTPClient sets a custom HTTP client for making requests.
//
// This is useful for advanced configurations like custom transports or
// request tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
//
// The default timeout is 30 seconds. Project opens wait for dev-server
// readiness, so this should exceed the daemon's readiness timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError represents an error response from the Dockhand API.
//
// API errors include a machine-readable Code and a human-readable Message.
// Some errors include additional Details; a failed project open carries the
// project snapshot under the "project" detail key.
//
// Common error codes include:
//   - "NOT_FOUND": The requested resource does not exist
//   - "BAD_REQUEST": The request was malformed or invalid
//   - "NOT_A_PROJECT": The path does not contain the project marker
//   - "PORT_EXHAUSTED": No dev-server port could be allocated
//   - "PROJECT_ERROR": The dev server failed to start or become ready
//   - "TERMINAL_ERROR": A terminal session operation failed
//   - "INTERNAL_ERROR": An unexpected server error occurred
type APIError struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// delete performs a DELETE request to the given path.
func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Try to parse as standard envelope
	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// If we can't parse it and status is bad, return error
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		// Return raw body for non-envelope responses
		return respBody, nil
	}

	// Check for error in envelope
	if apiResp.Error != nil {
		return nil, apiResp.Error
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return apiResp.Data, nil
}
