// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EventClient provides access to the daemon's event history.
//
// Real-time delivery uses the WebSocket endpoint (/api/v1/events/ws),
// which this client does not wrap.
//
// Access this client through [Client.Events]:
//
//	evts, err := client.Events.History(ctx, nil)
type EventClient struct {
	c *Client
}

// HistoryOptions filters event history queries. All fields are optional.
type HistoryOptions struct {
	// Types filters by event type; wildcard patterns like "project.*"
	// are supported.
	Types []string

	// Project filters by project id.
	Project string

	// Limit keeps only the most recent N matching events.
	Limit int

	// Since and Until bound the match by timestamp.
	Since time.Time
	Until time.Time
}

// History returns past events, oldest first. A nil opts returns everything
// still retained.
func (e *EventClient) History(ctx context.Context, opts *HistoryOptions) ([]Event, error) {
	path := "/api/v1/events"
	if opts != nil {
		q := url.Values{}
		for _, t := range opts.Types {
			q.Add("type", t)
		}
		if opts.Project != "" {
			q.Set("project", opts.Project)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if !opts.Since.IsZero() {
			q.Set("since", opts.Since.Format(time.RFC3339))
		}
		if !opts.Until.IsZero() {
			q.Set("until", opts.Until.Format(time.RFC3339))
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
	}

	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var evts []Event
	if err := json.Unmarshal(data, &evts); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	return evts, nil
}
