// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/dockhand/internal/events"
)

func TestEventHistoryEndpoint(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type: events.EventProjectOpened, Project: "p1",
	}))
	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type: events.EventTerminalCreated,
	}))

	h := NewEventHandler(bus)

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/api/v1/events?type=project.*", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Nil(t, resp.Error)
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, events.EventProjectOpened, list[0].(map[string]interface{})["type"])
}

func TestEventHistoryProjectFilter(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type: events.EventProjectOpened, Project: "p1",
	}))
	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type: events.EventProjectOpened, Project: "p2",
	}))

	h := NewEventHandler(bus)

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/api/v1/events?project=p2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "p2", list[0].(map[string]interface{})["project"])
}
