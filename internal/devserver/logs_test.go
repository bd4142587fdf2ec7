// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferWriteAndLines(t *testing.T) {
	b := NewLogBuffer(5)

	for i := 1; i <= 3; i++ {
		b.Write(fmt.Sprintf("line%d", i))
	}

	assert.Equal(t, 3, b.Size())
	assert.Equal(t, []string{"line2", "line3"}, b.Lines(2))
	assert.Equal(t, []string{"line1", "line2", "line3"}, b.All())
}

func TestLogBufferWrapsAround(t *testing.T) {
	b := NewLogBuffer(3)

	for i := 1; i <= 5; i++ {
		b.Write(fmt.Sprintf("line%d", i))
	}

	assert.Equal(t, 3, b.Size())
	assert.Equal(t, int64(5), b.Sequence())
	assert.Equal(t, []string{"line3", "line4", "line5"}, b.All())
}

func TestLogBufferLinesEdgeCases(t *testing.T) {
	b := NewLogBuffer(3)
	assert.Empty(t, b.Lines(10))

	b.Write("only")
	assert.Empty(t, b.Lines(0))
	assert.Equal(t, []string{"only"}, b.Lines(100))
}

func TestLogBufferSubscribe(t *testing.T) {
	b := NewLogBuffer(10)
	ch := b.Subscribe()

	b.Write("hello")

	select {
	case line := <-ch:
		assert.Equal(t, "hello", line.Line)
		assert.Equal(t, int64(1), line.Sequence)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for log line")
	}

	b.Unsubscribe(ch)
	// Write after unsubscribe must not panic
	b.Write("after")
}

func TestLogBufferSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewLogBuffer(10)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overflow the subscriber buffer; writes must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.Write("flood")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writes blocked on a slow subscriber")
	}
}

func TestLogBufferCloseAllSubscribers(t *testing.T) {
	b := NewLogBuffer(10)
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	b.CloseAllSubscribers()

	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)
}

func TestLogBufferClear(t *testing.T) {
	b := NewLogBuffer(5)
	b.Write("one")
	b.Write("two")
	require.Equal(t, 2, b.Size())

	b.Clear()
	assert.Equal(t, 0, b.Size())
	assert.Empty(t, b.All())
}
