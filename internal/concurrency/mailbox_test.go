// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-stomp/internal/concurrency"
)

func recv[T any](t *testing.T, c <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-c:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for value")
	}
	var zero T
	return zero
}

func TestMailboxFIFO(t *testing.T) {
	mb := concurrency.NewMailbox[int](nil)
	defer mb.Close()

	for i := 0; i < 1000; i++ {
		require.True(t, mb.Push(i))
	}
	for i := 0; i < 1000; i++ {
		assert.Equal(t, i, recv(t, mb.C()))
	}
}

func TestMailboxDrainsAfterClose(t *testing.T) {
	var closed atomic.Int32
	mb := concurrency.NewMailbox[string](func() { closed.Add(1) })

	mb.Push("a")
	mb.Push("b")
	require.NoError(t, mb.Close())
	require.NoError(t, mb.Close())
	assert.False(t, mb.Push("c"))
	assert.Equal(t, int32(1), closed.Load())

	assert.Equal(t, "a", recv(t, mb.C()))
	assert.Equal(t, "b", recv(t, mb.C()))
	select {
	case _, ok := <-mb.C():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestBroadcastFanOut(t *testing.T) {
	var empties atomic.Int32
	b := concurrency.NewBroadcast[int](func() { empties.Add(1) })

	a, first := b.Subscribe()
	assert.True(t, first)
	c, first := b.Subscribe()
	assert.False(t, first)
	assert.Equal(t, 2, b.Len())

	assert.Equal(t, 2, b.Publish(7))
	assert.Equal(t, 7, recv(t, a.C()))
	assert.Equal(t, 7, recv(t, c.C()))

	require.NoError(t, a.Close())
	assert.Equal(t, int32(0), empties.Load())
	assert.Equal(t, 1, b.Publish(8))
	assert.Equal(t, 8, recv(t, c.C()))

	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), empties.Load())
	assert.Equal(t, 0, b.Publish(9))
}

func TestBroadcastCloseAll(t *testing.T) {
	var empties atomic.Int32
	b := concurrency.NewBroadcast[int](func() { empties.Add(1) })
	b.Subscribe()
	b.Subscribe()
	b.CloseAll()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, int32(1), empties.Load())
}

func TestBroadcastCloseSeals(t *testing.T) {
	b := concurrency.NewBroadcast[int](nil)
	a, _ := b.Subscribe()
	b.Close()

	_, ok := <-a.C()
	assert.False(t, ok)

	late, first := b.Subscribe()
	assert.False(t, first)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Publish(1))
	select {
	case _, ok := <-late.C():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("late listener left open")
	}
}

func TestLatch(t *testing.T) {
	l := concurrency.NewLatch()
	assert.False(t, l.IsOpen())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	released := make(chan error, 1)
	go func() { released <- l.Wait(context.Background()) }()
	l.Open()
	l.Open()
	assert.True(t, l.IsOpen())
	assert.NoError(t, recv(t, released))
}

func TestSystemScheduler(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := concurrency.SystemScheduler{}
	s.AfterFunc(time.Millisecond, func() { fired <- struct{}{} })
	recv(t, fired)

	c := s.AfterFunc(time.Hour, func() {})
	assert.True(t, c.Stop())
}
