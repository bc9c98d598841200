package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolens/backend/internal/domain"
)

func startLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop := NewEventLoop(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop
}

func TestEventLoop_RunsTasksInOrder(t *testing.T) {
	loop := startLoop(t)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, loop.Post(func() { order = append(order, i) }))
	}
	require.NoError(t, loop.Do(func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEventLoop_AfterFunc(t *testing.T) {
	loop := startLoop(t)

	fired := make(chan time.Duration, 1)
	start := time.Now()
	loop.AfterFunc(20*time.Millisecond, func() { fired <- time.Since(start) })

	select {
	case elapsed := <-fired:
		assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestEventLoop_SurvivesPanics(t *testing.T) {
	loop := startLoop(t)

	loop.Post(func() { panic("boom") })

	ran := false
	require.NoError(t, loop.Do(func() { ran = true }))
	assert.True(t, ran)
}

func TestEventLoop_Closed(t *testing.T) {
	loop := NewEventLoop(1, nil)
	done := make(chan struct{})
	go func() {
		loop.Run(context.Background())
		close(done)
	}()

	loop.Close()
	<-done

	assert.False(t, loop.Post(func() {}))
	err := loop.Do(func() {})
	assert.True(t, errors.Is(err, domain.ErrContextClosed))

	// closing twice is harmless
	assert.NotPanics(t, loop.Close)
}

func TestEventLoop_StopsWithContext(t *testing.T) {
	loop := NewEventLoop(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	cancel()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
