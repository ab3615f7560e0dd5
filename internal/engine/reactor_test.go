package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactor_RunsSubmittedWorkInOrder(t *testing.T) {
	r := NewReactor()

	var mu sync.Mutex
	var got []int
	for i := 1; i <= 5; i++ {
		i := i
		r.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	r.Submit(func() { r.Stop() })

	err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestReactor_ReentrantSubmit(t *testing.T) {
	r := NewReactor()

	var got []string
	r.Submit(func() {
		got = append(got, "outer")
		r.Submit(func() {
			got = append(got, "inner")
			r.Stop()
		})
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestReactor_StopError_FirstWins(t *testing.T) {
	r := NewReactor()
	first := errors.New("first")

	r.StopError(first)
	r.StopError(errors.New("second"))

	err := r.Run(context.Background())
	assert.Same(t, first, err)
}

func TestReactor_ContextCancel(t *testing.T) {
	r := NewReactor()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not stop on context cancellation")
	}
}

func TestReactor_QueuedWorkRunsBeforeStop(t *testing.T) {
	r := NewReactor()

	ran := false
	r.Submit(func() { ran = true })
	r.Stop()

	require.NoError(t, r.Run(context.Background()))
	assert.True(t, ran, "work queued before stop should still run")
}

func TestReactor_SubmitAfterStopIsDropped(t *testing.T) {
	r := NewReactor()
	r.Stop()
	require.NoError(t, r.Run(context.Background()))

	ran := false
	r.Submit(func() { ran = true })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran, "submit after stop should be dropped")
}
