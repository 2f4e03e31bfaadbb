package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/internal/logging"
)

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a schedule", func(context.Context) error { return nil }, logging.Discard())
	assert.Error(t, err)
}

func TestNew_AcceptsDescriptors(t *testing.T) {
	for _, spec := range []string{"0 3 * * *", "@hourly", "@every 6h"} {
		_, err := New(spec, func(context.Context) error { return nil }, logging.Discard())
		assert.NoError(t, err, spec)
	}
}

func TestTick_SkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32

	s, err := New("@hourly", func(context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}, logging.Discard())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tick()
	}()
	<-started

	// Fires while the first run is blocked.
	s.tick()
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	wg.Wait()

	// Once the first run is done the next tick runs again; release is closed
	// so it returns immediately.
	s.tick()
	assert.Equal(t, int32(2), calls.Load())
}

func TestTick_ErrorDoesNotBlockNextRun(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@hourly", func(context.Context) error {
		calls.Add(1)
		return errors.New("copy failed")
	}, logging.Discard())
	require.NoError(t, err)

	s.tick()
	s.tick()
	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New("@hourly", func(context.Context) error { return nil }, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
