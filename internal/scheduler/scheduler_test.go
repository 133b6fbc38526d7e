package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresh_AtMostOneInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	var scans atomic.Int32

	s := New(time.Hour, func(context.Context) {
		scans.Add(1)
		startedOnce.Do(func() { close(started) })
		<-release
	}, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.True(t, s.Refresh(context.Background()))
	}()

	<-started
	// A second refresh while the first is in flight is a no-op.
	assert.False(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(1), scans.Load())

	close(release)
	wg.Wait()

	// The flag is cleared after the scan exits.
	assert.True(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(2), scans.Load())
}

func TestRefresh_FlagClearedAfterPanickyScan(t *testing.T) {
	boom := true
	s := New(time.Hour, func(context.Context) {
		if boom {
			boom = false
			panic("scan failure")
		}
	}, zerolog.Nop())

	require.Panics(t, func() { s.Refresh(context.Background()) })

	// A failed scan must not leave the in-flight flag stuck.
	assert.True(t, s.Refresh(context.Background()))
}

func TestStart_ImmediateThenPeriodic(t *testing.T) {
	var scans atomic.Int32
	s := New(20*time.Millisecond, func(context.Context) {
		scans.Add(1)
	}, zerolog.Nop())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return scans.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond, "expected an immediate scan plus periodic ones")
}

func TestStop_PromptAndIdempotent(t *testing.T) {
	var scans atomic.Int32
	s := New(time.Hour, func(context.Context) {
		scans.Add(1)
	}, zerolog.Nop())

	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return scans.Load() == 1
	}, 2*time.Second, time.Millisecond)

	// Stop must not wait out the hour-long interval.
	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop() // idempotent
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), scans.Load(), "no scans after Stop")
}

func TestStart_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var scans atomic.Int32
	s := New(10*time.Millisecond, func(context.Context) {
		scans.Add(1)
	}, zerolog.Nop())

	s.Start(ctx)
	cancel()
	s.Stop()

	after := scans.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, scans.Load())
}
