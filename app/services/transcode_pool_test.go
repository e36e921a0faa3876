package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscodePool_RunsEveryJob(t *testing.T) {
	pool := NewTranscodePool(4, 8, nil)
	stop := pool.Start()

	const jobs = 100
	var (
		ran int64
		wg  sync.WaitGroup
	)
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() {
			defer wg.Done()
			atomic.AddInt64(&ran, 1)
		}))
	}
	wg.Wait()
	stop()

	assert.Equal(t, int64(jobs), atomic.LoadInt64(&ran))
}

func TestTranscodePool_BoundsConcurrency(t *testing.T) {
	pool := NewTranscodePool(2, 16, nil)
	stop := pool.Start()
	defer stop()

	var (
		current, peak int64
		wg            sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(context.Background(), func() {
			defer wg.Done()
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestTranscodePool_SubmitAfterStop(t *testing.T) {
	pool := NewTranscodePool(1, 1, nil)
	stop := pool.Start()
	stop()
	stop()

	err := pool.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestTranscodePool_StopDrainsQueuedJobs(t *testing.T) {
	pool := NewTranscodePool(1, 4, nil)
	release := make(chan struct{})
	var ran int64

	stop := pool.Start()
	require.NoError(t, pool.Submit(context.Background(), func() {
		<-release
		atomic.AddInt64(&ran, 1)
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() {
			atomic.AddInt64(&ran, 1)
		}))
	}

	close(release)
	stop()
	assert.Equal(t, int64(4), atomic.LoadInt64(&ran))
}

func TestTranscodePool_SubmitHonorsContext(t *testing.T) {
	// Not started and unbuffered, so a send can never complete
	pool := NewTranscodePool(1, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTranscodePool_SurvivesPanics(t *testing.T) {
	pool := NewTranscodePool(1, 2, nil)
	stop := pool.Start()
	defer stop()

	require.NoError(t, pool.Submit(context.Background(), func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestNewTranscodePool_Defaults(t *testing.T) {
	pool := NewTranscodePool(0, -1, nil)
	assert.Positive(t, pool.Workers())
	assert.Equal(t, 0, cap(pool.jobs))
}
