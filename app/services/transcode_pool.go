package services

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrPoolStopped is returned when work is submitted after the pool shut down
var ErrPoolStopped = errors.New("transcode pool is stopped")

var (
	transcodeQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_transcode_queue_depth",
			Help: "Number of transcode jobs waiting for a worker",
		},
	)

	transcodeBusyWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_transcode_busy_workers",
			Help: "Number of transcode workers currently running a job",
		},
	)
)

// TranscodePool runs CPU-bound jobs on a fixed set of worker goroutines so image
// work never executes on the goroutines serving HTTP requests.
type TranscodePool struct {
	workers int
	jobs    chan func()
	logger  *slog.Logger

	mu      sync.RWMutex
	stopped bool
	started bool
	wg      sync.WaitGroup
}

// NewTranscodePool creates a pool with the given worker count and queue capacity.
// Non-positive values fall back to runtime.NumCPU() workers and an unbuffered queue.
func NewTranscodePool(workers, queueSize int, logger *slog.Logger) *TranscodePool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscodePool{
		workers: workers,
		jobs:    make(chan func(), queueSize),
		logger:  logger,
	}
}

// Workers returns the configured worker count
func (p *TranscodePool) Workers() int {
	return p.workers
}

// Start launches the workers and returns a stop function. Stop waits for queued
// jobs to drain before returning.
func (p *TranscodePool) Start() func() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return p.stop
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Info("transcode pool started", "workers", p.workers, "queue_size", cap(p.jobs))
	return p.stop
}

// Submit queues fn for execution. It blocks while the queue is full and gives up
// when ctx is done. The caller receives results through its own channel.
func (p *TranscodePool) Submit(ctx context.Context, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- fn:
		transcodeQueueDepth.Set(float64(len(p.jobs)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *TranscodePool) stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("transcode pool stopped")
}

func (p *TranscodePool) work(id int) {
	defer p.wg.Done()
	for fn := range p.jobs {
		transcodeQueueDepth.Set(float64(len(p.jobs)))
		p.run(id, fn)
	}
}

func (p *TranscodePool) run(id int, fn func()) {
	transcodeBusyWorkers.Inc()
	defer transcodeBusyWorkers.Dec()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("transcode job panicked", "worker", id, "panic", r)
		}
	}()
	fn()
}
