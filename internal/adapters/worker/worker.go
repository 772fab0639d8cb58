// Package worker runs index-partitioned batch jobs on a bounded set of
// goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/dayflow/pkg/logger"
	"github.com/okian/dayflow/pkg/metrics"
)

// Job processes item i of a batch. Implementations write their result into a
// pre-sized slice at index i, so no two jobs share an output slot.
type Job func(ctx context.Context, i int) error

// worker drains indices from a shared channel.
type worker struct {
	name   string
	logger logger.Logger
}

func (w *worker) run(ctx context.Context, items <-chan int, job Job, fail func(int, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case i, ok := <-items:
			if !ok {
				return
			}
			start := time.Now()
			err := job(ctx, i)
			metrics.RecordWorkerJobLatency(metrics.Since(start))
			if err != nil {
				metrics.RecordWorkerError()
				w.logger.Debug(ctx, "job failed", logger.Int("item", i), logger.Error(err))
				fail(i, err)
				return
			}
		}
	}
}

// Pool runs batches with a fixed number of workers.
type Pool struct {
	name    string
	workers []*worker
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one uses the
// number of CPUs.
func NewPool(workerCount int, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		name:   "worker-pool",
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named(p.name)

	p.workers = make([]*worker, workerCount)
	for i := range p.workers {
		name := "worker-" + strconv.Itoa(i)
		p.workers[i] = &worker{name: name, logger: p.logger.Named(name)}
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Run calls job for every index in [0, n) and waits for completion. The first
// failure cancels the remaining items and is returned.
func (p *Pool) Run(ctx context.Context, n int, job Job) error {
	if n <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(i int, err error) {
		once.Do(func() {
			firstErr = fmt.Errorf("item %d: %w", i, err)
			cancel()
		})
	}

	items := make(chan int)
	active := min(len(p.workers), n)
	metrics.UpdateWorkerActiveCount(active)
	defer metrics.UpdateWorkerActiveCount(0)

	var wg sync.WaitGroup
	for _, w := range p.workers[:active] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, items, job, fail)
		}()
	}

feed:
	for i := range n {
		select {
		case <-ctx.Done():
			break feed
		case items <- i:
		}
	}
	close(items)
	wg.Wait()

	if firstErr != nil {
		p.logger.Warn(ctx, "batch aborted", logger.Int("items", n), logger.Error(firstErr))
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Map runs fn for every index in [0, n) on p and collects the results in
// index order.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	err := p.Run(ctx, n, func(ctx context.Context, i int) error {
		v, err := fn(ctx, i)
		if err != nil {
			return err
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
