// Package dispatch runs conversation turns on a fixed set of shards: turns of
// different conversations run in parallel, turns of one conversation run in
// arrival order on the same shard.
package dispatch

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
)

const (
	DefaultShards     = 16
	DefaultQueueDepth = 64
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("dispatch pool stopped")

// Job is one unit of work for a conversation.
type Job func(ctx context.Context)

type task struct {
	ctx context.Context
	job Job
}

// Pool is a sharded worker pool keyed by conversation id.
type Pool struct {
	logger  *slog.Logger
	shards  []chan task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewPool starts shards workers, each with a queue of queueDepth jobs.
func NewPool(logger *slog.Logger, shards, queueDepth int) *Pool {
	if shards <= 0 {
		shards = DefaultShards
	}

	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}

	pool := &Pool{
		logger: logger,
		shards: make([]chan task, shards),
	}

	for i := range pool.shards {
		pool.shards[i] = make(chan task, queueDepth)

		pool.wg.Add(1)

		go pool.run(i, pool.shards[i])
	}

	return pool
}

// ShardFor returns the shard index that serves key.
func (p *Pool) ShardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return int(h.Sum32() % uint32(len(p.shards)))
}

// Submit queues job on the shard of key. It blocks while the shard queue is
// full, which pushes back on the event bus consumer.
func (p *Pool) Submit(ctx context.Context, key string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.shards[p.ShardFor(key)] <- task{ctx: ctx, job: job}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new jobs and waits for the queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()

		return
	}

	p.stopped = true

	for _, shard := range p.shards {
		close(shard)
	}

	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) run(index int, queue <-chan task) {
	defer p.wg.Done()

	for t := range queue {
		p.execute(index, t)
	}
}

func (p *Pool) execute(index int, t task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered panic in dispatched job", "shard", index, "panic", r)
		}
	}()

	t.job(t.ctx)
}
