package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Pool is the bounded background queue that owns all dispatch beyond the live
// channel. Event handlers submit and return immediately; the pool's workers
// own the timeout/retry policy via the dispatcher.
type Pool struct {
	dispatcher *Dispatcher
	queue      chan Envelope
	workers    int

	wg      sync.WaitGroup
	log     *slog.Logger
	dropped atomic.Int64
}

func NewPool(d *Dispatcher, workers, queueSize int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		dispatcher: d,
		queue:      make(chan Envelope, queueSize),
		workers:    workers,
		log:        log,
	}
}

// Submit queues an envelope for background dispatch. It never blocks: when
// the queue is full the envelope is dropped and counted, so a slow external
// gateway cannot stall live event routing.
func (p *Pool) Submit(env Envelope) bool {
	select {
	case p.queue <- env:
		return true
	default:
		p.dropped.Add(1)
		p.log.Error("dispatch queue full, envelope dropped",
			"envelope_id", env.ID, "recipient_id", env.RecipientID, "template", env.TemplateID)
		return false
	}
}

// Dropped returns how many envelopes were rejected by a full queue.
func (p *Pool) Dropped() int64 { return p.dropped.Load() }

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-p.queue:
			// The worker owns the full walk; results are logged/audited by
			// the dispatcher, never propagated to the producer.
			p.dispatcher.Send(ctx, env)
		}
	}
}
