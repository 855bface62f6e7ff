// Package dispatch runs one-shot API requests on a bounded worker pool.
// Jobs carry a correlation id; results land on the engine's response
// channel tagged with the same id, so the synchronization loop can match
// them to the timeline state that requested them, or discard them if that
// state is gone.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mkordell/murmur/internal/logging"
	"github.com/mkordell/murmur/internal/mastodon"
)

const (
	defaultWorkers  = 4
	queueSize       = 64
	jobTimeout      = 30 * time.Second
	requestsPerSec  = 5
	requestBurst    = 10
	deliveryTimeout = 2 * time.Second
)

// Job is one unit of network work. Run must honor ctx and is the only
// place a job touches the network.
type Job struct {
	CorrID string
	Label  string // for logging
	Run    func(ctx context.Context) (any, error)
}

// Result is the completed job delivered to the response channel. Payload
// is nil when Err is set; Failure classifies Err for retry decisions.
type Result struct {
	CorrID  string
	Payload any
	Err     error
	Failure mastodon.FailureKind
}

// NewCorrID issues a fresh correlation id.
func NewCorrID() string { return uuid.NewString() }

// Pool is a fixed-width fetch pool with a shared request-rate limit.
// Results for distinct jobs may complete in any order.
type Pool struct {
	jobs    chan Job
	out     chan<- Result
	limiter *rate.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPool starts the pool. workers <= 0 selects the default width.
func NewPool(ctx context.Context, workers int, out chan<- Result) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		jobs:    make(chan Job, queueSize),
		out:     out,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), requestBurst),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.loop(ctx, workers)
	return p
}

// Submit enqueues a job. Returns false when the queue is full or the pool
// is shut down; the caller surfaces that as a saturation failure.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.jobs <- job:
		return true
	default:
		logging.Warn("fetch queue full, rejecting job", "label", job.Label)
		return false
	}
}

// Shutdown stops accepting work, cancels in-flight jobs, and waits for
// the workers to exit, bounded by timeout.
func (p *Pool) Shutdown(timeout time.Duration) {
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(timeout):
		logging.Warn("fetch pool did not drain in time", "timeout", timeout)
	}
}

// loop feeds queued jobs into an errgroup whose limit bounds how many run
// at once. The group blocks admission when saturated, which in turn lets
// the queue fill and Submit reject, pushing back to the caller.
func (p *Pool) loop(ctx context.Context, workers int) {
	defer close(p.done)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	defer group.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			group.Go(func() error {
				p.execute(ctx, job)
				return nil
			})
		}
	}
}

// execute runs one job with the shared rate limit and per-job deadline,
// then delivers its result. A panicking job is converted into an error
// result instead of taking the process down.
func (p *Pool) execute(ctx context.Context, job Job) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	payload, err := p.runGuarded(jobCtx, job)
	if ctx.Err() != nil {
		return
	}

	result := Result{CorrID: job.CorrID, Payload: payload, Err: err}
	if err != nil {
		result.Failure = mastodon.Classify(err)
		logging.Debug("fetch job failed",
			"label", job.Label, "kind", string(result.Failure), "err", err)
	}
	p.deliver(ctx, result)
}

func (p *Pool) runGuarded(ctx context.Context, job Job) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("fetch job panicked", "label", job.Label, "panic", r)
			payload = nil
			err = fmt.Errorf("fetch %s: panic: %v", job.Label, r)
		}
	}()
	return job.Run(ctx)
}

// deliver blocks briefly for a congested response channel, then drops.
// The loop drains this channel every tick, so a timeout here means the
// consumer is gone or wedged.
func (p *Pool) deliver(ctx context.Context, result Result) {
	select {
	case p.out <- result:
		return
	default:
	}
	timer := time.NewTimer(deliveryTimeout)
	defer timer.Stop()
	select {
	case p.out <- result:
	case <-timer.C:
		logging.Warn("response channel full, dropping fetch result", "corr_id", result.CorrID)
	case <-ctx.Done():
	}
}
