package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/conveyorhq/conveyor/internal/metrics"
)

type queueResult struct {
	value any
	err   error
}

type queueItem struct {
	ctx      context.Context
	op       Operation
	queuedAt time.Time
	done     chan queueResult
}

// RequestQueue serializes all callers of one scarce dependency. A
// single drain loop dispatches tasks in strict submission order,
// spacing them with the shared rate limiter regardless of which job
// submitted the work.
type RequestQueue struct {
	service string
	limiter *RateLimiter
	tasks   chan *queueItem
	log     *slog.Logger
}

func NewRequestQueue(service string, limiter *RateLimiter, buffer int) *RequestQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &RequestQueue{
		service: service,
		limiter: limiter,
		tasks:   make(chan *queueItem, buffer),
		log:     slog.Default().With("component", "queue", "service", service),
	}
}

// Enqueue submits op and blocks until it has been dispatched and
// finished, returning its outcome. Dispatch order is submission order;
// completion order is not guaranteed across queues.
func (q *RequestQueue) Enqueue(ctx context.Context, op Operation) (any, error) {
	item := &queueItem{ctx: ctx, op: op, queuedAt: time.Now(), done: make(chan queueResult, 1)}

	select {
	case q.tasks <- item:
		metrics.QueueDepth.WithLabelValues(q.service).Set(float64(len(q.tasks)))
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-item.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Depth reports the number of tasks waiting for dispatch.
func (q *RequestQueue) Depth() int {
	return len(q.tasks)
}

// Run drains the queue until ctx is cancelled. Tasks still queued at
// shutdown are rejected with the cancellation error.
func (q *RequestQueue) Run(ctx context.Context) {
	q.log.Debug("request queue started")

	for {
		select {
		case <-ctx.Done():
			q.flush(ctx.Err())
			q.log.Debug("request queue stopped")
			return
		case item := <-q.tasks:
			q.dispatch(item)
		}
	}
}

func (q *RequestQueue) dispatch(item *queueItem) {
	metrics.QueueDepth.WithLabelValues(q.service).Set(float64(len(q.tasks)))
	metrics.QueueWaitSeconds.WithLabelValues(q.service).Observe(time.Since(item.queuedAt).Seconds())

	// The submitter may have given up while queued.
	if err := item.ctx.Err(); err != nil {
		item.done <- queueResult{err: err}
		return
	}

	if q.limiter != nil {
		if err := q.limiter.Wait(item.ctx); err != nil {
			item.done <- queueResult{err: err}
			return
		}
	}

	value, err := item.op(item.ctx)
	item.done <- queueResult{value: value, err: err}
}

func (q *RequestQueue) flush(err error) {
	for {
		select {
		case item := <-q.tasks:
			item.done <- queueResult{err: err}
		default:
			return
		}
	}
}
