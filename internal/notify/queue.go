package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"vetgrid.org/internal/obs"
)

var (
	ErrQueueClosed = errors.New("notify: queue closed")
	ErrQueueFull   = errors.New("notify: queue full")
)

// Sink is the external delivery channel for notification records.
type Sink interface {
	DeliverAdmin(ctx context.Context, n AdminNotification) error
	DeliverEmail(ctx context.Context, n EmailNotification) error
}

type task struct {
	admin *AdminNotification
	email *EmailNotification
}

func (t task) channel() string {
	if t.email != nil {
		return "email"
	}
	return "admin"
}

// Queue dispatches notification records to a Sink with at-least-once
// semantics: failed deliveries are retried with backoff before the
// record is surfaced as a dead letter in the log.
type Queue struct {
	sink        Sink
	limiter     *rate.Limiter
	tasks       chan task
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithBuffer sets the pending task capacity.
func WithBuffer(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.tasks = make(chan task, n)
		}
	}
}

// WithMaxAttempts sets how many delivery attempts each record gets.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithBackoff sets the pause between delivery attempts.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.backoff = d
		}
	}
}

// WithRateLimit caps delivery attempts per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(q *Queue) {
		if perSecond > 0 && burst > 0 {
			q.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewQueue builds a queue around sink and starts its dispatch worker.
func NewQueue(sink Sink, opts ...Option) (*Queue, error) {
	if sink == nil {
		return nil, errors.New("notify: sink is required")
	}
	q := &Queue{
		sink:        sink,
		limiter:     rate.NewLimiter(rate.Limit(50), 10),
		tasks:       make(chan task, 256),
		maxAttempts: 3,
		backoff:     250 * time.Millisecond,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.wg.Add(1)
	go q.run()
	return q, nil
}

// EnqueueAdmin records an in-app notification for delivery. Missing id
// and timestamp are filled in.
func (q *Queue) EnqueueAdmin(ctx context.Context, n AdminNotification) error {
	if n.RecipientID == "" {
		return errors.New("notify: recipient is required")
	}
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now().UTC()
	}
	return q.enqueue(ctx, task{admin: &n})
}

// EnqueueEmail records an outbound email for delivery.
func (q *Queue) EnqueueEmail(ctx context.Context, n EmailNotification) error {
	if n.RecipientID == "" {
		return errors.New("notify: recipient is required")
	}
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now().UTC()
	}
	return q.enqueue(ctx, task{email: &n})
}

// enqueue never blocks: a full buffer is surfaced as ErrQueueFull. The
// read lock spans the send so Close cannot close the channel between
// the closed check and the send.
func (q *Queue) enqueue(ctx context.Context, t task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		obs.NotificationEnqueued(t.channel())
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake, drains pending records and waits for the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.dispatch(t)
	}
}

func (q *Queue) dispatch(t task) {
	ctx := context.Background()
	var err error
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		if lerr := q.limiter.Wait(ctx); lerr != nil {
			err = lerr
			break
		}
		if t.email != nil {
			err = q.sink.DeliverEmail(ctx, *t.email)
		} else {
			err = q.sink.DeliverAdmin(ctx, *t.admin)
		}
		if err == nil {
			obs.NotificationDelivered(t.channel())
			return
		}
		if attempt < q.maxAttempts {
			time.Sleep(q.backoff)
		}
	}
	obs.NotificationFailed(t.channel())
	id := ""
	if t.email != nil {
		id = t.email.ID
	} else {
		id = t.admin.ID
	}
	obs.LogEvent(map[string]any{
		"level":   "error",
		"msg":     "notification dead-lettered",
		"channel": t.channel(),
		"id":      id,
		"error":   err.Error(),
	})
}
