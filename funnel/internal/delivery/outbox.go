package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/common/messaging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/capi"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dedupe"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dlq"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/metrics"
)

// OutboxConfig bounds the queue and the retry schedule.
type OutboxConfig struct {
	QueueSize       int
	Workers         int
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultOutboxConfig returns production defaults.
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		QueueSize:       1000,
		Workers:         4,
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// Outbox queues jobs for background delivery. Each event id is delivered
// at most once; jobs that exhaust their attempts, are rejected by the
// Events API or do not fit in the queue go to the dead-letter queue.
type Outbox struct {
	sender Sender
	seen   dedupe.Store
	dlq    dlq.Queue
	cfg    OutboxConfig

	queue  chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewOutbox starts cfg.Workers delivery workers.
func NewOutbox(sender Sender, seen dedupe.Store, queue dlq.Queue, cfg OutboxConfig) *Outbox {
	def := DefaultOutboxConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if seen == nil {
		seen = dedupe.NewMemory(0)
	}
	if queue == nil {
		queue = dlq.Noop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Outbox{
		sender: sender,
		seen:   seen,
		dlq:    queue,
		cfg:    cfg,
		queue:  make(chan Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	metrics.OutboxQueueCapacity.Set(float64(cfg.QueueSize))

	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	return o
}

// Dispatch enqueues job without blocking.
func (o *Outbox) Dispatch(ctx context.Context, job Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}

	select {
	case o.queue <- job:
		metrics.OutboxQueueDepth.Set(float64(len(o.queue)))
		return nil
	default:
		deadLetter(ctx, o.dlq, job, ErrQueueFull, messaging.ReasonOverflow, 0)
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, in-flight retries are abandoned and dead-lettered.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

func (o *Outbox) worker() {
	defer o.wg.Done()
	for job := range o.queue {
		metrics.OutboxQueueDepth.Set(float64(len(o.queue)))
		o.process(job)
	}
}

func (o *Outbox) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.InitialInterval
	b.MaxInterval = o.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.cfg.MaxAttempts-1)), o.ctx)
}

func (o *Outbox) process(job Job) {
	ctx := o.ctx
	id := job.Event.EventID

	if seen, err := o.seen.Seen(ctx, id); err != nil {
		slog.WarnContext(ctx, "Dedupe lookup failed, sending anyway", logging.EventID(id), logging.Error(err))
	} else if seen {
		metrics.OutboxDuplicates.Inc()
		slog.DebugContext(ctx, "Skipping already delivered event", logging.EventID(id))
		return
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := send(ctx, o.sender, job, attempts)
		if err != nil && capi.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, o.newBackOff())

	if err == nil {
		if err := o.seen.Mark(ctx, id); err != nil {
			slog.WarnContext(ctx, "Dedupe mark failed", logging.EventID(id), logging.Error(err))
		}
		return
	}

	reason := messaging.ReasonExhausted
	var perm *backoff.PermanentError
	if errors.As(err, &perm) || capi.IsPermanent(err) {
		reason = messaging.ReasonRejected
	}
	deadLetter(ctx, o.dlq, job, err, reason, attempts)
}
