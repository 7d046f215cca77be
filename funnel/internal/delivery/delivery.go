// Package delivery hands built server events to the Events API, either
// inline (Sync) or through a bounded retrying queue (Outbox).
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/common/messaging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/capi"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dedupe"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dlq"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/metrics"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

var (
	ErrQueueFull = errors.New("delivery queue full")
	ErrClosed    = errors.New("delivery dispatcher closed")
)

// Mode selects the Dispatcher built at startup.
const (
	ModeSync   = "sync"
	ModeOutbox = "outbox"
)

// Sender transmits one event. *capi.Transmitter implements it.
type Sender interface {
	Send(ctx context.Context, ev *models.TrackedEvent, accessToken, pixelID string) error
}

// Job is one server event together with the credentials to send it.
type Job struct {
	Event       *models.TrackedEvent
	OperatorID  string
	PixelID     string
	AccessToken string
}

// Dispatcher accepts jobs. A returned error is for logging only; callers
// never surface it to the visitor.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Sync sends inline and returns once the Events API has answered.
type Sync struct {
	sender Sender
	dlq    dlq.Queue
	seen   dedupe.Store
}

// NewSync returns a Sync dispatcher. A nil queue drops failures after logging.
func NewSync(sender Sender, queue dlq.Queue) *Sync {
	if queue == nil {
		queue = dlq.Noop{}
	}
	return &Sync{sender: sender, dlq: queue}
}

// WithDedupe skips events whose id is already marked delivered in seen.
func (s *Sync) WithDedupe(seen dedupe.Store) *Sync {
	s.seen = seen
	return s
}

func (s *Sync) Dispatch(ctx context.Context, job Job) error {
	id := job.Event.EventID
	if s.seen != nil {
		if seen, err := s.seen.Seen(ctx, id); err != nil {
			slog.WarnContext(ctx, "Dedupe lookup failed, sending anyway", logging.EventID(id), logging.Error(err))
		} else if seen {
			metrics.OutboxDuplicates.Inc()
			slog.DebugContext(ctx, "Skipping already delivered event", logging.EventID(id))
			return nil
		}
	}

	err := send(ctx, s.sender, job, 1)
	if err == nil {
		if s.seen != nil {
			if err := s.seen.Mark(ctx, id); err != nil {
				slog.WarnContext(ctx, "Dedupe mark failed", logging.EventID(id), logging.Error(err))
			}
		}
		return nil
	}
	reason := messaging.ReasonExhausted
	if capi.IsPermanent(err) {
		reason = messaging.ReasonRejected
	}
	deadLetter(ctx, s.dlq, job, err, reason, 1)
	return err
}

// send performs one attempt and records its outcome.
func send(ctx context.Context, sender Sender, job Job, attempt int) error {
	name := job.Event.EventName.String()
	start := time.Now()
	err := sender.Send(ctx, job.Event, job.AccessToken, job.PixelID)
	elapsed := time.Since(start)
	metrics.DeliveryDuration.Observe(elapsed.Seconds())

	attrs := []any{
		logging.OperatorID(job.OperatorID),
		logging.EventName(name),
		logging.EventID(job.Event.EventID),
		logging.PixelID(job.PixelID),
		logging.Attempt(attempt),
		logging.Duration(elapsed.Milliseconds()),
	}
	if err != nil {
		status := "failed"
		if capi.IsPermanent(err) {
			status = "rejected"
		}
		metrics.Deliveries.WithLabelValues(name, status).Inc()
		slog.WarnContext(ctx, "Server event delivery failed", append(attrs, logging.Error(err))...)
		return err
	}
	metrics.Deliveries.WithLabelValues(name, "success").Inc()
	slog.InfoContext(ctx, "Server event delivered", attrs...)
	return nil
}

func deadLetter(ctx context.Context, queue dlq.Queue, job Job, cause error, reason string, attempts int) {
	// Dead-lettering must still happen when the job's context is gone.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	now := time.Now().UTC()
	err := queue.Write(wctx, &dlq.FailedEvent{
		Timestamp:   now,
		Event:       job.Event,
		OperatorID:  job.OperatorID,
		PixelID:     job.PixelID,
		Error:       cause.Error(),
		Reason:      reason,
		Attempts:    attempts,
		LastAttempt: now,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dead-letter server event",
			logging.EventID(job.Event.EventID), logging.Error(err))
	}
}
