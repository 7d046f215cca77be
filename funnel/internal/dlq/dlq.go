// Package dlq holds server events that could not be delivered to the
// Events API, for inspection and manual replay.
package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// ErrDisabled is returned by inspection calls on a queue that keeps nothing.
var ErrDisabled = errors.New("dlq not enabled")

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 100

// FailedEvent is one dead-lettered server event. The access token is never
// stored; replay looks it up again by operator.
type FailedEvent struct {
	Timestamp   time.Time            `json:"timestamp"`
	Event       *models.TrackedEvent `json:"event"`
	OperatorID  string               `json:"operator_id"`
	PixelID     string               `json:"pixel_id"`
	Error       string               `json:"error"`
	Reason      string               `json:"reason"`
	Attempts    int                  `json:"attempts"`
	LastAttempt time.Time            `json:"last_attempt"`
}

// Queue accepts failed events.
type Queue interface {
	Write(ctx context.Context, failed *FailedEvent) error
	Stats(ctx context.Context) map[string]any
	List(ctx context.Context, limit int) ([]FailedEvent, error)
	Purge(ctx context.Context) error
}

func stamp(failed *FailedEvent, now time.Time) {
	if failed.Timestamp.IsZero() {
		failed.Timestamp = now
	}
	if failed.LastAttempt.IsZero() {
		failed.LastAttempt = now
	}
	if failed.Attempts == 0 {
		failed.Attempts = 1
	}
}

// Noop drops everything. Used when no broker is configured and the
// operator opted out of the in-memory queue.
type Noop struct{}

func (Noop) Write(context.Context, *FailedEvent) error { return nil }

func (Noop) Stats(context.Context) map[string]any {
	return map[string]any{"enabled": false, "backend": "none"}
}

func (Noop) List(context.Context, int) ([]FailedEvent, error) { return nil, ErrDisabled }

func (Noop) Purge(context.Context) error { return ErrDisabled }
