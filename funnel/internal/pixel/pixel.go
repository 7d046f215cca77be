// Package pixel produces the browser pixel instructions for funnel events.
//
// The in-browser agent cannot be reached from the server, so an Agent here
// is whatever relays the instruction: the Recorder hands the calls back in
// the HTTP response for the page snippet to replay as
// fbq('track', event, custom_data, options).
package pixel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/metrics"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// Call is one track(eventName, customData, {eventID}) instruction.
type Call struct {
	Event      models.EventName  `json:"event"`
	CustomData models.CustomData `json:"custom_data"`
	Options    Options           `json:"options"`
}

// Options mirrors the pixel's third track argument.
type Options struct {
	EventID string `json:"eventID"`
}

// Agent receives pixel calls.
type Agent interface {
	Track(call Call) error
}

// ErrInvalidCall rejects calls the agent would drop anyway.
var ErrInvalidCall = errors.New("pixel: invalid call")

// Emitter fires pixel calls at an agent. A nil agent makes every call a
// no-op; agent errors and panics are swallowed.
type Emitter struct {
	agent Agent
}

// NewEmitter wraps agent, which may be nil.
func NewEmitter(agent Agent) *Emitter {
	return &Emitter{agent: agent}
}

// Track emits one call. It never returns an error and never blocks on the agent
// beyond its Track call.
func (e *Emitter) Track(ctx context.Context, name models.EventName, data models.CustomData, eventID string) {
	if e == nil || e.agent == nil {
		metrics.PixelEvents.WithLabelValues(name.String(), "unavailable").Inc()
		return
	}
	if err := e.track(Call{Event: name, CustomData: data, Options: Options{EventID: eventID}}); err != nil {
		metrics.PixelEvents.WithLabelValues(name.String(), "failed").Inc()
		slog.DebugContext(ctx, "Pixel agent rejected call",
			logging.EventName(name.String()),
			logging.EventID(eventID),
			logging.Error(err),
		)
		return
	}
	metrics.PixelEvents.WithLabelValues(name.String(), "fired").Inc()
}

func (e *Emitter) track(call Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pixel agent panic: %v", r)
		}
	}()
	if !call.Event.Valid() || call.Options.EventID == "" {
		return ErrInvalidCall
	}
	return e.agent.Track(call)
}

// Recorder is an Agent that keeps calls for the response body.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Track implements Agent.
func (r *Recorder) Track(call Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return nil
}

// Calls returns a copy of the recorded calls in order. Never nil.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}
