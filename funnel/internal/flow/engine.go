package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/capi"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/configstore"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/cookies"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/delivery"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/eventid"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/leads"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/metrics"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/pixel"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/sessions"
)

// Deps are the Engine's collaborators. IDs, Builder and LockTTL have
// defaults; the rest are required.
type Deps struct {
	IDs        *eventid.Generator
	Builder    *capi.Builder
	Dispatcher delivery.Dispatcher
	Configs    configstore.Store
	Leads      leads.Sink
	Sessions   sessions.Store
	LockTTL    time.Duration
}

// Engine drives sessions through the funnel.
type Engine struct {
	ids        *eventid.Generator
	builder    *capi.Builder
	dispatcher delivery.Dispatcher
	configs    configstore.Store
	leads      leads.Sink
	sessions   sessions.Store
	lockTTL    time.Duration
	now        func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(d Deps) *Engine {
	if d.IDs == nil {
		d.IDs = eventid.NewGenerator()
	}
	if d.Builder == nil {
		d.Builder = capi.NewBuilder("")
	}
	if d.LockTTL <= 0 {
		d.LockTTL = sessions.DefaultLockTTL
	}
	return &Engine{
		ids:        d.IDs,
		builder:    d.Builder,
		dispatcher: d.Dispatcher,
		configs:    d.Configs,
		leads:      d.Leads,
		sessions:   d.Sessions,
		lockTTL:    d.LockTTL,
		now:        time.Now,
	}
}

// StartInput describes the landing page visit that opens a session.
type StartInput struct {
	SourceURL string     `json:"source_url"`
	UTM       models.UTM `json:"utm"`
}

// Request is one forward step.
type Request struct {
	OperatorID string
	SessionID  string
	Input      StepInput
	Visitor    httputil.Visitor
	Cookies    cookies.Reader
	// Pixel relays the browser call. Nil means the agent is unavailable.
	Pixel pixel.Agent
}

// Result is the outcome of a step.
type Result struct {
	Session *models.Session
	State   State
	Event   models.EventName
	EventID string
	// Completion is set once the Purchase step has run.
	Completion *Completion
}

// Completion is what the visitor is handed after purchasing.
type Completion struct {
	LeadID      string `json:"lead_id"`
	PlanName    string `json:"plan_name"`
	WhatsAppURL string `json:"whatsapp_url"`
}

// Start opens a session on the first step. An empty operator id starts a
// demo session.
func (e *Engine) Start(ctx context.Context, operatorID string, in StartInput) (*models.Session, error) {
	if operatorID == "" {
		operatorID = models.DemoOperatorID
	}
	now := e.now().UTC()
	s := &models.Session{
		ID:         sessions.NewID(),
		OperatorID: operatorID,
		State:      CollectingIdentity.String(),
		SourceURL:  in.SourceURL,
		UTM:        in.UTM,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	metrics.SessionsStarted.Inc()
	slog.InfoContext(ctx, "Funnel session started",
		logging.SessionID(s.ID), logging.OperatorID(operatorID), slog.String("utm_source", in.UTM.Source))
	return s, nil
}

// Get returns a session owned by operatorID.
func (e *Engine) Get(ctx context.Context, operatorID, sessionID string) (*models.Session, State, error) {
	s, err := e.load(ctx, operatorID, sessionID)
	if err != nil {
		return nil, 0, err
	}
	state, err := ParseState(s.State)
	if err != nil {
		return nil, 0, err
	}
	return s, state, nil
}

// Back moves the session one step back without emitting anything. It is a
// no-op on the first step.
func (e *Engine) Back(ctx context.Context, operatorID, sessionID string) (*models.Session, State, error) {
	unlock, err := e.sessions.Lock(ctx, sessionID, e.lockTTL)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	s, state, err := e.Get(ctx, operatorID, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if state == Completed {
		return nil, 0, ErrCompleted
	}
	prev, ok := state.Back()
	if !ok {
		return s, state, nil
	}
	s.State = prev.String()
	s.UpdatedAt = e.now().UTC()
	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, 0, fmt.Errorf("failed to save session: %w", err)
	}
	return s, prev, nil
}

// Advance runs the current step: validate, reserve the event id, fire the
// pixel, build and dispatch the server event, persist the lead on
// purchase and finally move the session forward. Delivery problems are
// logged and never fail the step.
func (e *Engine) Advance(ctx context.Context, req Request) (*Result, error) {
	unlock, err := e.sessions.Lock(ctx, req.SessionID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()
	// Once started, a transition runs to the end even if the visitor leaves.
	ctx = context.WithoutCancel(ctx)

	s, state, err := e.Get(ctx, req.OperatorID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if state == Completed {
		return nil, ErrCompleted
	}
	handle, ok := handlers[state]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStep, state)
	}

	cfg := e.config(ctx, s.OperatorID)

	spec, err := handle(s.Form, req.Input, cfg.Catalogue())
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(state.String(), "invalid").Inc()
		return nil, err
	}
	spec.custom.Currency = e.builder.Currency()
	s.UTM.Apply(&spec.custom)

	pending, err := e.reserve(ctx, s, state, spec.name)
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(state.String(), "error").Inc()
		return nil, err
	}
	eventID := pending.EventID

	pixel.NewEmitter(req.Pixel).Track(ctx, spec.name, spec.custom, eventID)

	e.emitServerEvent(ctx, s, cfg, spec, eventID, req)

	next := state + 1
	result := &Result{Event: spec.name, EventID: eventID, State: next}

	if spec.name == models.EventPurchase {
		lead := e.newLead(s, spec, pending)
		switch err := e.leads.Save(ctx, lead); {
		case errors.Is(err, leads.ErrDuplicate):
			// Saved by an earlier attempt whose session save failed.
			slog.InfoContext(ctx, "Lead already saved for this step",
				logging.SessionID(s.ID), logging.LeadID(lead.ID), logging.EventID(eventID))
		case err != nil:
			metrics.TransitionsTotal.WithLabelValues(state.String(), "error").Inc()
			return nil, fmt.Errorf("failed to save lead: %w", err)
		default:
			metrics.LeadsCaptured.Inc()
		}
		s.LeadID = lead.ID
		result.Completion = &Completion{
			LeadID:      lead.ID,
			PlanName:    spec.plan.Name,
			WhatsAppURL: WhatsAppURL(spec.form.Phone, spec.plan.Name),
		}
	}

	s.Form = spec.form
	s.State = next.String()
	s.Pending = nil
	s.UpdatedAt = e.now().UTC()
	if err := e.sessions.Save(ctx, s); err != nil {
		metrics.TransitionsTotal.WithLabelValues(state.String(), "error").Inc()
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues(state.String(), "ok").Inc()
	slog.InfoContext(ctx, "Funnel step advanced",
		logging.SessionID(s.ID),
		logging.OperatorID(s.OperatorID),
		logging.EventName(spec.name.String()),
		logging.EventID(eventID),
		logging.State(next.String()),
	)
	result.Session = s
	return result, nil
}

// config returns the operator's configuration, or nil when there is none
// or it cannot be read right now.
func (e *Engine) config(ctx context.Context, operatorID string) *models.TrackingConfiguration {
	cfg, err := e.configs.Get(ctx, operatorID)
	switch {
	case errors.Is(err, configstore.ErrNotFound):
		return nil
	case err != nil:
		slog.WarnContext(ctx, "Tracking configuration unavailable",
			logging.OperatorID(operatorID), logging.Error(err))
		return nil
	}
	return cfg
}

func (e *Engine) emitServerEvent(ctx context.Context, s *models.Session, cfg *models.TrackingConfiguration, spec eventSpec, eventID string, req Request) {
	if !cfg.Active() {
		metrics.ServerEventsSkipped.WithLabelValues(spec.name.String()).Inc()
		slog.DebugContext(ctx, "No active tracking configuration, skipping server event",
			logging.OperatorID(s.OperatorID), logging.EventID(eventID))
		return
	}

	first, last := splitName(spec.form.Name)
	sourceURL := s.SourceURL
	if sourceURL == "" {
		sourceURL = req.Visitor.Referer
	}
	ev, err := e.builder.Build(ctx, capi.BuildInput{
		EventName: spec.name,
		EventID:   eventID,
		User: models.UserData{
			Email:      spec.form.Email,
			Phone:      spec.form.Phone,
			FirstName:  first,
			LastName:   last,
			PostalCode: spec.form.PostalCode,
		},
		Custom:    spec.custom,
		SourceURL: sourceURL,
		Cookies:   req.Cookies,
		ClientIP:  req.Visitor.IP,
		UserAgent: req.Visitor.UserAgent,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build server event", logging.EventID(eventID), logging.Error(err))
		return
	}

	err = e.dispatcher.Dispatch(ctx, delivery.Job{
		Event:       ev,
		OperatorID:  cfg.OperatorID,
		PixelID:     cfg.PixelID,
		AccessToken: cfg.AccessToken,
	})
	if err != nil {
		slog.WarnContext(ctx, "Server event not delivered",
			logging.OperatorID(s.OperatorID), logging.EventID(eventID), logging.Error(err))
	}
}

// reserve returns the ids for the current step. The first attempt mints
// them and saves the session before anything is emitted; a retry of the
// same step gets the stored ones back.
func (e *Engine) reserve(ctx context.Context, s *models.Session, state State, name models.EventName) (*models.PendingEvent, error) {
	if p := s.Pending; p != nil && p.State == state.String() {
		return p, nil
	}
	p := &models.PendingEvent{State: state.String(), EventID: e.ids.New()}
	if name == models.EventPurchase {
		p.LeadID = leads.NewID()
	}
	s.Pending = p
	if err := e.sessions.Save(ctx, s); err != nil {
		s.Pending = nil
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return p, nil
}

func (e *Engine) newLead(s *models.Session, spec eventSpec, pending *models.PendingEvent) *models.Lead {
	now := e.now().UTC()
	return &models.Lead{
		ID:         pending.LeadID,
		OperatorID: s.OperatorID,
		Name:       spec.form.Name,
		Email:      spec.form.Email,
		Phone:      spec.form.Phone,
		PostalCode: spec.form.PostalCode,
		PlanID:     spec.plan.ID,
		PlanName:   spec.plan.Name,
		Value:      spec.plan.Price,
		Source:     spec.form.Source,
		Status:     models.LeadStatusNew,
		EventID:    pending.EventID,
		UTM:        s.UTM,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (e *Engine) load(ctx context.Context, operatorID, sessionID string) (*models.Session, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if operatorID != "" && s.OperatorID != operatorID {
		return nil, sessions.ErrNotFound
	}
	return s, nil
}
