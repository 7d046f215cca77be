package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/configstore"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/cookies"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/flow"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/pixel"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/sessions"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/validation"
)

// HeaderPixelAvailable lets the page report that the browser pixel could
// not load (blocked or not yet initialized).
const HeaderPixelAvailable = "X-Pixel-Available"

type FunnelHandler struct {
	engine  *flow.Engine
	configs configstore.Store
}

func NewFunnelHandler(engine *flow.Engine, configs configstore.Store) *FunnelHandler {
	return &FunnelHandler{engine: engine, configs: configs}
}

type funnelResponse struct {
	OperatorID    string        `json:"operator_id"`
	DisplayName   string        `json:"display_name"`
	Plans         []models.Plan `json:"plans"`
	SourceOptions []string      `json:"source_options"`
	PixelID       string        `json:"pixel_id,omitempty"`
}

type sessionResponse struct {
	Session    *models.Session  `json:"session"`
	State      string           `json:"state"`
	Step       int              `json:"step"`
	Event      models.EventName `json:"event,omitempty"`
	EventID    string           `json:"event_id,omitempty"`
	Pixel      []pixel.Call     `json:"pixel"`
	Completion *flow.Completion `json:"completion,omitempty"`
}

// GetFunnel returns what the landing page needs to render the form.
func (h *FunnelHandler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	operatorID := r.PathValue("operatorId")
	cfg, err := h.configs.Get(r.Context(), operatorID)
	if err != nil && !errors.Is(err, configstore.ErrNotFound) {
		slog.WarnContext(r.Context(), "Tracking configuration unavailable", logging.OperatorID(operatorID), logging.Error(err))
	}
	resp := funnelResponse{
		OperatorID:    operatorID,
		DisplayName:   cfg.DisplayName(),
		Plans:         cfg.Catalogue(),
		SourceOptions: models.SourceOptions,
	}
	if cfg != nil {
		// The pixel id is public: the browser snippet needs it to init.
		resp.PixelID = cfg.PixelID
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *FunnelHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var in flow.StartInput
	if !decodeJSON(w, r, &in, true) {
		return
	}
	if in.SourceURL == "" {
		in.SourceURL = r.Header.Get("Referer")
	}
	if in.UTM == (models.UTM{}) {
		in.UTM = utmFromURL(in.SourceURL)
	}

	s, err := h.engine.Start(r.Context(), r.PathValue("operatorId"), in)
	if err != nil {
		writeFlowError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{
		Session: s,
		State:   flow.CollectingIdentity.String(),
		Step:    flow.CollectingIdentity.Step(),
		Pixel:   []pixel.Call{},
	})
}

func (h *FunnelHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, state, err := h.engine.Get(r.Context(), r.PathValue("operatorId"), r.PathValue("sessionId"))
	if err != nil {
		writeFlowError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{Session: s, State: state.String(), Step: state.Step(), Pixel: []pixel.Call{}})
}

// Advance submits the current step. The response carries the pixel calls
// for the page to replay with the returned event id.
func (h *FunnelHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var in flow.StepInput
	if !decodeJSON(w, r, &in, false) {
		return
	}

	var agent pixel.Agent
	rec := pixel.NewRecorder()
	if !strings.EqualFold(r.Header.Get(HeaderPixelAvailable), "false") {
		agent = rec
	}

	res, err := h.engine.Advance(r.Context(), flow.Request{
		OperatorID: r.PathValue("operatorId"),
		SessionID:  r.PathValue("sessionId"),
		Input:      in,
		Visitor:    httputil.VisitorFromRequest(r),
		Cookies:    cookies.FromRequest(r),
		Pixel:      agent,
	})
	if err != nil {
		writeFlowError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{
		Session:    res.Session,
		State:      res.State.String(),
		Step:       res.State.Step(),
		Event:      res.Event,
		EventID:    res.EventID,
		Pixel:      rec.Calls(),
		Completion: res.Completion,
	})
}

func (h *FunnelHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, state, err := h.engine.Back(r.Context(), r.PathValue("operatorId"), r.PathValue("sessionId"))
	if err != nil {
		writeFlowError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{Session: s, State: state.String(), Step: state.Step(), Pixel: []pixel.Call{}})
}

func writeFlowError(w http.ResponseWriter, r *http.Request, err error) {
	if fields := validation.Fields(err); fields != nil {
		httputil.WriteValidationError(w, fields)
		return
	}
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, sessions.ErrBusy):
		httputil.WriteError(w, http.StatusConflict, "another step is in progress for this session")
	case errors.Is(err, flow.ErrCompleted):
		httputil.WriteError(w, http.StatusConflict, "funnel already completed")
	default:
		slog.ErrorContext(r.Context(), "Funnel request failed",
			logging.SessionID(r.PathValue("sessionId")), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func utmFromURL(raw string) models.UTM {
	u, err := url.Parse(raw)
	if err != nil {
		return models.UTM{}
	}
	q := u.Query()
	return models.UTM{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
	}
}
