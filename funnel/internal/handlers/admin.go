package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/configstore"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/delivery"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dlq"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/leads"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/validation"
)

// AdminHandler serves the operator console API. Routes are wrapped in auth
// middleware by the router.
type AdminHandler struct {
	configs    configstore.Repository
	leads      leads.Repository
	dlq        dlq.Queue
	dispatcher delivery.Dispatcher
}

func NewAdminHandler(configs configstore.Repository, leadRepo leads.Repository, queue dlq.Queue, dispatcher delivery.Dispatcher) *AdminHandler {
	if queue == nil {
		queue = dlq.Noop{}
	}
	return &AdminHandler{configs: configs, leads: leadRepo, dlq: queue, dispatcher: dispatcher}
}

type trackingRequest struct {
	PixelID     string        `json:"pixel_id" validate:"required,numeric,max=32"`
	AccessToken string        `json:"access_token" validate:"max=512"`
	UserName    string        `json:"user_name" validate:"max=120"`
	Plans       []models.Plan `json:"plans" validate:"max=50,dive"`
}

type trackingResponse struct {
	OperatorID     string        `json:"operator_id"`
	PixelID        string        `json:"pixel_id"`
	HasAccessToken bool          `json:"has_access_token"`
	Active         bool          `json:"active"`
	UserName       string        `json:"user_name"`
	DisplayName    string        `json:"display_name"`
	Plans          []models.Plan `json:"plans"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func toTrackingResponse(cfg *models.TrackingConfiguration) trackingResponse {
	return trackingResponse{
		OperatorID:     cfg.OperatorID,
		PixelID:        cfg.PixelID,
		HasAccessToken: cfg.AccessToken != "",
		Active:         cfg.Active(),
		UserName:       cfg.UserName,
		DisplayName:    cfg.DisplayName(),
		Plans:          cfg.Catalogue(),
		UpdatedAt:      cfg.UpdatedAt,
	}
}

func (h *AdminHandler) GetTracking(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context(), r.PathValue("operatorId"))
	if errors.Is(err, configstore.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "tracking configuration not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "Failed to read tracking configuration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTrackingResponse(cfg))
}

// PutTracking replaces the configuration. An omitted access token keeps the
// stored one so the console can edit plans without re-entering secrets.
func (h *AdminHandler) PutTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	req.PixelID = strings.TrimSpace(req.PixelID)
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	if err := validation.Struct(req); err != nil {
		if fields := validation.Fields(err); fields != nil {
			httputil.WriteValidationError(w, fields)
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	operatorID := r.PathValue("operatorId")
	token := req.AccessToken
	if token == "" {
		existing, err := h.configs.Get(r.Context(), operatorID)
		switch {
		case err == nil:
			token = existing.AccessToken
		case !errors.Is(err, configstore.ErrNotFound):
			h.internalError(w, r, "Failed to read tracking configuration", err)
			return
		}
	}

	cfg := &models.TrackingConfiguration{
		OperatorID:  operatorID,
		PixelID:     req.PixelID,
		AccessToken: token,
		UserName:    strings.TrimSpace(req.UserName),
		Plans:       req.Plans,
	}
	if err := h.configs.Put(r.Context(), cfg); err != nil {
		h.internalError(w, r, "Failed to save tracking configuration", err)
		return
	}
	slog.InfoContext(r.Context(), "Tracking configuration saved",
		logging.OperatorID(operatorID), logging.PixelID(cfg.PixelID), slog.Bool("active", cfg.Active()))
	httputil.WriteJSON(w, http.StatusOK, toTrackingResponse(cfg))
}

func (h *AdminHandler) DeleteTracking(w http.ResponseWriter, r *http.Request) {
	err := h.configs.Delete(r.Context(), r.PathValue("operatorId"))
	if errors.Is(err, configstore.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "tracking configuration not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "Failed to delete tracking configuration", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// leadFilter reads ?status=&q= for the path operator.
func leadFilter(r *http.Request) (models.LeadFilter, bool) {
	f := models.LeadFilter{
		OperatorID: r.PathValue("operatorId"),
		Status:     models.LeadStatus(r.URL.Query().Get("status")),
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, false
	}
	return f, true
}

func (h *AdminHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	filter, ok := leadFilter(r)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "status must be new, contacted or converted")
		return
	}
	page := httputil.ParsePagination(r, leads.DefaultLimit, leads.MaxLimit)
	filter.Limit, filter.Offset = page.Limit, page.Offset()

	items, total, err := h.leads.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, "Failed to list leads", err)
		return
	}
	page.Total = total
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": page,
	})
}

// ExportLeads streams every matching lead as CSV.
func (h *AdminHandler) ExportLeads(w http.ResponseWriter, r *http.Request) {
	filter, ok := leadFilter(r)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "status must be new, contacted or converted")
		return
	}

	var all []models.Lead
	filter.Limit = leads.MaxLimit
	for {
		batch, total, err := h.leads.List(r.Context(), filter)
		if err != nil {
			h.internalError(w, r, "Failed to export leads", err)
			return
		}
		all = append(all, batch...)
		filter.Offset += len(batch)
		if len(batch) == 0 || filter.Offset >= total {
			break
		}
	}

	name := "leads-" + filter.OperatorID + "-" + time.Now().UTC().Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if err := leads.WriteCSV(w, all); err != nil {
		slog.WarnContext(r.Context(), "CSV export interrupted", logging.OperatorID(filter.OperatorID), logging.Error(err))
	}
}

type statusRequest struct {
	Status models.LeadStatus `json:"status"`
}

func (h *AdminHandler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	lead, err := h.leads.UpdateStatus(r.Context(), r.PathValue("operatorId"), r.PathValue("leadId"), req.Status)
	switch {
	case errors.Is(err, leads.ErrInvalidStatus):
		httputil.WriteValidationError(w, []httputil.FieldError{{Field: "status", Message: "must be new, contacted or converted"}})
	case errors.Is(err, leads.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "lead not found")
	case err != nil:
		h.internalError(w, r, "Failed to update lead", err)
	default:
		httputil.WriteJSON(w, http.StatusOK, lead)
	}
}

func (h *AdminHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	err := h.leads.Delete(r.Context(), r.PathValue("operatorId"), r.PathValue("leadId"))
	switch {
	case errors.Is(err, leads.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "lead not found")
	case err != nil:
		h.internalError(w, r, "Failed to delete lead", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetDLQ reports queue figures and the oldest entries.
func (h *AdminHandler) GetDLQ(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), 50)
	resp := map[string]any{"stats": h.dlq.Stats(r.Context())}
	entries, err := h.dlq.List(r.Context(), limit)
	switch {
	case errors.Is(err, dlq.ErrDisabled):
	case err != nil:
		h.internalError(w, r, "Failed to list DLQ", err)
		return
	default:
		resp["entries"] = entries
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), dlq.DefaultListLimit)
	report, err := delivery.Replay(r.Context(), h.dlq, h.configs, h.dispatcher, limit)
	if errors.Is(err, dlq.ErrDisabled) {
		httputil.WriteError(w, http.StatusNotFound, "dlq not enabled")
		return
	}
	if err != nil {
		h.internalError(w, r, "Failed to replay DLQ", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) PurgeDLQ(w http.ResponseWriter, r *http.Request) {
	err := h.dlq.Purge(r.Context())
	if errors.Is(err, dlq.ErrDisabled) {
		httputil.WriteError(w, http.StatusNotFound, "dlq not enabled")
		return
	}
	if err != nil {
		h.internalError(w, r, "Failed to purge DLQ", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.ErrorContext(r.Context(), msg, logging.OperatorID(r.PathValue("operatorId")), logging.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "internal error")
}
