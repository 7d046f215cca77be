// Package client talks to the funnel service's public and operator APIs.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  []FieldError
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("%d: %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
}

type Plan struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Screens int     `json:"screens"`
}

type Tracking struct {
	OperatorID     string    `json:"operator_id"`
	PixelID        string    `json:"pixel_id"`
	HasAccessToken bool      `json:"has_access_token"`
	Active         bool      `json:"active"`
	UserName       string    `json:"user_name"`
	DisplayName    string    `json:"display_name"`
	Plans          []Plan    `json:"plans"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TrackingUpdate is the PUT body. An empty AccessToken keeps the stored one.
type TrackingUpdate struct {
	PixelID     string `json:"pixel_id"`
	AccessToken string `json:"access_token,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	Plans       []Plan `json:"plans,omitempty"`
}

type Lead struct {
	ID         string    `json:"id"`
	OperatorID string    `json:"operator_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	PlanID     string    `json:"plan_id"`
	PlanName   string    `json:"plan_name"`
	Value      float64   `json:"value"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	EventID    string    `json:"event_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type LeadQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type LeadPage struct {
	Data       []Lead     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type DLQStatus struct {
	Stats   map[string]any   `json:"stats"`
	Entries []map[string]any `json:"entries,omitempty"`
}

type ReplayReport struct {
	Read       int `json:"read"`
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type Funnel struct {
	OperatorID    string   `json:"operator_id"`
	DisplayName   string   `json:"display_name"`
	Plans         []Plan   `json:"plans"`
	SourceOptions []string `json:"source_options"`
	PixelID       string   `json:"pixel_id,omitempty"`
}

type PixelCall struct {
	Event   string `json:"event"`
	Options struct {
		EventID string `json:"eventID"`
	} `json:"options"`
}

type Completion struct {
	LeadID      string `json:"lead_id"`
	PlanName    string `json:"plan_name"`
	WhatsAppURL string `json:"whatsapp_url"`
}

type StepResult struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	State      string      `json:"state"`
	Step       int         `json:"step"`
	Event      string      `json:"event,omitempty"`
	EventID    string      `json:"event_id,omitempty"`
	Pixel      []PixelCall `json:"pixel"`
	Completion *Completion `json:"completion,omitempty"`
}

// New builds a Client. token may be empty for the public funnel routes.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) doRequest(method, path string, body any, header http.Header) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	return c.client.Do(req)
}

// call sends the request and decodes a 2xx body into out, which may be nil.
func (c *Client) call(method, path string, body, out any, header http.Header) error {
	resp, err := c.doRequest(method, path, body, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	var payload struct {
		Error  string       `json:"error"`
		Fields []FieldError `json:"fields"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(bodyBytes, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Fields = payload.Fields
	} else {
		apiErr.Message = strings.TrimSpace(string(bodyBytes))
	}
	return apiErr
}

func operatorPath(operatorID, suffix string) string {
	return "/api/v1/operators/" + url.PathEscape(operatorID) + suffix
}

func (c *Client) GetTracking(operatorID string) (*Tracking, error) {
	var t Tracking
	if err := c.call(http.MethodGet, operatorPath(operatorID, "/tracking"), nil, &t, nil); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) PutTracking(operatorID string, update TrackingUpdate) (*Tracking, error) {
	var t Tracking
	if err := c.call(http.MethodPut, operatorPath(operatorID, "/tracking"), update, &t, nil); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeleteTracking(operatorID string) error {
	return c.call(http.MethodDelete, operatorPath(operatorID, "/tracking"), nil, nil, nil)
}

func (q LeadQuery) encode() string {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *Client) ListLeads(operatorID string, q LeadQuery) (*LeadPage, error) {
	var page LeadPage
	if err := c.call(http.MethodGet, operatorPath(operatorID, "/leads"+q.encode()), nil, &page, nil); err != nil {
		return nil, err
	}
	return &page, nil
}

// ExportLeads copies the CSV export to w.
func (c *Client) ExportLeads(operatorID string, q LeadQuery, w io.Writer) (int64, error) {
	q.Page, q.Limit = 0, 0
	resp, err := c.doRequest(http.MethodGet, operatorPath(operatorID, "/leads.csv"+q.encode()), nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) UpdateLeadStatus(operatorID, leadID, status string) (*Lead, error) {
	var lead Lead
	path := operatorPath(operatorID, "/leads/"+url.PathEscape(leadID))
	if err := c.call(http.MethodPatch, path, map[string]string{"status": status}, &lead, nil); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (c *Client) DeleteLead(operatorID, leadID string) error {
	return c.call(http.MethodDelete, operatorPath(operatorID, "/leads/"+url.PathEscape(leadID)), nil, nil, nil)
}

func (c *Client) DLQ(limit int) (*DLQStatus, error) {
	var s DLQStatus
	if err := c.call(http.MethodGet, "/api/v1/admin/dlq?limit="+strconv.Itoa(limit), nil, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ReplayDLQ(limit int) (*ReplayReport, error) {
	var r ReplayReport
	if err := c.call(http.MethodPost, "/api/v1/admin/dlq/replay?limit="+strconv.Itoa(limit), nil, &r, nil); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) PurgeDLQ() error {
	return c.call(http.MethodDelete, "/api/v1/admin/dlq", nil, nil, nil)
}

func funnelPath(operatorID, suffix string) string {
	return "/api/v1/funnel/" + url.PathEscape(operatorID) + suffix
}

func (c *Client) GetFunnel(operatorID string) (*Funnel, error) {
	var f Funnel
	if err := c.call(http.MethodGet, funnelPath(operatorID, ""), nil, &f, nil); err != nil {
		return nil, err
	}
	return &f, nil
}

// StartSession opens a session as if the visitor landed on sourceURL.
func (c *Client) StartSession(operatorID, sourceURL string) (*StepResult, error) {
	var r StepResult
	body := map[string]string{"source_url": sourceURL}
	if err := c.call(http.MethodPost, funnelPath(operatorID, "/sessions"), body, &r, nil); err != nil {
		return nil, err
	}
	return &r, nil
}

// Visitor is the browser context a simulated step is sent with.
type Visitor struct {
	IP             string
	UserAgent      string
	FBP            string
	FBC            string
	PixelAvailable bool
}

func (v Visitor) header() http.Header {
	h := http.Header{}
	if v.IP != "" {
		h.Set("X-Forwarded-For", v.IP)
	}
	if v.UserAgent != "" {
		h.Set("User-Agent", v.UserAgent)
	}
	var cookies []string
	if v.FBP != "" {
		cookies = append(cookies, "_fbp="+v.FBP)
	}
	if v.FBC != "" {
		cookies = append(cookies, "_fbc="+v.FBC)
	}
	if len(cookies) > 0 {
		h.Set("Cookie", strings.Join(cookies, "; "))
	}
	if !v.PixelAvailable {
		h.Set("X-Pixel-Available", "false")
	}
	return h
}

func (c *Client) Advance(operatorID, sessionID string, input map[string]any, v Visitor) (*StepResult, error) {
	var r StepResult
	path := funnelPath(operatorID, "/sessions/"+url.PathEscape(sessionID)+"/steps")
	if err := c.call(http.MethodPost, path, input, &r, v.header()); err != nil {
		return nil, err
	}
	return &r, nil
}
