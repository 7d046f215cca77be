package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
)

// ErrMissingCredentials is returned when the pixel id or access token is empty.
var ErrMissingCredentials = errors.New("capi: pixel id and access token are required")

// StatusError is a non-2xx answer from the Events API.
type StatusError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("events api status %d", e.StatusCode)
	}
	return fmt.Sprintf("events api status %d: %s", e.StatusCode, e.Message)
}

// Permanent reports whether resending the same payload cannot succeed.
func (e *StatusError) Permanent() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return false
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return true
	}
	return false
}

// IsPermanent reports whether err is a StatusError that retrying cannot fix.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrMissingCredentials) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Permanent()
}

// TransmitterConfig points the Transmitter at an Events API deployment.
type TransmitterConfig struct {
	BaseURL       string
	APIVersion    string
	TestEventCode string
	Timeout       time.Duration
}

// Transmitter posts one event per call. It never retries.
type Transmitter struct {
	cfg        TransmitterConfig
	httpClient *http.Client
}

// NewTransmitter builds a Transmitter with its own HTTP client.
func NewTransmitter(cfg TransmitterConfig) *Transmitter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Transmitter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type eventsRequest struct {
	Data          []*models.TrackedEvent `json:"data"`
	TestEventCode string                 `json:"test_event_code,omitempty"`
}

type graphError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// Send delivers ev to the pixel's events endpoint.
func (t *Transmitter) Send(ctx context.Context, ev *models.TrackedEvent, accessToken, pixelID string) error {
	if accessToken == "" || pixelID == "" {
		return ErrMissingCredentials
	}

	body, err := json.Marshal(eventsRequest{Data: []*models.TrackedEvent{ev}, TestEventCode: t.cfg.TestEventCode})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(pixelID, accessToken), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &StatusError{StatusCode: resp.StatusCode}
	var ge graphError
	if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
		se.Message = ge.Error.Message
		se.TraceID = ge.Error.FBTraceID
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}

func (t *Transmitter) endpoint(pixelID, accessToken string) string {
	q := url.Values{}
	q.Set("access_token", accessToken)
	return fmt.Sprintf("%s/%s/%s/events?%s", t.cfg.BaseURL, t.cfg.APIVersion, url.PathEscape(pixelID), q.Encode())
}

// redactURLError strips the query string, which carries the access token,
// from transport errors before they reach the logs.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
		}
	}
	return err
}
