package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:8095/", "tok")
	assert.Equal(t, "http://localhost:8095", c.baseURL)
	assert.Equal(t, 30*time.Second, c.client.Timeout)
}

func TestGetTracking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/operators/op-1/tracking", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Tracking{OperatorID: "op-1", PixelID: "123", HasAccessToken: true, Active: true})
	}))
	defer server.Close()

	tr, err := New(server.URL, "tok").GetTracking("op-1")
	require.NoError(t, err)
	assert.Equal(t, "123", tr.PixelID)
	assert.True(t, tr.Active)
}

func TestPutTracking_SendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "987", body["pixel_id"])
		_, hasToken := body["access_token"]
		assert.False(t, hasToken, "empty token is omitted so the server keeps the stored one")
		_ = json.NewEncoder(w).Encode(Tracking{PixelID: "987"})
	}))
	defer server.Close()

	_, err := New(server.URL, "tok").PutTracking("op-1", TrackingUpdate{PixelID: "987"})
	require.NoError(t, err)
}

func TestListLeads_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/operators/op-1/leads", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "new", q.Get("status"))
		assert.Equal(t, "maria silva", q.Get("q"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("limit"))
		_ = json.NewEncoder(w).Encode(LeadPage{
			Data:       []Lead{{ID: "lead_1", Name: "Maria Silva"}},
			Pagination: Pagination{Page: 2, Limit: 10, Total: 11},
		})
	}))
	defer server.Close()

	page, err := New(server.URL, "tok").ListLeads("op-1", LeadQuery{Status: "new", Search: "maria silva", Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, page.Pagination.Total)
	require.Len(t, page.Data, 1)
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error", http.StatusNotFound, `{"error":"lead not found"}`, "404: lead not found"},
		{"field errors", http.StatusUnprocessableEntity, `{"error":"validation failed","fields":[{"field":"status","message":"must be new, contacted or converted"}]}`,
			"422: validation failed (status must be new, contacted or converted)"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "502: upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(server.URL, "tok").UpdateLeadStatus("op-1", "lead_1", "lost")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestExportLeads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/operators/op-1/leads.csv", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte("id,name\nlead_1,Ana\n"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	n, err := New(server.URL, "tok").ExportLeads("op-1", LeadQuery{Page: 3}, &buf)
	require.NoError(t, err)
	assert.EqualValues(t, buf.Len(), n)
	assert.Equal(t, "id,name\nlead_1,Ana\n", buf.String())
}

func TestDeleteLead_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	assert.NoError(t, New(server.URL, "tok").DeleteLead("op-1", "lead_1"))
}

func TestAdvance_VisitorHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/funnel/op-1/sessions/ses_1/steps", r.URL.Path)
		assert.Equal(t, "203.0.113.9", r.Header.Get("X-Forwarded-For"))
		assert.Equal(t, "Mozilla/5.0 test", r.Header.Get("User-Agent"))
		assert.Equal(t, "false", r.Header.Get("X-Pixel-Available"))
		assert.Empty(t, r.Header.Get("Authorization"))
		fbp, err := r.Cookie("_fbp")
		require.NoError(t, err)
		assert.Equal(t, "fb.1.1700000000000.42", fbp.Value)
		_, _ = w.Write([]byte(`{"session":{"id":"ses_1"},"state":"SelectingPlan","step":2,"event":"Lead","event_id":"evt-1","pixel":[]}`))
	}))
	defer server.Close()

	res, err := New(server.URL, "").Advance("op-1", "ses_1", map[string]any{"name": "Ana"}, Visitor{
		IP:        "203.0.113.9",
		UserAgent: "Mozilla/5.0 test",
		FBP:       "fb.1.1700000000000.42",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lead", res.Event)
	assert.Equal(t, 2, res.Step)
}
