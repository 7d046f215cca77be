package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	connected bool
	err       error
}

func (p fakePinger) IsConnected() bool           { return p.connected }
func (p fakePinger) RTT() (time.Duration, error) { return time.Millisecond, p.err }

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler("1.2.3").Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   int
		body   string
	}{
		{"no checks", nil, http.StatusOK, `"ready"`},
		{
			name: "all healthy",
			checks: map[string]Check{
				"redis": func(context.Context) error { return nil },
				"nats":  NATSCheck(fakePinger{connected: true}),
			},
			want: http.StatusOK,
			body: `"nats":"ok"`,
		},
		{
			name: "database down",
			checks: map[string]Check{
				"database": func(context.Context) error { return errors.New("connection refused") },
			},
			want: http.StatusServiceUnavailable,
			body: `"database":"connection refused"`,
		},
		{
			name:   "nats disconnected",
			checks: map[string]Check{"nats": NATSCheck(fakePinger{})},
			want:   http.StatusServiceUnavailable,
			body:   "not connected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("test")
			for name, c := range tt.checks {
				h.Register(name, c)
			}
			w := httptest.NewRecorder()
			h.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}
