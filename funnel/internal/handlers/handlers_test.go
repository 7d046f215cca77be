package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/capi"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/configstore"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/delivery"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dlq"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/flow"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/leads"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/sessions"
)

type testEnv struct {
	mux       *http.ServeMux
	configs   *configstore.Memory
	leads     *leads.Memory
	dlq       *dlq.Memory
	delivered atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		configs: configstore.NewMemory(),
		leads:   leads.NewMemory(),
		dlq:     dlq.NewMemory(16),
	}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.delivered.Add(1)
		_, _ = w.Write([]byte(`{"events_received":1}`))
	}))
	t.Cleanup(api.Close)

	dispatcher := delivery.NewSync(capi.NewTransmitter(capi.TransmitterConfig{BaseURL: api.URL}), env.dlq)
	engine := flow.NewEngine(flow.Deps{
		Builder:    capi.NewBuilder("BRL"),
		Dispatcher: dispatcher,
		Configs:    env.configs,
		Leads:      env.leads,
		Sessions:   sessions.NewMemory(time.Hour),
	})

	funnel := NewFunnelHandler(engine, env.configs)
	admin := NewAdminHandler(env.configs, env.leads, env.dlq, dispatcher)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /funnel/{operatorId}", funnel.GetFunnel)
	mux.HandleFunc("POST /funnel/{operatorId}/sessions", funnel.StartSession)
	mux.HandleFunc("GET /funnel/{operatorId}/sessions/{sessionId}", funnel.GetSession)
	mux.HandleFunc("POST /funnel/{operatorId}/sessions/{sessionId}/advance", funnel.Advance)
	mux.HandleFunc("POST /funnel/{operatorId}/sessions/{sessionId}/back", funnel.Back)
	mux.HandleFunc("GET /operators/{operatorId}/tracking", admin.GetTracking)
	mux.HandleFunc("PUT /operators/{operatorId}/tracking", admin.PutTracking)
	mux.HandleFunc("DELETE /operators/{operatorId}/tracking", admin.DeleteTracking)
	mux.HandleFunc("GET /operators/{operatorId}/leads", admin.ListLeads)
	mux.HandleFunc("GET /operators/{operatorId}/leads/export", admin.ExportLeads)
	mux.HandleFunc("PATCH /operators/{operatorId}/leads/{leadId}", admin.UpdateLeadStatus)
	mux.HandleFunc("DELETE /operators/{operatorId}/leads/{leadId}", admin.DeleteLead)
	mux.HandleFunc("GET /dlq", admin.GetDLQ)
	mux.HandleFunc("POST /dlq/replay", admin.ReplayDLQ)
	mux.HandleFunc("DELETE /dlq", admin.PurgeDLQ)
	env.mux = mux
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (env *testEnv) activate(t *testing.T, operatorID string) {
	t.Helper()
	require.NoError(t, env.configs.Put(context.Background(), &models.TrackingConfiguration{
		OperatorID:  operatorID,
		PixelID:     "123456789",
		AccessToken: "EAAB-token",
		UserName:    "Loja TV",
	}))
}
