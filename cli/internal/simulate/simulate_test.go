package simulate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techview-systems/leadpixel-stack/cli/internal/client"
)

func TestNewPersona(t *testing.T) {
	f := gofakeit.New(7)
	phone := regexp.MustCompile(`^\(\d{2}\) 9\d{4}-\d{4}$`)
	cep := regexp.MustCompile(`^\d{5}-\d{3}$`)

	for i := 0; i < 20; i++ {
		p := NewPersona(f, 0)
		assert.NotEmpty(t, p.Name)
		assert.Contains(t, p.Email, "@")
		assert.Regexp(t, phone, p.Phone)
		assert.Regexp(t, cep, p.PostalCode)
		assert.True(t, p.Visitor.PixelAvailable)
		assert.Regexp(t, `^fb\.1\.\d+\.\d{10}$`, p.Visitor.FBP)
	}

	assert.False(t, NewPersona(f, 1).Visitor.PixelAvailable)
}

// fakeFunnel answers the funnel routes and counts steps per session.
type fakeFunnel struct {
	mu    sync.Mutex
	steps map[string]int
	next  int
}

func (f *fakeFunnel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := []string{"Lead", "ViewContent", "AddToCart", "Purchase"}

	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(client.Funnel{
			OperatorID:    "op-1",
			Plans:         []client.Plan{{ID: "1t_mensal", Name: "Mensal (1 Tela)", Price: 29.9, Screens: 1}},
			SourceOptions: []string{"Google", "Instagram"},
		})
	case r.URL.Path == "/api/v1/funnel/op-1/sessions":
		f.next++
		id := "ses_" + string(rune('a'+f.next))
		f.steps[id] = 0
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"session":{"id":"` + id + `"},"state":"CollectingIdentity","step":1,"pixel":[]}`))
	default:
		id := r.PathValue("sessionId")
		n := f.steps[id]
		f.steps[id] = n + 1
		_ = json.NewEncoder(w).Encode(map[string]any{"session": map[string]string{"id": id}, "event": events[n], "step": n + 2})
	}
}

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	fake := &fakeFunnel{steps: map[string]int{}}
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/funnel/op-1", fake)
	mux.Handle("POST /api/v1/funnel/op-1/sessions", fake)
	mux.Handle("POST /api/v1/funnel/op-1/sessions/{sessionId}/steps", fake)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunner_CompletesEveryJourney(t *testing.T) {
	srv := newFakeServer(t)

	report, err := NewRunner(client.New(srv.URL, ""), Config{OperatorID: "op-1", Count: 3, Seed: 1}).Run()
	require.NoError(t, err)
	assert.Equal(t, 3, report.Started)
	assert.Equal(t, 3, report.Completed)
	assert.Zero(t, report.Abandoned)
	assert.Equal(t, map[string]int{"Lead": 3, "ViewContent": 3, "AddToCart": 3, "Purchase": 3}, report.Events)
}

func TestRunner_AbandonEverything(t *testing.T) {
	srv := newFakeServer(t)

	report, err := NewRunner(client.New(srv.URL, ""), Config{OperatorID: "op-1", Count: 2, AbandonRate: 1, Seed: 1}).Run()
	require.NoError(t, err)
	assert.Equal(t, 2, report.Started)
	assert.Equal(t, 2, report.Abandoned)
	assert.Empty(t, report.Events)
}

func TestRunner_UnknownFunnel(t *testing.T) {
	srv := newFakeServer(t)

	_, err := NewRunner(client.New(srv.URL, ""), Config{OperatorID: "missing"}).Run()
	assert.Error(t, err)
}
