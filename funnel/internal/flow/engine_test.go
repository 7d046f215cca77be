package flow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/capi"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/configstore"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/cookies"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dedupe"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/delivery"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dlq"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/hashing"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/leads"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/pixel"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/sessions"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/validation"
)

// eventsAPI records every payload posted to it.
type eventsAPI struct {
	mu       sync.Mutex
	status   int
	payloads []models.TrackedEvent
	queries  []string
}

func (a *eventsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Data []models.TrackedEvent `json:"data"`
	}
	_ = json.Unmarshal(body, &req)

	a.mu.Lock()
	a.payloads = append(a.payloads, req.Data...)
	a.queries = append(a.queries, r.URL.Path+"?"+r.URL.RawQuery)
	status := a.status
	a.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"events_received":1}`))
}

func (a *eventsAPI) sent() []models.TrackedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.TrackedEvent(nil), a.payloads...)
}

type fixture struct {
	engine   *Engine
	api      *eventsAPI
	leads    *leads.Memory
	configs  *configstore.Memory
	sessions *sessions.Memory
	dlq      *dlq.Memory
}

func newFixture(t *testing.T, active bool) *fixture {
	t.Helper()
	api := &eventsAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	configs := configstore.NewMemory()
	if active {
		require.NoError(t, configs.Put(context.Background(), &models.TrackingConfiguration{
			OperatorID:  "op-1",
			PixelID:     "123456789",
			AccessToken: "EAAB-token",
			UserName:    "Loja TV",
		}))
	}
	queue := dlq.NewMemory(16)
	f := &fixture{
		api:      api,
		leads:    leads.NewMemory(),
		configs:  configs,
		sessions: sessions.NewMemory(time.Hour),
		dlq:      queue,
	}
	f.engine = NewEngine(Deps{
		Builder:    capi.NewBuilder("BRL"),
		Dispatcher: delivery.NewSync(capi.NewTransmitter(capi.TransmitterConfig{BaseURL: srv.URL}), queue).WithDedupe(dedupe.NewMemory(time.Hour)),
		Configs:    configs,
		Leads:      f.leads,
		Sessions:   f.sessions,
	})
	return f
}

func (f *fixture) start(t *testing.T) *models.Session {
	t.Helper()
	s, err := f.engine.Start(context.Background(), "op-1", StartInput{
		SourceURL: "https://tv.example.com/?utm_source=facebook",
		UTM:       models.UTM{Source: "facebook", Campaign: "verao"},
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) advance(t *testing.T, sessionID string, in StepInput) (*Result, *pixel.Recorder) {
	t.Helper()
	rec := pixel.NewRecorder()
	res, err := f.engine.Advance(context.Background(), Request{
		OperatorID: "op-1",
		SessionID:  sessionID,
		Input:      in,
		Visitor:    httputil.Visitor{IP: "203.0.113.7", UserAgent: "Mozilla/5.0"},
		Cookies:    cookies.Jar{cookies.BrowserID: "fb.1.1700000000000.42"},
		Pixel:      rec,
	})
	require.NoError(t, err)
	return res, rec
}

var maria = StepInput{Name: "Maria Souza", Email: "MARIA@Test.com", Phone: "11999998888"}

func TestAdvance_LeadWithActiveConfiguration(t *testing.T) {
	f := newFixture(t, true)
	s := f.start(t)

	res, rec := f.advance(t, s.ID, maria)

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.EventLead, calls[0].Event)
	assert.Equal(t, res.EventID, calls[0].Options.EventID)

	sent := f.api.sent()
	require.Len(t, sent, 1)
	ev := sent[0]
	assert.Equal(t, res.EventID, ev.EventID, "both channels share one event id")
	assert.Equal(t, hashing.SHA256("maria@test.com"), ev.UserData.Em)
	assert.Equal(t, hashing.SHA256("maria"), ev.UserData.Fn)
	assert.Equal(t, hashing.SHA256("souza"), ev.UserData.Ln)
	assert.Equal(t, "fb.1.1700000000000.42", ev.UserData.Fbp)
	assert.Empty(t, ev.UserData.Fbc)
	assert.Equal(t, "203.0.113.7", ev.UserData.ClientIPAddress)
	assert.Equal(t, "Lead Capture", ev.CustomData.ContentName)
	assert.Equal(t, "facebook", ev.CustomData.UTMSource)
	assert.Equal(t, "https://tv.example.com/?utm_source=facebook", ev.EventSourceURL)
	assert.Contains(t, f.api.queries[0], "/123456789/events?access_token=EAAB-token")

	assert.Equal(t, SelectingPlan, res.State)
	assert.Equal(t, "Maria Souza", res.Session.Form.Name)
}

func TestAdvance_WithoutConfigurationOnlyFiresPixel(t *testing.T) {
	f := newFixture(t, false)
	s := f.start(t)

	res, rec := f.advance(t, s.ID, maria)

	assert.Len(t, rec.Calls(), 1)
	assert.Empty(t, f.api.sent())
	assert.Equal(t, SelectingPlan, res.State)
}

func TestAdvance_DeliveryFailureStillAdvances(t *testing.T) {
	f := newFixture(t, true)
	f.api.status = http.StatusInternalServerError
	s := f.start(t)

	res, rec := f.advance(t, s.ID, maria)

	assert.Len(t, rec.Calls(), 1)
	assert.Len(t, f.api.sent(), 1)
	assert.Equal(t, SelectingPlan, res.State)

	failed, err := f.dlq.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, res.EventID, failed[0].Event.EventID)
}

func TestAdvance_FullFunnel(t *testing.T) {
	f := newFixture(t, true)
	s := f.start(t)

	f.advance(t, s.ID, maria)
	f.advance(t, s.ID, StepInput{PlanID: "1t_semestral"})
	f.advance(t, s.ID, StepInput{Source: "Instagram"})
	res, rec := f.advance(t, s.ID, StepInput{Confirm: true})

	sent := f.api.sent()
	require.Len(t, sent, 4)
	names := []models.EventName{sent[0].EventName, sent[1].EventName, sent[2].EventName, sent[3].EventName}
	assert.Equal(t, []models.EventName{models.EventLead, models.EventViewContent, models.EventAddToCart, models.EventPurchase}, names)

	ids := map[string]bool{}
	for _, ev := range sent {
		ids[ev.EventID] = true
	}
	assert.Len(t, ids, 4, "one event id per transition")

	view := sent[1].CustomData
	assert.Equal(t, "Semestral (1 Tela)", view.ContentName)
	assert.Equal(t, []string{"1t_semestral"}, view.ContentIDs)
	assert.Equal(t, 149.90, view.Value)

	assert.Equal(t, "Instagram", sent[2].CustomData.ContentCategory)

	purchase := sent[3]
	assert.Equal(t, 149.90, purchase.CustomData.Value)
	assert.Equal(t, "BRL", purchase.CustomData.Currency)
	assert.Equal(t, "Purchase Confirmation", purchase.CustomData.ContentName)
	assert.Equal(t, hashing.SHA256("maria@test.com"), purchase.UserData.Em, "identity carried on every step")

	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, models.EventPurchase, rec.Calls()[0].Event)
	assert.Equal(t, 149.90, rec.Calls()[0].CustomData.Value)

	assert.Equal(t, Completed, res.State)
	require.NotNil(t, res.Completion)
	assert.Contains(t, res.Completion.WhatsAppURL, "https://wa.me/5511999998888?text=")

	lead, err := f.leads.Get(context.Background(), "op-1", res.Completion.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "MARIA@Test.com", lead.Email)
	assert.Equal(t, "Semestral (1 Tela)", lead.PlanName)
	assert.Equal(t, 149.90, lead.Value)
	assert.Equal(t, "Instagram", lead.Source)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Equal(t, purchase.EventID, lead.EventID)
	assert.Equal(t, "verao", lead.UTM.Campaign)

	_, err = f.engine.Advance(context.Background(), Request{OperatorID: "op-1", SessionID: s.ID, Input: StepInput{Confirm: true}})
	assert.ErrorIs(t, err, ErrCompleted)
	_, _, err = f.engine.Back(context.Background(), "op-1", s.ID)
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestAdvance_InvalidInputEmitsNothing(t *testing.T) {
	f := newFixture(t, true)
	s := f.start(t)
	rec := pixel.NewRecorder()

	_, err := f.engine.Advance(context.Background(), Request{
		OperatorID: "op-1",
		SessionID:  s.ID,
		Input:      StepInput{Name: "Maria", Email: "not-an-email"},
		Pixel:      rec,
	})
	require.Error(t, err)
	fields := validation.Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "email", fields[0].Field)
	assert.Equal(t, "phone", fields[1].Field)
	assert.Empty(t, rec.Calls())
	assert.Empty(t, f.api.sent())

	got, state, err := f.engine.Get(context.Background(), "op-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, CollectingIdentity, state)
	assert.Empty(t, got.Form.Name)
}

func TestAdvance_UnknownPlan(t *testing.T) {
	f := newFixture(t, false)
	s := f.start(t)
	f.advance(t, s.ID, maria)

	_, err := f.engine.Advance(context.Background(), Request{OperatorID: "op-1", SessionID: s.ID, Input: StepInput{PlanID: "ouro"}})
	require.Error(t, err)
	assert.Equal(t, "plan_id", validation.Fields(err)[0].Field)
}

func TestBack_DoesNotEmit(t *testing.T) {
	f := newFixture(t, true)
	s := f.start(t)
	f.advance(t, s.ID, maria)
	f.advance(t, s.ID, StepInput{PlanID: "2t_anual"})
	require.Len(t, f.api.sent(), 2)

	got, state, err := f.engine.Back(context.Background(), "op-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, SelectingPlan, state)
	assert.Equal(t, "2t_anual", got.Form.PlanID, "form survives going back")

	_, state, err = f.engine.Back(context.Background(), "op-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, CollectingIdentity, state)

	_, state, err = f.engine.Back(context.Background(), "op-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, CollectingIdentity, state, "first step has nothing behind it")

	assert.Len(t, f.api.sent(), 2)
}

func TestAdvance_BusySession(t *testing.T) {
	f := newFixture(t, false)
	s := f.start(t)

	unlock, err := f.sessions.Lock(context.Background(), s.ID, time.Minute)
	require.NoError(t, err)
	defer unlock()

	_, err = f.engine.Advance(context.Background(), Request{OperatorID: "op-1", SessionID: s.ID, Input: maria})
	assert.ErrorIs(t, err, sessions.ErrBusy)
}

func TestAdvance_OtherOperatorCannotSeeSession(t *testing.T) {
	f := newFixture(t, false)
	s := f.start(t)

	_, err := f.engine.Advance(context.Background(), Request{OperatorID: "op-2", SessionID: s.ID, Input: maria})
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestAdvance_CancelledRequestStillCompletes(t *testing.T) {
	f := newFixture(t, true)
	s := f.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The lease is taken before the transition detaches from ctx.
	res, err := f.engine.Advance(ctx, Request{OperatorID: "op-1", SessionID: s.ID, Input: maria})
	require.NoError(t, err)
	assert.Equal(t, SelectingPlan, res.State)
	assert.Len(t, f.api.sent(), 1)
}

func TestStart_DemoOperator(t *testing.T) {
	f := newFixture(t, false)
	s, err := f.engine.Start(context.Background(), "", StartInput{})
	require.NoError(t, err)
	assert.Equal(t, models.DemoOperatorID, s.OperatorID)
	assert.Equal(t, CollectingIdentity.String(), s.State)
}

// flakySink fails the first n saves.
type flakySink struct {
	leads.Sink
	fail int
}

func (f *flakySink) Save(ctx context.Context, lead *models.Lead) error {
	if f.fail > 0 {
		f.fail--
		return errors.New("db down")
	}
	return f.Sink.Save(ctx, lead)
}

// flakySessions fails the nth Save.
type flakySessions struct {
	sessions.Store
	calls  int
	failOn int
}

func (f *flakySessions) Save(ctx context.Context, s *models.Session) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("redis down")
	}
	return f.Store.Save(ctx, s)
}

func (f *fixture) toConfirmation(t *testing.T) *models.Session {
	t.Helper()
	s := f.start(t)
	f.advance(t, s.ID, maria)
	f.advance(t, s.ID, StepInput{PlanID: "1t_semestral"})
	f.advance(t, s.ID, StepInput{Source: "Instagram"})
	return s
}

func purchaseIDs(events []models.TrackedEvent) []string {
	var ids []string
	for _, ev := range events {
		if ev.EventName == models.EventPurchase {
			ids = append(ids, ev.EventID)
		}
	}
	return ids
}

func TestAdvance_RetryAfterLeadSaveFailureKeepsEventID(t *testing.T) {
	f := newFixture(t, true)
	s := f.toConfirmation(t)
	f.engine.leads = &flakySink{Sink: f.leads, fail: 1}

	first := pixel.NewRecorder()
	_, err := f.engine.Advance(context.Background(), Request{
		OperatorID: "op-1", SessionID: s.ID, Input: StepInput{Confirm: true}, Pixel: first,
	})
	require.ErrorContains(t, err, "db down")

	_, state, err := f.engine.Get(context.Background(), "op-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, ReviewingAndConfirming, state)

	res, second := f.advance(t, s.ID, StepInput{Confirm: true})
	assert.Equal(t, Completed, res.State)

	ids := purchaseIDs(f.api.sent())
	require.Len(t, ids, 1, "the retry must not reach the Events API again")
	assert.Equal(t, ids[0], res.EventID)
	require.Len(t, first.Calls(), 1)
	require.Len(t, second.Calls(), 1)
	assert.Equal(t, first.Calls()[0].Options.EventID, second.Calls()[0].Options.EventID)

	lead, err := f.leads.Get(context.Background(), "op-1", res.Completion.LeadID)
	require.NoError(t, err)
	assert.Equal(t, ids[0], lead.EventID)

	got, _, err := f.engine.Get(context.Background(), "op-1", s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Pending)
}

func TestAdvance_RetryAfterSessionSaveFailureKeepsLead(t *testing.T) {
	f := newFixture(t, true)
	s := f.toConfirmation(t)
	// The reserve save succeeds, the closing save fails.
	flaky := &flakySessions{Store: f.sessions, failOn: 2}
	f.engine.sessions = flaky

	_, err := f.engine.Advance(context.Background(), Request{OperatorID: "op-1", SessionID: s.ID, Input: StepInput{Confirm: true}})
	require.ErrorContains(t, err, "redis down")

	res, _ := f.advance(t, s.ID, StepInput{Confirm: true})
	assert.Equal(t, Completed, res.State)

	ids := purchaseIDs(f.api.sent())
	require.Len(t, ids, 1)

	all, total, err := f.leads.List(context.Background(), models.LeadFilter{OperatorID: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, all, 1)
	assert.Equal(t, res.Completion.LeadID, all[0].ID)
	assert.Equal(t, ids[0], all[0].EventID)
}

func TestAdvance_ReserveFailureEmitsNothing(t *testing.T) {
	f := newFixture(t, true)
	s := f.start(t)
	f.engine.sessions = &flakySessions{Store: f.sessions, failOn: 1}
	rec := pixel.NewRecorder()

	_, err := f.engine.Advance(context.Background(), Request{OperatorID: "op-1", SessionID: s.ID, Input: maria, Pixel: rec})
	require.Error(t, err)
	assert.Empty(t, rec.Calls())
	assert.Empty(t, f.api.sent())
}
