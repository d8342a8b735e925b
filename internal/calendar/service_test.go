package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var baseNow = time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC)

var testConfig = Config{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	RedirectURL:  "https://vet.example.com/api/v1/calendar/callback",
	StateSecret:  []byte("0123456789abcdef0123456789abcdef"),
}

// fakeGoogle records Calendar API calls and serves the token endpoint.
type fakeGoogle struct {
	mu      sync.Mutex
	calls   []string
	events  map[string]calendarapi.Event
	nextID  int
	srv     *httptest.Server
	tokenOK bool
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{events: map[string]calendarapi.Event{}, tokenOK: true}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/token" {
		if !f.tokenOK {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
		return
	}

	const prefix = "/calendars/primary/events"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
	switch r.Method {
	case http.MethodPost:
		var ev calendarapi.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.nextID++
		ev.Id = "evt-" + strconv.Itoa(f.nextID)
		ev.HtmlLink = "https://calendar.example.com/" + ev.Id
		f.events[ev.Id] = ev
		_ = json.NewEncoder(w).Encode(ev)
	case http.MethodPut:
		if _, ok := f.events[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		var ev calendarapi.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		ev.Id = id
		f.events[id] = ev
		_ = json.NewEncoder(w).Encode(ev)
	case http.MethodDelete:
		if _, ok := f.events[id]; !ok {
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
			return
		}
		delete(f.events, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeGoogle) event(id string) (calendarapi.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	return ev, ok
}

type fixture struct {
	svc      *Service
	google   *fakeGoogle
	tokens   *InMemoryTokenStore
	appts    *appointments.InMemoryRepository
	patients *patients.InMemoryRepository
	appt     *appointments.Appointment
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		google:   newFakeGoogle(t),
		tokens:   NewInMemoryTokenStore(),
		appts:    appointments.NewInMemoryRepository(),
		patients: patients.NewInMemoryRepository(),
	}
	f.svc = NewService(cfg, f.tokens, f.appts, f.patients, logging.Discard(),
		WithOAuthEndpoint(oauth2.Endpoint{
			AuthURL:   f.google.srv.URL + "/auth",
			TokenURL:  f.google.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		WithAPIOptions(option.WithEndpoint(f.google.srv.URL+"/")),
		WithClock(func() time.Time { return baseNow }),
	)

	ctx := context.Background()
	rex := &patients.Patient{TenantID: "tenant-a", PetName: "Rex", Species: "dog", OwnerFirstName: "Ana", OwnerLastName: "Smith"}
	require.NoError(t, f.patients.Create(ctx, rex))
	f.appt = &appointments.Appointment{
		TenantID:        "tenant-a",
		PatientID:       rex.ID,
		AppointmentTime: time.Date(2030, time.January, 2, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		Status:          appointments.StatusScheduled,
	}
	require.NoError(t, f.appts.Insert(ctx, f.appt))
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, f.tokens.Save(context.Background(), "tenant-a", &oauth2.Token{
		AccessToken: "access-1",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
}

func TestAuthorizeURL(t *testing.T) {
	f := newFixture(t, testConfig)

	raw, err := f.svc.AuthorizeURL(context.Background(), "tenant-a")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, calendarapi.CalendarScope, q.Get("scope"))

	tenantID, err := parseState(testConfig.StateSecret, q.Get("state"), baseNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenantID)
}

func TestNotConfigured(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.AuthorizeURL(ctx, "tenant-a")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	_, err = f.svc.Callback(ctx, "code", "state")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	_, err = f.svc.Sync(ctx, "tenant-a", f.appt.ID)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.False(t, f.svc.Configured())
}

func TestCallbackStoresToken(t *testing.T) {
	f := newFixture(t, testConfig)
	state, err := signState(testConfig.StateSecret, "tenant-a", baseNow)
	require.NoError(t, err)

	tenantID, err := f.svc.Callback(context.Background(), "auth-code", state)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenantID)

	tok, err := f.tokens.Load(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
}

func TestCallbackRejectsBadState(t *testing.T) {
	f := newFixture(t, testConfig)

	_, err := f.svc.Callback(context.Background(), "auth-code", "not-a-state")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	expired, err := signState(testConfig.StateSecret, "tenant-a", baseNow.Add(-time.Hour))
	require.NoError(t, err)
	_, err = f.svc.Callback(context.Background(), "auth-code", expired)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	forged, err := signState([]byte("another-secret-another-secret-xx"), "tenant-a", baseNow)
	require.NoError(t, err)
	_, err = f.svc.Callback(context.Background(), "auth-code", forged)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCallbackExchangeFailure(t *testing.T) {
	f := newFixture(t, testConfig)
	f.google.tokenOK = false
	state, err := signState(testConfig.StateSecret, "tenant-a", baseNow)
	require.NoError(t, err)

	_, err = f.svc.Callback(context.Background(), "auth-code", state)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.tokens.Load(context.Background(), "tenant-a")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSyncRequiresConnection(t *testing.T) {
	f := newFixture(t, testConfig)

	_, err := f.svc.Sync(context.Background(), "tenant-a", f.appt.ID)
	require.Error(t, err)
	assert.Equal(t, "Google Calendar not connected. Please authorize first.", apperr.PublicMessage(err))
}

func TestSyncCreatesEvent(t *testing.T) {
	f := newFixture(t, testConfig)
	f.connect(t)

	res, err := f.svc.Sync(context.Background(), "tenant-a", f.appt.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "evt-1", res.EventID)

	ev, ok := f.google.event("evt-1")
	require.True(t, ok)
	assert.Equal(t, "Appointment: Rex", ev.Summary)
	assert.Equal(t, "Appointment for Rex", ev.Description)
	assert.Equal(t, "2030-01-02T14:00:00Z", ev.Start.DateTime)
	assert.Equal(t, "2030-01-02T14:45:00Z", ev.End.DateTime)
	assert.Equal(t, "UTC", ev.Start.TimeZone)
	require.NotNil(t, ev.Reminders)
	require.Len(t, ev.Reminders.Overrides, 2)
	assert.Equal(t, int64(1440), ev.Reminders.Overrides[0].Minutes)
	assert.Equal(t, "popup", ev.Reminders.Overrides[1].Method)

	stored, err := f.appts.Get(context.Background(), "tenant-a", f.appt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CalendarEventID)
	assert.Equal(t, "evt-1", *stored.CalendarEventID)
}

func TestSyncUpdatesExistingEvent(t *testing.T) {
	f := newFixture(t, testConfig)
	f.connect(t)
	ctx := context.Background()

	_, err := f.svc.Sync(ctx, "tenant-a", f.appt.ID)
	require.NoError(t, err)

	res, err := f.svc.Sync(ctx, "tenant-a", f.appt.ID)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "evt-1", res.EventID)
}

func TestSyncRecreatesMissingEvent(t *testing.T) {
	f := newFixture(t, testConfig)
	f.connect(t)
	ctx := context.Background()
	stale := "deleted-upstream"
	require.NoError(t, f.appts.SetCalendarEventID(ctx, "tenant-a", f.appt.ID, &stale))

	res, err := f.svc.Sync(ctx, "tenant-a", f.appt.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)

	stored, err := f.appts.Get(ctx, "tenant-a", f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, res.EventID, *stored.CalendarEventID)
}

func TestSyncOtherTenantAppointment(t *testing.T) {
	f := newFixture(t, testConfig)
	f.connect(t)

	_, err := f.svc.Sync(context.Background(), "tenant-b", f.appt.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelledAppointmentRemovesEvent(t *testing.T) {
	f := newFixture(t, testConfig)
	f.connect(t)
	ctx := context.Background()

	res, err := f.svc.Sync(ctx, "tenant-a", f.appt.ID)
	require.NoError(t, err)
	stored, err := f.appts.Get(ctx, "tenant-a", f.appt.ID)
	require.NoError(t, err)

	f.svc.AppointmentChanged(ctx, appointments.Event{Kind: appointments.EventCancelled, TenantID: "tenant-a", Appointment: *stored})
	f.svc.Wait()

	_, ok := f.google.event(res.EventID)
	assert.False(t, ok)
	stored, err = f.appts.Get(ctx, "tenant-a", f.appt.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CalendarEventID)
}

func TestNonCancelEventsIgnored(t *testing.T) {
	f := newFixture(t, testConfig)
	f.connect(t)
	id := "evt-9"
	appt := *f.appt
	appt.CalendarEventID = &id

	f.svc.AppointmentChanged(context.Background(), appointments.Event{Kind: appointments.EventUpdated, TenantID: "tenant-a", Appointment: appt})
	f.svc.Wait()

	assert.Empty(t, f.google.calls)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t, testConfig)
	f.connect(t)

	require.NoError(t, f.svc.Disconnect(context.Background(), "tenant-a"))
	_, err := f.tokens.Load(context.Background(), "tenant-a")
	assert.True(t, errors.Is(err, ErrNotConnected))
}
