// Package calendar pushes appointments to a clinic's Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/tenants"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var tracer = otel.Tracer("vetclinic.internal.calendar")

// DefaultCalendarID is used when a tenant has not picked a calendar.
const DefaultCalendarID = "primary"

var ErrNotConfigured = apperr.Configuration("Google Calendar integration not configured")

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// StateSecret signs the OAuth state parameter.
	StateSecret []byte
}

// Enabled reports whether every OAuth field is set.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != "" && len(c.StateSecret) > 0
}

// Appointments is the slice of the appointment service the sync needs.
type Appointments interface {
	Get(ctx context.Context, tenantID, id string) (*appointments.Appointment, error)
	SetCalendarEventID(ctx context.Context, tenantID, id string, eventID *string) error
}

// TenantFinder resolves the tenant's configured calendar.
type TenantFinder interface {
	Get(ctx context.Context, id string) (*tenants.Tenant, error)
}

// SyncResult describes the event an appointment was written to.
type SyncResult struct {
	EventID  string `json:"event_id"`
	HTMLLink string `json:"html_link,omitempty"`
	Created  bool   `json:"created"`
}

// Service runs the OAuth flow and keeps events in step with appointments.
type Service struct {
	oauth       *oauth2.Config
	stateSecret []byte
	tokens      TokenStore
	appts       Appointments
	patients    appointments.PatientFinder
	tenants     TenantFinder
	apiOptions  []option.ClientOption
	logger      *logging.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

type Option func(*Service)

func WithTenants(t TenantFinder) Option {
	return func(s *Service) { s.tenants = t }
}

// WithOAuthEndpoint points the token exchange somewhere other than Google.
func WithOAuthEndpoint(e oauth2.Endpoint) Option {
	return func(s *Service) {
		if s.oauth != nil {
			s.oauth.Endpoint = e
		}
	}
}

// WithAPIOptions appends client options to every Calendar API client.
func WithAPIOptions(opts ...option.ClientOption) Option {
	return func(s *Service) { s.apiOptions = append(s.apiOptions, opts...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the calendar integration. With an incomplete Config
// every OAuth operation returns ErrNotConfigured.
func NewService(cfg Config, tokens TokenStore, appts Appointments, patients appointments.PatientFinder, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		tokens:   tokens,
		appts:    appts,
		patients: patients,
		logger:   logger,
		now:      time.Now,
	}
	if cfg.Enabled() {
		s.stateSecret = cfg.StateSecret
		s.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendarapi.CalendarScope},
			Endpoint:     google.Endpoint,
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether OAuth credentials were supplied.
func (s *Service) Configured() bool { return s.oauth != nil }

// AuthorizeURL returns the Google consent URL for a tenant.
func (s *Service) AuthorizeURL(ctx context.Context, tenantID string) (string, error) {
	if s.oauth == nil {
		return "", ErrNotConfigured
	}
	state, err := signState(s.stateSecret, tenantID, s.now())
	if err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// Callback completes the OAuth flow and stores the tenant's token. It
// returns the tenant the state was issued for.
func (s *Service) Callback(ctx context.Context, code, state string) (string, error) {
	if s.oauth == nil {
		return "", ErrNotConfigured
	}
	if code == "" {
		return "", apperr.Validation("authorization code is required")
	}
	tenantID, err := parseState(s.stateSecret, state, s.now())
	if err != nil {
		return "", err
	}
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return "", apperr.Validation("authorization failed: %s", rerr.ErrorCode)
		}
		return "", fmt.Errorf("calendar: exchange code: %w", err)
	}
	if err := s.tokens.Save(ctx, tenantID, tok); err != nil {
		return "", err
	}
	s.logger.Info("calendar: connected", "tenant_id", tenantID)
	return tenantID, nil
}

// Sync creates or updates the event for an appointment and records its id.
func (s *Service) Sync(ctx context.Context, tenantID, appointmentID string) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "calendar.sync", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("vetclinic.tenant_id", tenantID),
		attribute.String("vetclinic.appointment_id", appointmentID),
	)

	if s.oauth == nil {
		return nil, ErrNotConfigured
	}
	appt, err := s.appts.Get(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, tenantID, appt.PatientID)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	api, ts, err := s.client(ctx, tok)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer s.persistRefreshed(ctx, tenantID, tok, ts)

	calID := s.calendarID(ctx, tenantID)
	ev := buildEvent(appt, p.PetName)

	if appt.CalendarEventID != nil && *appt.CalendarEventID != "" {
		updated, err := api.Events.Update(calID, *appt.CalendarEventID, ev).Context(ctx).Do()
		switch {
		case err == nil:
			return &SyncResult{EventID: updated.Id, HTMLLink: updated.HtmlLink}, nil
		case !isGone(err):
			span.RecordError(err)
			return nil, fmt.Errorf("calendar: update event: %w", err)
		}
		s.logger.Warn("calendar: event missing upstream, recreating", "tenant_id", tenantID, "appointment_id", appt.ID)
	}

	created, err := api.Events.Insert(calID, ev).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calendar: insert event: %w", err)
	}
	if err := s.appts.SetCalendarEventID(ctx, tenantID, appt.ID, &created.Id); err != nil {
		return nil, err
	}
	s.logger.Info("calendar: appointment synced", "tenant_id", tenantID, "appointment_id", appt.ID, "event_id", created.Id)
	return &SyncResult{EventID: created.Id, HTMLLink: created.HtmlLink, Created: true}, nil
}

// Disconnect forgets the tenant's token.
func (s *Service) Disconnect(ctx context.Context, tenantID string) error {
	if err := s.tokens.Delete(ctx, tenantID); err != nil {
		return err
	}
	s.logger.Info("calendar: disconnected", "tenant_id", tenantID)
	return nil
}

// AppointmentChanged removes the calendar event of a cancelled appointment.
// Failures are logged only.
func (s *Service) AppointmentChanged(ctx context.Context, evt appointments.Event) {
	if evt.Kind != appointments.EventCancelled || s.oauth == nil {
		return
	}
	eventID := evt.Appointment.CalendarEventID
	if eventID == nil || *eventID == "" {
		return
	}
	s.wg.Add(1)
	go func(ctx context.Context) {
		defer s.wg.Done()
		s.removeEvent(ctx, evt.TenantID, evt.Appointment.ID, *eventID)
	}(context.WithoutCancel(ctx))
}

// Wait blocks until background event removals finish.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) removeEvent(ctx context.Context, tenantID, appointmentID, eventID string) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tok, err := s.tokens.Load(ctx, tenantID)
	if errors.Is(err, ErrNotConnected) {
		return
	}
	if err != nil {
		s.logger.Warn("calendar: load token failed", "tenant_id", tenantID, "error", err)
		return
	}
	api, ts, err := s.client(ctx, tok)
	if err != nil {
		s.logger.Warn("calendar: client init failed", "tenant_id", tenantID, "error", err)
		return
	}
	defer s.persistRefreshed(ctx, tenantID, tok, ts)

	err = api.Events.Delete(s.calendarID(ctx, tenantID), eventID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		s.logger.Warn("calendar: delete event failed", "tenant_id", tenantID, "event_id", eventID, "error", err)
		return
	}
	if err := s.appts.SetCalendarEventID(ctx, tenantID, appointmentID, nil); err != nil {
		s.logger.Warn("calendar: clear event id failed", "tenant_id", tenantID, "appointment_id", appointmentID, "error", err)
		return
	}
	s.logger.Info("calendar: event removed", "tenant_id", tenantID, "appointment_id", appointmentID, "event_id", eventID)
}

func (s *Service) client(ctx context.Context, tok *oauth2.Token) (*calendarapi.Service, oauth2.TokenSource, error) {
	ts := s.oauth.TokenSource(ctx, tok)
	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, s.apiOptions...)
	api, err := calendarapi.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("calendar: new client: %w", err)
	}
	return api, ts, nil
}

// persistRefreshed saves the token when the client had to refresh it.
func (s *Service) persistRefreshed(ctx context.Context, tenantID string, old *oauth2.Token, ts oauth2.TokenSource) {
	fresh, err := ts.Token()
	if err != nil || fresh.AccessToken == old.AccessToken {
		return
	}
	if err := s.tokens.Save(ctx, tenantID, fresh); err != nil {
		s.logger.Warn("calendar: save refreshed token failed", "tenant_id", tenantID, "error", err)
	}
}

func (s *Service) calendarID(ctx context.Context, tenantID string) string {
	if s.tenants == nil {
		return DefaultCalendarID
	}
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil || t.CalendarID == "" {
		return DefaultCalendarID
	}
	return t.CalendarID
}

func buildEvent(a *appointments.Appointment, petName string) *calendarapi.Event {
	description := a.Notes
	if description == "" {
		description = "Appointment for " + petName
	}
	return &calendarapi.Event{
		Summary:     "Appointment: " + petName,
		Description: description,
		Start: &calendarapi.EventDateTime{
			DateTime: a.AppointmentTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendarapi.EventDateTime{
			DateTime: a.End().UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		Reminders: &calendarapi.EventReminders{
			UseDefault: false,
			Overrides: []*calendarapi.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}
