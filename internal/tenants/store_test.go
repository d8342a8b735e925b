package tenants

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var columns = []string{"id", "name", "subdomain", "timezone", "closed_weekdays", "calendar_id", "is_active", "created_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestGetBySubdomain(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE subdomain = $1 AND is_active = TRUE")).
		WithArgs("happypaws").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("t-1", "Happy Paws", "happypaws", "America/Denver", "{0,6}", "", true, created))

	tenant, err := store.GetBySubdomain(context.Background(), "  HappyPaws ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant.ID != "t-1" || tenant.Name != "Happy Paws" {
		t.Fatalf("unexpected tenant %+v", tenant)
	}
	if len(tenant.ClosedWeekdays) != 2 || tenant.ClosedWeekdays[1] != 6 {
		t.Fatalf("expected closed weekdays [0 6], got %v", tenant.ClosedWeekdays)
	}
	hours := tenant.BusinessHours()
	if len(hours.ClosedWeekdays) != 2 || hours.ClosedWeekdays[0] != time.Sunday {
		t.Fatalf("expected sunday closed, got %v", hours.ClosedWeekdays)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetBySubdomainNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM tenants WHERE subdomain").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := store.GetBySubdomain(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAssignsDefaults(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO tenants").
		WithArgs(sqlmock.AnyArg(), "North Vet", "north", "UTC", sqlmock.AnyArg(), "", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tenant := &Tenant{Name: "North Vet", Subdomain: "North", IsActive: true}
	if err := store.Create(context.Background(), tenant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant.ID == "" || tenant.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be assigned")
	}
	if tenant.Subdomain != "north" {
		t.Fatalf("expected normalized subdomain, got %s", tenant.Subdomain)
	}
}

func TestListActive(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery("FROM tenants WHERE is_active = TRUE ORDER BY name").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("t-1", "A", "a", "UTC", nil, "", true, now).
			AddRow("t-2", "B", "b", "UTC", "{}", "primary", true, now))

	list, err := store.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[1].CalendarID != "primary" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestSetCalendarIDMissingTenant(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE tenants SET calendar_id").
		WithArgs("missing", "primary").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SetCalendarID(context.Background(), "missing", "primary"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocationFallback(t *testing.T) {
	tenant := &Tenant{Timezone: "Nowhere/Special"}
	if tenant.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
	var nilTenant *Tenant
	if nilTenant.Location() != time.UTC {
		t.Fatalf("expected UTC for nil tenant")
	}
}

func TestBusinessHoursResolvesTenantTimezone(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Berlin"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM tenants WHERE id = \\$1 AND is_active = TRUE").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("t-1", "A", "a", "Europe/Berlin", "{0}", "", true, time.Now()))

	hours, err := store.BusinessHours(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hours.Location.String() != "Europe/Berlin" {
		t.Fatalf("expected berlin, got %s", hours.Location)
	}
	if hours.OpenHour != 9 || hours.CloseHour != 17 {
		t.Fatalf("expected standard window, got %d-%d", hours.OpenHour, hours.CloseHour)
	}
}
