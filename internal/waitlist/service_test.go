package waitlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var baseNow = time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notify.AppointmentNotice
}

func (f *fakeNotifier) SendSlotOpened(_ context.Context, n notify.AppointmentNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

func (f *fakeNotifier) sent() []notify.AppointmentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.AppointmentNotice(nil), f.notices...)
}

type fixture struct {
	svc      *Service
	repo     *InMemoryRepository
	patients *patients.InMemoryRepository
	notifier *fakeNotifier
	rex      *patients.Patient
	milo     *patients.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     NewInMemoryRepository(),
		patients: patients.NewInMemoryRepository(),
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.repo, f.patients, nil, logging.Discard(),
		WithNotifier(f.notifier),
		WithClock(func() time.Time { return baseNow }),
	)
	f.rex = &patients.Patient{TenantID: "tenant-a", PetName: "Rex", Species: "dog", OwnerFirstName: "Ana", OwnerLastName: "Smith", OwnerEmail: "ana@example.com"}
	f.milo = &patients.Patient{TenantID: "tenant-a", PetName: "Milo", Species: "cat", OwnerFirstName: "Bo", OwnerLastName: "Lee", OwnerEmail: "bo@example.com"}
	require.NoError(t, f.patients.Create(context.Background(), f.rex))
	require.NoError(t, f.patients.Create(context.Background(), f.milo))
	return f
}

func jan(d int) time.Time {
	return time.Date(2030, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestAdd(t *testing.T) {
	f := newFixture(t)
	e, err := f.svc.Add(context.Background(), "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3), ContactPreference: "Email"})
	require.NoError(t, err)
	assert.True(t, e.IsActive)
	assert.Equal(t, 0, e.Priority)
	assert.Equal(t, ContactEmail, e.ContactPreference)
	assert.NotEmpty(t, e.ID)
}

func TestAdd_AllowsToday(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Add(context.Background(), "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(1)})
	require.NoError(t, err)
}

func TestAdd_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: "missing", DesiredDate: jan(3)})
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)

	_, err = f.svc.Add(ctx, "tenant-b", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3)})
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "other tenant: %v", err)

	_, err = f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: time.Date(2029, 12, 31, 12, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3), ContactPreference: "fax"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	start := time.Date(2030, 1, 3, 14, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3), PreferredTimeStart: &start, PreferredTimeEnd: &end})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAdd_DuplicateSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3)})
	require.NoError(t, err)

	_, err = f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3).Add(15 * time.Hour)})
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, "patient already has an active waitlist entry for this date", err.Error())

	_, err = f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(4)})
	assert.NoError(t, err)
	_, err = f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.milo.ID, DesiredDate: jan(3)})
	assert.NoError(t, err)
}

func TestAdd_AfterRemoveAllowsSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Remove(ctx, "tenant-a", e.ID))

	_, err = f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3)})
	assert.NoError(t, err)
}

func TestList_OrdersByPriorityThenAge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3)})
	require.NoError(t, err)
	high, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.milo.ID, DesiredDate: jan(3), Priority: 5})
	require.NoError(t, err)
	lowLater, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(4)})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, "tenant-a", ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{high.ID, low.ID, lowLater.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	list, err = f.svc.List(ctx, "tenant-a", ListFilter{ActiveOnly: true, PatientID: f.milo.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.List(ctx, "tenant-b", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFulfillAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3)})
	require.NoError(t, err)
	b, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.milo.ID, DesiredDate: jan(3)})
	require.NoError(t, err)

	done, err := f.svc.Fulfill(ctx, "tenant-a", a.ID)
	require.NoError(t, err)
	assert.False(t, done.IsActive)
	require.NotNil(t, done.FulfilledAt)
	assert.True(t, done.FulfilledAt.Equal(baseNow))

	require.NoError(t, f.svc.Remove(ctx, "tenant-a", b.ID))
	removed, err := f.svc.Get(ctx, "tenant-a", b.ID)
	require.NoError(t, err)
	assert.False(t, removed.IsActive)
	assert.Nil(t, removed.FulfilledAt)

	active, err := f.svc.List(ctx, "tenant-a", ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.svc.Fulfill(ctx, "tenant-b", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_Partial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3), Notes: "mornings"})
	require.NoError(t, err)

	prio := 3
	sms := "sms"
	updated, err := f.svc.Update(ctx, "tenant-a", e.ID, UpdateInput{Priority: &prio, ContactPreference: &sms})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Priority)
	assert.Equal(t, ContactSMS, updated.ContactPreference)
	assert.Equal(t, "mornings", updated.Notes)

	past := jan(1).Add(-time.Hour)
	_, err = f.svc.Update(ctx, "tenant-a", e.ID, UpdateInput{DesiredDate: &past})
	assert.ErrorIs(t, err, ErrPastDate)
}

func TestNotifyNext_PicksHighestPriorityUnnotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3)})
	require.NoError(t, err)
	high, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.milo.ID, DesiredDate: jan(3), Priority: 2})
	require.NoError(t, err)

	freed := &appointments.Appointment{ID: "appt-1", TenantID: "tenant-a", AppointmentTime: time.Date(2030, 1, 3, 10, 0, 0, 0, time.UTC), DurationMinutes: 30}
	got, err := f.svc.NotifyNext(ctx, "tenant-a", freed)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, high.ID, got.ID)
	require.NotNil(t, got.NotifiedAt)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bo@example.com", sent[0].OwnerEmail)
	assert.Equal(t, "Milo", sent[0].PetName)
	assert.True(t, sent[0].Start.Equal(freed.AppointmentTime))

	// the notified entry is not offered twice
	got, err = f.svc.NotifyNext(ctx, "tenant-a", freed)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.rex.ID, got.PatientID)

	got, err = f.svc.NotifyNext(ctx, "tenant-a", freed)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNotifyNext_PhonePreferenceSkipsEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.rex.ID, DesiredDate: jan(3), ContactPreference: "phone"})
	require.NoError(t, err)

	freed := &appointments.Appointment{ID: "appt-1", TenantID: "tenant-a", AppointmentTime: time.Date(2030, 1, 3, 10, 0, 0, 0, time.UTC), DurationMinutes: 30}
	got, err := f.svc.NotifyNext(ctx, "tenant-a", freed)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.NotifiedAt)
	assert.Empty(t, f.notifier.sent())
}

func TestCancellationOffersSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appts := appointments.NewService(appointments.NewInMemoryRepository(), f.patients, nil, logging.Discard(),
		appointments.WithClock(func() time.Time { return baseNow }),
	)
	appts.AddListener(f.svc)

	booked, err := appts.Create(ctx, "tenant-a", appointments.CreateInput{
		PatientID:       f.rex.ID,
		AppointmentTime: time.Date(2030, 1, 3, 11, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	waiting, err := f.svc.Add(ctx, "tenant-a", AddInput{PatientID: f.milo.ID, DesiredDate: jan(3)})
	require.NoError(t, err)

	_, err = appts.Cancel(ctx, "tenant-a", booked.ID)
	require.NoError(t, err)
	f.svc.Wait()

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, booked.ID, sent[0].AppointmentID)

	e, err := f.svc.Get(ctx, "tenant-a", waiting.ID)
	require.NoError(t, err)
	assert.NotNil(t, e.NotifiedAt)
	assert.True(t, e.IsActive)
}
