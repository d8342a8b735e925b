package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// 2030-01-01 is a Tuesday.
var baseNow = time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC)

func tomorrowAt(hour, minute int) time.Time {
	return time.Date(2030, time.January, 2, hour, minute, 0, 0, time.UTC)
}

type fakeNotifier struct {
	mu            sync.Mutex
	confirmations []notify.AppointmentNotice
	cancellations []notify.AppointmentNotice
	reminders     []notify.AppointmentNotice
	reminderRes   notify.ReminderResult
	reminderErr   error
}

func (f *fakeNotifier) SendConfirmation(ctx context.Context, n notify.AppointmentNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, n)
}

func (f *fakeNotifier) SendCancellation(ctx context.Context, n notify.AppointmentNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellations = append(f.cancellations, n)
}

func (f *fakeNotifier) SendReminder(ctx context.Context, n notify.AppointmentNotice, hours int) (notify.ReminderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, n)
	return f.reminderRes, f.reminderErr
}

type fixture struct {
	svc      *Service
	repo     *InMemoryRepository
	patients *patients.InMemoryRepository
	notifier *fakeNotifier
	now      time.Time
	patient  *patients.Patient

	eventsMu sync.Mutex
	events   []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     NewInMemoryRepository(),
		patients: patients.NewInMemoryRepository(),
		notifier: &fakeNotifier{reminderRes: notify.ReminderResult{Sent: true, Message: "reminder sent"}},
		now:      baseNow,
	}
	f.svc = NewService(f.repo, f.patients, nil, nil,
		WithNotifier(f.notifier),
		WithClock(func() time.Time { return f.now }),
	)
	f.svc.AddListener(ListenerFunc(func(ctx context.Context, evt Event) {
		f.eventsMu.Lock()
		defer f.eventsMu.Unlock()
		f.events = append(f.events, evt)
	}))
	f.patient = f.addPatient(t, "tenant-a", "Rex")
	return f
}

func (f *fixture) addPatient(t *testing.T, tenantID, name string) *patients.Patient {
	t.Helper()
	p := &patients.Patient{
		TenantID:       tenantID,
		PetName:        name,
		Species:        "dog",
		OwnerFirstName: "Ana",
		OwnerLastName:  "Smith",
		OwnerEmail:     "ana@example.com",
	}
	require.NoError(t, f.patients.Create(context.Background(), p))
	return p
}

func (f *fixture) book(t *testing.T, start time.Time, minutes int) *Appointment {
	t.Helper()
	appt, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID:       f.patient.ID,
		AppointmentTime: start,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return appt
}

func TestCreate_BusinessHoursBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		ok    bool
	}{
		{"ends exactly at close", tomorrowAt(16, 30), true},
		{"ends one minute past close", tomorrowAt(16, 31), false},
		{"starts before open", tomorrowAt(8, 59), false},
		{"starts at open", tomorrowAt(9, 0), true},
		{"starts at close", tomorrowAt(17, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
				PatientID:       f.patient.ID,
				AppointmentTime: tc.start,
				DurationMinutes: 30,
			})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperr.ErrValidation)
			}
		})
	}
}

func TestCreate_DefaultsAndNotifies(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID:       f.patient.ID,
		AppointmentTime: tomorrowAt(10, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, DefaultDurationMinutes, appt.DurationMinutes)
	assert.NotEmpty(t, appt.ID)
	require.Len(t, f.notifier.confirmations, 1)
	assert.Equal(t, "Rex", f.notifier.confirmations[0].PetName)
	require.Len(t, f.events, 1)
	assert.Equal(t, EventCreated, f.events[0].Kind)
}

func TestCreate_RejectsPastTime(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID:       f.patient.ID,
		AppointmentTime: baseNow.Add(-24 * time.Hour).Add(2 * time.Hour),
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, ErrNotFuture)
	assert.Empty(t, f.notifier.confirmations)
}

func TestCreate_RejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.book(t, tomorrowAt(10, 0), 30)

	_, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID:       f.patient.ID,
		AppointmentTime: tomorrowAt(10, 15),
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)

	// Touching endpoints do not conflict.
	f.book(t, tomorrowAt(10, 30), 30)
}

func TestCreate_CancelledSlotIsFree(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, tomorrowAt(11, 0), 60)
	_, err := f.svc.Cancel(context.Background(), "tenant-a", first.ID)
	require.NoError(t, err)

	f.book(t, tomorrowAt(11, 0), 60)
}

func TestCreate_TenantIsolation(t *testing.T) {
	f := newFixture(t)
	f.book(t, tomorrowAt(10, 0), 30)

	other := f.addPatient(t, "tenant-b", "Milo")
	appt, err := f.svc.Create(context.Background(), "tenant-b", CreateInput{
		PatientID:       other.ID,
		AppointmentTime: tomorrowAt(10, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "tenant-a", appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Create(context.Background(), "tenant-b", CreateInput{
		PatientID:       f.patient.ID,
		AppointmentTime: tomorrowAt(14, 0),
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate_ConcurrentBookingsOneWins(t *testing.T) {
	f := newFixture(t)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
				PatientID:       f.patient.ID,
				AppointmentTime: tomorrowAt(13, 0),
				DurationMinutes: 30,
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestCreate_UsesTenantTimezone(t *testing.T) {
	f := newFixture(t)
	est := time.FixedZone("EST", -5*3600)
	f.svc.hours = scheduling.FixedHours(scheduling.StandardHours(est))

	// 14:00 UTC is 09:00 EST.
	_, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID:       f.patient.ID,
		AppointmentTime: tomorrowAt(14, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)

	// 10:00 UTC is 05:00 EST.
	_, err = f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID:       f.patient.ID,
		AppointmentTime: tomorrowAt(10, 0),
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdate_RescheduleExcludesSelf(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)

	longer := 45
	updated, err := f.svc.Update(context.Background(), "tenant-a", appt.ID, UpdateInput{DurationMinutes: &longer})
	require.NoError(t, err)
	assert.Equal(t, 45, updated.DurationMinutes)
}

func TestUpdate_RescheduleIntoConflict(t *testing.T) {
	f := newFixture(t)
	f.book(t, tomorrowAt(10, 0), 30)
	second := f.book(t, tomorrowAt(11, 0), 30)

	moved := tomorrowAt(10, 15)
	_, err := f.svc.Update(context.Background(), "tenant-a", second.ID, UpdateInput{AppointmentTime: &moved})
	assert.ErrorIs(t, err, ErrSlotTaken)

	stored, err := f.svc.Get(context.Background(), "tenant-a", second.ID)
	require.NoError(t, err)
	assert.True(t, stored.AppointmentTime.Equal(tomorrowAt(11, 0)))
}

func TestUpdate_RescheduleRequiresScheduled(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)
	f.now = tomorrowAt(12, 0)
	_, err := f.svc.MarkNoShow(context.Background(), "tenant-a", appt.ID)
	require.NoError(t, err)

	moved := tomorrowAt(10, 0).AddDate(0, 0, 2)
	_, err = f.svc.Update(context.Background(), "tenant-a", appt.ID, UpdateInput{AppointmentTime: &moved})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	stored, err := f.svc.Get(context.Background(), "tenant-a", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, stored.Status)
	assert.True(t, stored.AppointmentTime.Equal(tomorrowAt(10, 0)))
}

func TestUpdate_NotesOnlySkipsScheduleChecks(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)
	f.now = tomorrowAt(12, 0)

	notes := "ate a sock"
	updated, err := f.svc.Update(context.Background(), "tenant-a", appt.ID, UpdateInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "ate a sock", updated.Notes)
}

func TestUpdate_StatusTransitions(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)

	completed := StatusCompleted
	updated, err := f.svc.Update(context.Background(), "tenant-a", appt.ID, UpdateInput{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	scheduled := StatusScheduled
	_, err = f.svc.Update(context.Background(), "tenant-a", appt.ID, UpdateInput{Status: &scheduled})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdate_StatusCancelledNotifies(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)

	cancelled := StatusCancelled
	_, err := f.svc.Update(context.Background(), "tenant-a", appt.ID, UpdateInput{Status: &cancelled})
	require.NoError(t, err)
	assert.Len(t, f.notifier.cancellations, 1)
	assert.Equal(t, EventCancelled, f.events[len(f.events)-1].Kind)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	notes := "x"
	_, err := f.svc.Update(context.Background(), "tenant-a", "missing", UpdateInput{Notes: &notes})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)

	first, err := f.svc.Cancel(context.Background(), "tenant-a", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, first.Status)

	second, err := f.svc.Cancel(context.Background(), "tenant-a", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, second.Status)
	assert.Len(t, f.notifier.cancellations, 1)
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)

	_, err := f.svc.MarkNoShow(context.Background(), "tenant-a", appt.ID)
	assert.ErrorIs(t, err, ErrFutureNoShow)

	f.now = tomorrowAt(10, 5)
	marked, err := f.svc.MarkNoShow(context.Background(), "tenant-a", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, marked.Status)

	_, err = f.svc.MarkNoShow(context.Background(), "tenant-a", appt.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_show")
}

func TestSendReminder(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)

	res, err := f.svc.SendReminder(context.Background(), "tenant-a", appt.ID, 0)
	require.NoError(t, err)
	assert.True(t, res.Sent)

	stored, err := f.svc.Get(context.Background(), "tenant-a", appt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReminderSentAt)
	assert.True(t, stored.ReminderSentAt.Equal(baseNow))
}

func TestSendReminder_SoftFailureLeavesStamp(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)
	f.notifier.reminderRes = notify.ReminderResult{Sent: false, Message: "patient has no contact email; reminder not sent"}

	res, err := f.svc.SendReminder(context.Background(), "tenant-a", appt.ID, 24)
	require.NoError(t, err)
	assert.False(t, res.Sent)

	stored, _ := f.svc.Get(context.Background(), "tenant-a", appt.ID)
	assert.Nil(t, stored.ReminderSentAt)
}

func TestSendReminder_RequiresScheduled(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)
	_, err := f.svc.Cancel(context.Background(), "tenant-a", appt.ID)
	require.NoError(t, err)

	_, err = f.svc.SendReminder(context.Background(), "tenant-a", appt.ID, 24)
	assert.ErrorIs(t, err, ErrReminderStatus)
}

func TestSendReminder_NotConfigured(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)
	f.svc.notifier = nil

	_, err := f.svc.SendReminder(context.Background(), "tenant-a", appt.ID, 24)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestSendReminder_NotifierError(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, tomorrowAt(10, 0), 30)
	f.notifier.reminderErr = errors.New("provider down")

	_, err := f.svc.SendReminder(context.Background(), "tenant-a", appt.ID, 24)
	assert.Error(t, err)
}

func TestList_FiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	late := f.book(t, tomorrowAt(15, 0), 30)
	early := f.book(t, tomorrowAt(9, 0), 30)
	_, err := f.svc.Cancel(context.Background(), "tenant-a", late.ID)
	require.NoError(t, err)

	all, err := f.svc.List(context.Background(), "tenant-a", ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early.ID, all[0].ID)

	scheduled, err := f.svc.List(context.Background(), "tenant-a", ListFilter{Status: StatusScheduled})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, early.ID, scheduled[0].ID)

	from := tomorrowAt(12, 0)
	later, err := f.svc.List(context.Background(), "tenant-a", ListFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, late.ID, later[0].ID)

	_, err = f.svc.List(context.Background(), "tenant-a", ListFilter{Status: Status("pending")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
