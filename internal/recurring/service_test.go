package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
)

// 2030-01-01 is a Tuesday.
var baseNow = time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC)

func day(month time.Month, d int) time.Time {
	return time.Date(2030, month, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc      *Service
	appts    *appointments.InMemoryRepository
	patients *patients.InMemoryRepository
	patient  *patients.Patient
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		appts:    appointments.NewInMemoryRepository(),
		patients: patients.NewInMemoryRepository(),
		now:      baseNow,
	}
	f.svc = NewService(NewInMemoryRepository(), f.appts, f.patients, nil, nil,
		WithClock(func() time.Time { return f.now }),
	)
	f.patient = &patients.Patient{TenantID: "tenant-a", PetName: "Rex", Species: "dog", OwnerFirstName: "Ana", OwnerLastName: "Smith"}
	require.NoError(t, f.patients.Create(context.Background(), f.patient))
	return f
}

func (f *fixture) scheduled(t *testing.T) []*appointments.Appointment {
	t.Helper()
	list, err := f.appts.List(context.Background(), "tenant-a", appointments.ListFilter{Limit: 500})
	require.NoError(t, err)
	return list
}

func TestCreate_ExpandsWeeklyWithinHorizon(t *testing.T) {
	f := newFixture(t)
	f.svc.horizonDays = 28

	tmpl, res, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "weekly",
		StartDate: day(time.January, 2),
		TimeOfDay: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Generated)
	assert.Equal(t, 1, tmpl.Interval)
	assert.Equal(t, 30, tmpl.DurationMinutes)
	require.NotNil(t, tmpl.LastGenerated)

	list := f.scheduled(t)
	require.Len(t, list, 4)
	for i, a := range list {
		assert.True(t, a.AppointmentTime.Equal(time.Date(2030, 1, 2+7*i, 10, 0, 0, 0, time.UTC)), a.AppointmentTime.String())
		require.NotNil(t, a.RecurringAppointmentID)
		assert.Equal(t, tmpl.ID, *a.RecurringAppointmentID)
		assert.Equal(t, appointments.StatusScheduled, a.Status)
	}
}

func TestExpand_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.svc.horizonDays = 7

	tmpl, first, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "daily",
		StartDate: day(time.January, 2),
		TimeOfDay: "09:30",
	})
	require.NoError(t, err)
	assert.Equal(t, 6, first.Generated)

	second, err := f.svc.Expand(context.Background(), "tenant-a", tmpl.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Len(t, f.scheduled(t), 6)
}

func TestExpand_SkipsConflicts(t *testing.T) {
	f := newFixture(t)
	f.svc.horizonDays = 28

	other := &patients.Patient{TenantID: "tenant-a", PetName: "Milo", Species: "cat", OwnerFirstName: "Bo", OwnerLastName: "Lee"}
	require.NoError(t, f.patients.Create(context.Background(), other))
	require.NoError(t, f.appts.Insert(context.Background(), &appointments.Appointment{
		TenantID:        "tenant-a",
		PatientID:       other.ID,
		AppointmentTime: time.Date(2030, 1, 9, 10, 15, 0, 0, time.UTC),
		DurationMinutes: 30,
		Status:          appointments.StatusScheduled,
	}))

	_, res, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "weekly",
		StartDate: day(time.January, 2),
		TimeOfDay: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Generated)
	assert.Equal(t, 1, res.SkippedConflicts)
}

func TestExpand_MonthlyClampsToMonthEnd(t *testing.T) {
	f := newFixture(t)
	f.svc.horizonDays = 120

	_, res, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "monthly",
		StartDate: day(time.January, 31),
		TimeOfDay: "11:00",
	})
	require.NoError(t, err)
	require.Equal(t, 4, res.Generated)

	want := []time.Time{day(time.January, 31), day(time.February, 28), day(time.March, 31), day(time.April, 30)}
	for i, a := range f.scheduled(t) {
		assert.True(t, a.AppointmentTime.Equal(want[i].Add(11*time.Hour)), a.AppointmentTime.String())
	}
}

func TestExpand_RespectsEndDate(t *testing.T) {
	f := newFixture(t)
	end := day(time.January, 10)

	_, res, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "daily",
		Interval:  3,
		StartDate: day(time.January, 2),
		EndDate:   &end,
		TimeOfDay: "14:00",
	})
	require.NoError(t, err)
	// Jan 2, 5, 8.
	assert.Equal(t, 3, res.Generated)
}

func TestExpand_IncludesOccurrenceOnEndDate(t *testing.T) {
	f := newFixture(t)
	end := day(time.January, 8)

	_, res, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "daily",
		Interval:  3,
		StartDate: day(time.January, 2),
		EndDate:   &end,
		TimeOfDay: "14:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Generated)

	list := f.scheduled(t)
	require.Len(t, list, 3)
	assert.True(t, list[2].AppointmentTime.Equal(time.Date(2030, 1, 8, 14, 0, 0, 0, time.UTC)), list[2].AppointmentTime.String())
}

type recordingPublisher struct {
	kinds []appointments.EventKind
	times []time.Time
}

func (p *recordingPublisher) Publish(_ context.Context, kind appointments.EventKind, appt *appointments.Appointment) {
	p.kinds = append(p.kinds, kind)
	p.times = append(p.times, appt.AppointmentTime)
}

func TestExpand_PublishesGeneratedOccurrences(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	WithPublisher(pub)(f.svc)
	f.svc.horizonDays = 14

	tmpl, res, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "weekly",
		StartDate: day(time.January, 2),
		TimeOfDay: "10:00",
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Generated)
	assert.Equal(t, []appointments.EventKind{appointments.EventCreated, appointments.EventCreated}, pub.kinds)
	assert.True(t, pub.times[0].Equal(time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)))

	// Nothing new on a repeat run, so nothing is announced.
	_, err = f.svc.Expand(context.Background(), "tenant-a", tmpl.ID, 14)
	require.NoError(t, err)
	assert.Len(t, pub.kinds, 2)
}

func TestExpand_SkipsPastOccurrencesAndOutsideHours(t *testing.T) {
	f := newFixture(t)
	f.svc.horizonDays = 7

	tmpl, _, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "daily",
		StartDate: day(time.January, 2),
		TimeOfDay: "16:45",
	})
	require.NoError(t, err)
	assert.Empty(t, f.scheduled(t))

	// A week later the first occurrences are in the past and are not counted.
	f.now = baseNow.AddDate(0, 0, 7)
	duration := 15
	_, err = f.svc.Update(context.Background(), "tenant-a", tmpl.ID, UpdateInput{DurationMinutes: &duration})
	require.NoError(t, err)
	res, err := f.svc.Expand(context.Background(), "tenant-a", tmpl.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Generated)
	assert.Equal(t, 0, res.SkippedOutsideHours)
}

func TestExpand_InactiveGeneratesNothing(t *testing.T) {
	f := newFixture(t)
	f.svc.horizonDays = 7

	tmpl, _, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "weekly",
		StartDate: day(time.January, 2),
		TimeOfDay: "10:00",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(context.Background(), "tenant-a", tmpl.ID))

	got, err := f.svc.Get(context.Background(), "tenant-a", tmpl.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	res, err := f.svc.Expand(context.Background(), "tenant-a", tmpl.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Generated)

	active, err := f.svc.List(context.Background(), "tenant-a", ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   CreateInput
	}{
		{"bad time", CreateInput{PatientID: f.patient.ID, Pattern: "daily", StartDate: day(time.January, 2), TimeOfDay: "9am"}},
		{"bad pattern", CreateInput{PatientID: f.patient.ID, Pattern: "hourly", StartDate: day(time.January, 2), TimeOfDay: "09:00"}},
		{"negative interval", CreateInput{PatientID: f.patient.ID, Pattern: "daily", Interval: -1, StartDate: day(time.January, 2), TimeOfDay: "09:00"}},
		{"past start", CreateInput{PatientID: f.patient.ID, Pattern: "daily", StartDate: baseNow.Add(-time.Hour), TimeOfDay: "09:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.Create(context.Background(), "tenant-a", tc.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, _, err := f.svc.Create(context.Background(), "tenant-b", CreateInput{
		PatientID: f.patient.ID, Pattern: "daily", StartDate: day(time.January, 2), TimeOfDay: "09:00",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExpand_HorizonLimit(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Expand(context.Background(), "tenant-a", "anything", MaxHorizonDays+1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestExpandAll(t *testing.T) {
	f := newFixture(t)
	f.svc.horizonDays = 14
	tmpl, _, err := f.svc.Create(context.Background(), "tenant-a", CreateInput{
		PatientID: f.patient.ID,
		Pattern:   "weekly",
		StartDate: day(time.January, 2),
		TimeOfDay: "10:00",
	})
	require.NoError(t, err)

	f.svc.horizonDays = 28
	generated, err := f.svc.ExpandAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, generated)

	got, err := f.svc.Get(context.Background(), "tenant-a", tmpl.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastGenerated)
}
