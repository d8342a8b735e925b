// Package stats computes read-only scheduling aggregates for dashboards.
package stats

import (
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// DefaultFlatFee is the placeholder price of a completed visit.
const DefaultFlatFee = 50.0

// Windows are the clinic-local boundaries the counts are bucketed by.
type Windows struct {
	Now        time.Time
	Today      scheduling.Interval
	WeekStart  time.Time
	MonthStart time.Time
}

// WindowsAt computes the buckets for now in loc.
func WindowsAt(now time.Time, loc *time.Location) Windows {
	return Windows{
		Now:        now.UTC(),
		Today:      scheduling.DayRange(now, loc),
		WeekStart:  scheduling.StartOfWeek(now, loc),
		MonthStart: scheduling.StartOfMonth(now, loc),
	}
}

// Snapshot holds the raw counts both views are derived from.
type Snapshot struct {
	Total              int
	Scheduled          int
	Completed          int
	Cancelled          int
	NoShow             int
	Upcoming           int
	ThisMonth          int
	ThisWeek           int
	Today              int
	TodayCompleted     int
	CompletedThisMonth int
	AverageDuration    *float64

	Patients          int
	PatientsThisMonth int
}

// AppointmentStats is the appointment analytics view.
type AppointmentStats struct {
	Total                  int      `json:"total_appointments"`
	Scheduled              int      `json:"scheduled_count"`
	Completed              int      `json:"completed_count"`
	Cancelled              int      `json:"cancelled_count"`
	NoShow                 int      `json:"no_show_count"`
	NoShowRate             float64  `json:"no_show_rate"`
	Upcoming               int      `json:"upcoming_appointments"`
	ThisMonth              int      `json:"appointments_this_month"`
	ThisWeek               int      `json:"appointments_this_week"`
	Today                  int      `json:"appointments_today"`
	AverageDurationMinutes *float64 `json:"average_duration_minutes"`
}

// DashboardStats is the front-page summary.
type DashboardStats struct {
	TotalPatients       int     `json:"total_patients"`
	PatientsThisMonth   int     `json:"patients_this_month"`
	TodayAppointments   int     `json:"today_appointments"`
	TodayCompleted      int     `json:"today_completed"`
	PendingAppointments int     `json:"pending_appointments"`
	RevenueThisMonth    float64 `json:"revenue_this_month"`
}

// NoShowRate is no-shows as a percentage of attended plus missed visits,
// 0 when there are neither.
func NoShowRate(completed, noShow int) float64 {
	denom := completed + noShow
	if denom == 0 {
		return 0
	}
	return float64(noShow) / float64(denom) * 100
}

func (s Snapshot) appointmentStats() AppointmentStats {
	return AppointmentStats{
		Total:                  s.Total,
		Scheduled:              s.Scheduled,
		Completed:              s.Completed,
		Cancelled:              s.Cancelled,
		NoShow:                 s.NoShow,
		NoShowRate:             NoShowRate(s.Completed, s.NoShow),
		Upcoming:               s.Upcoming,
		ThisMonth:              s.ThisMonth,
		ThisWeek:               s.ThisWeek,
		Today:                  s.Today,
		AverageDurationMinutes: s.AverageDuration,
	}
}

func (s Snapshot) dashboardStats(fee float64) DashboardStats {
	return DashboardStats{
		TotalPatients:       s.Patients,
		PatientsThisMonth:   s.PatientsThisMonth,
		TodayAppointments:   s.Today,
		TodayCompleted:      s.TodayCompleted,
		PendingAppointments: s.Upcoming,
		RevenueThisMonth:    float64(s.CompletedThisMonth) * fee,
	}
}
