package domain

import "time"

// DashboardPeriod selects the start-date window for dashboard aggregation.
type DashboardPeriod string

const (
	PeriodToday   DashboardPeriod = "today"
	PeriodWeekly  DashboardPeriod = "weekly"
	PeriodMonthly DashboardPeriod = "monthly"
	PeriodYearly  DashboardPeriod = "yearly"
	PeriodAll     DashboardPeriod = ""
)

// PeriodStart returns the inclusive lower bound for the period relative to
// now, in now's location. The weekly boundary is the most recent Sunday at
// midnight; an unknown or empty period means all-time (unix epoch).
func PeriodStart(period DashboardPeriod, now time.Time) time.Time {
	year, month, day := now.Date()
	loc := now.Location()

	switch period {
	case PeriodToday:
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	case PeriodWeekly:
		midnight := time.Date(year, month, day, 0, 0, 0, 0, loc)
		return midnight.AddDate(0, 0, -int(now.Weekday()))
	case PeriodMonthly:
		return time.Date(year, month, 1, 0, 0, 0, 0, loc)
	case PeriodYearly:
		return time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	default:
		return time.Unix(0, 0)
	}
}
