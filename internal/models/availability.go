package models

import "time"

// AvailabilityWindow is a weekly recurring window during which an employee
// may be dispatched. Minutes are offsets from midnight local time.
type AvailabilityWindow struct {
	ID          string    `db:"id" json:"id"`
	EmployeeID  string    `db:"employee_id" json:"employee_id"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether the window admits the given start time.
func (w AvailabilityWindow) Covers(start time.Time) bool {
	if !w.Active {
		return false
	}
	if DayName(start.Weekday()) != w.DayOfWeek {
		return false
	}
	minute := start.Hour()*60 + start.Minute()
	return minute >= w.StartMinute && minute < w.EndMinute
}

// TimeOffInterval is an inclusive date range during which an employee is off.
type TimeOffInterval struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Contains reports whether the given date falls inside the interval. Both
// endpoints are inclusive and comparison is by calendar date.
func (t TimeOffInterval) Contains(date time.Time) bool {
	day := DateOnly(date)
	return !day.Before(DateOnly(t.StartDate)) && !day.After(DateOnly(t.EndDate))
}

// DateOnly truncates a timestamp to midnight in its own location.
func DateOnly(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// DateKey renders a timestamp as the canonical calendar-date string used for
// conflict grouping.
func DateKey(ts time.Time) string {
	return ts.Format("2006-01-02")
}

var dayNames = map[time.Weekday]string{
	time.Monday:    "MONDAY",
	time.Tuesday:   "TUESDAY",
	time.Wednesday: "WEDNESDAY",
	time.Thursday:  "THURSDAY",
	time.Friday:    "FRIDAY",
	time.Saturday:  "SATURDAY",
	time.Sunday:    "SUNDAY",
}

// DayName maps a weekday onto the uppercase form stored in availability rows.
func DayName(day time.Weekday) string {
	return dayNames[day]
}
