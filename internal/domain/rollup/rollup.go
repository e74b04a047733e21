// Package rollup folds time entries into daily, weekly, monthly and yearly totals.
// Every function is a pure function of its inputs: the same entries and
// instants always produce identical results.
package rollup

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
)

// DateLayout is the format of DailyTotal.Date.
const DateLayout = "2006-01-02"

// DailyTotal is the tracked time of one calendar day.
type DailyTotal struct {
	Date         string `json:"date"`
	TotalMinutes int    `json:"total_minutes"`
}

// Stats holds the trailing-window totals of a user.
type Stats struct {
	WeekHours  float64 `json:"week_hours"`
	MonthHours float64 `json:"month_hours"`
	YearHours  float64 `json:"year_hours"`
}

// Anomaly describes an entry that was left out of a rollup.
type Anomaly struct {
	EntryID uuid.UUID
	CardID  uuid.UUID
	Err     error
}

// Window is a trailing period ending at an as-of instant.
type Window int

// Supported windows.
const (
	Week Window = iota
	Month
	Year
)

// String returns the window name used in logs.
func (w Window) String() string {
	switch w {
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return "unknown"
	}
}

// Start returns the beginning of the window that ends at asOf.
// Weeks are seven days; months and years follow the calendar, clamping the
// day to the end of shorter months (March 31st goes back to February 28th).
func (w Window) Start(asOf time.Time) time.Time {
	switch w {
	case Week:
		return asOf.AddDate(0, 0, -7)
	case Month:
		return monthsBack(asOf, 1)
	default:
		return monthsBack(asOf, 12)
	}
}

func monthsBack(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// MonthRange returns the first instant of the month and of the following month in loc.
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// DailyTotals returns one total per calendar day of the month, zero-filled,
// with days taken in loc. Entries that span midnight are split exactly at
// each day boundary. Open entries are not counted; closed entries that end
// before they start are reported as anomalies and skipped.
func DailyTotals(
	entries []*domain.TimeEntry,
	year int,
	month time.Month,
	loc *time.Location,
) ([]DailyTotal, []Anomaly) {
	if loc == nil {
		loc = time.UTC
	}
	monthStart, monthEnd := MonthRange(year, month, loc)
	days := monthEnd.AddDate(0, 0, -1).Day()
	sums := make([]time.Duration, days)

	var anomalies []Anomaly
	for _, entry := range entries {
		if entry.IsOpen() {
			continue
		}
		if !entry.Valid() {
			anomalies = append(anomalies, Anomaly{EntryID: entry.ID, CardID: entry.CardID, Err: domain.ErrClockSkew})
			continue
		}

		start, end, ok := clip(entry.StartTime, *entry.EndTime, monthStart, monthEnd)
		if !ok {
			continue
		}
		for cur := start.In(loc); cur.Before(end); {
			y, m, d := cur.Date()
			next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
			if next.After(end) {
				next = end
			}
			sums[d-1] += next.Sub(cur)
			cur = next
		}
	}

	totals := make([]DailyTotal, days)
	for i := range totals {
		totals[i] = DailyTotal{
			Date:         monthStart.AddDate(0, 0, i).Format(DateLayout),
			TotalMinutes: domain.WholeMinutes(sums[i]),
		}
	}
	return totals, anomalies
}

// Hours sums the tracked time that falls inside [from, to] and converts it to
// fractional hours. Open entries are counted up to `to` only when live is true.
func Hours(entries []*domain.TimeEntry, from, to time.Time, live bool) (float64, []Anomaly) {
	var (
		total     time.Duration
		anomalies []Anomaly
	)

	for _, entry := range entries {
		end := to
		switch {
		case entry.IsOpen():
			if !live {
				continue
			}
			if to.Before(entry.StartTime) {
				anomalies = append(anomalies, Anomaly{EntryID: entry.ID, CardID: entry.CardID, Err: domain.ErrClockSkew})
				continue
			}
		case !entry.Valid():
			anomalies = append(anomalies, Anomaly{EntryID: entry.ID, CardID: entry.CardID, Err: domain.ErrClockSkew})
			continue
		default:
			end = *entry.EndTime
		}

		if start, stop, ok := clip(entry.StartTime, end, from, to); ok {
			total += stop.Sub(start)
		}
	}

	return total.Hours(), anomalies
}

// clip intersects [start, end) with [from, to).
func clip(start, end, from, to time.Time) (time.Time, time.Time, bool) {
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if !start.Before(end) {
		return start, end, false
	}
	return start, end, true
}
