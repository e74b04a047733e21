package rollup

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/progressor-api/internal/domain"
)

func closedEntry(start time.Time, d time.Duration) *domain.TimeEntry {
	end := start.Add(d)
	return &domain.TimeEntry{ID: uuid.New(), CardID: uuid.New(), StartTime: start, EndTime: &end}
}

func openEntry(start time.Time) *domain.TimeEntry {
	return &domain.TimeEntry{ID: uuid.New(), CardID: uuid.New(), StartTime: start}
}

func TestDailyTotalsZeroFillsMonth(t *testing.T) {
	t.Parallel()

	entries := []*domain.TimeEntry{
		closedEntry(time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC), 30*time.Minute),
	}

	totals, anomalies := DailyTotals(entries, 2025, time.March, time.UTC)
	require.Len(t, totals, 31)
	assert.Empty(t, anomalies)

	for i, total := range totals {
		if i == 14 {
			assert.Equal(t, DailyTotal{Date: "2025-03-15", TotalMinutes: 30}, total)
			continue
		}
		assert.Zero(t, total.TotalMinutes, "day %s", total.Date)
	}
	assert.Equal(t, "2025-03-01", totals[0].Date)
	assert.Equal(t, "2025-03-31", totals[30].Date)
}

func TestDailyTotalsSplitsAcrossMidnight(t *testing.T) {
	t.Parallel()

	entries := []*domain.TimeEntry{
		closedEntry(time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC), 90*time.Minute),
	}

	totals, _ := DailyTotals(entries, 2025, time.March, time.UTC)
	assert.Equal(t, 30, totals[9].TotalMinutes)
	assert.Equal(t, 60, totals[10].TotalMinutes)
}

func TestDailyTotalsClipsToMonth(t *testing.T) {
	t.Parallel()

	entries := []*domain.TimeEntry{
		// Starts in February, ends on March 1st
		closedEntry(time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC), 2*time.Hour),
		// Starts on March 31st, ends in April
		closedEntry(time.Date(2025, 3, 31, 23, 45, 0, 0, time.UTC), 30*time.Minute),
		// Entirely in April
		closedEntry(time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC), time.Hour),
	}

	totals, _ := DailyTotals(entries, 2025, time.March, time.UTC)
	assert.Equal(t, 60, totals[0].TotalMinutes)
	assert.Equal(t, 15, totals[30].TotalMinutes)

	sum := 0
	for _, total := range totals {
		sum += total.TotalMinutes
	}
	assert.Equal(t, 75, sum)
}

func TestDailyTotalsUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	// 23:00 UTC on the 9th is 01:00 on the 10th in UTC+2
	entries := []*domain.TimeEntry{
		closedEntry(time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC), 20*time.Minute),
	}

	totals, _ := DailyTotals(entries, 2025, time.March, loc)
	assert.Zero(t, totals[8].TotalMinutes)
	assert.Equal(t, 20, totals[9].TotalMinutes)
}

func TestDailyTotalsSkipsOpenAndSkewedEntries(t *testing.T) {
	t.Parallel()

	skewed := closedEntry(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC), -10*time.Minute)
	entries := []*domain.TimeEntry{
		openEntry(time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)),
		skewed,
		closedEntry(time.Date(2025, 3, 5, 11, 0, 0, 0, time.UTC), 45*time.Minute),
	}

	totals, anomalies := DailyTotals(entries, 2025, time.March, time.UTC)
	assert.Equal(t, 45, totals[4].TotalMinutes)
	require.Len(t, anomalies, 1)
	assert.Equal(t, skewed.ID, anomalies[0].EntryID)
	assert.ErrorIs(t, anomalies[0].Err, domain.ErrClockSkew)
}

func TestDailyTotalsFebruaryLeapYear(t *testing.T) {
	t.Parallel()

	totals, _ := DailyTotals(nil, 2024, time.February, nil)
	assert.Len(t, totals, 29)
	totals, _ = DailyTotals(nil, 2025, time.February, nil)
	assert.Len(t, totals, 28)
}

func TestHours(t *testing.T) {
	t.Parallel()

	asOf := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	from := Week.Start(asOf)

	entries := []*domain.TimeEntry{
		closedEntry(asOf.Add(-2*time.Hour), 90*time.Minute),
		// Half of this one falls before the window
		closedEntry(from.Add(-30*time.Minute), time.Hour),
		// Entirely outside the window
		closedEntry(from.Add(-3*time.Hour), time.Hour),
		closedEntry(asOf.Add(-5*time.Hour), -time.Hour),
		openEntry(asOf.Add(-15 * time.Minute)),
	}

	live, anomalies := Hours(entries, from, asOf, true)
	assert.InDelta(t, 2.25, live, 1e-9)
	assert.Len(t, anomalies, 1)

	past, _ := Hours(entries, from, asOf, false)
	assert.InDelta(t, 2.0, past, 1e-9)
}

func TestHoursIsIdempotent(t *testing.T) {
	t.Parallel()

	asOf := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	entries := []*domain.TimeEntry{
		closedEntry(asOf.Add(-49*time.Hour), 17*time.Minute),
		closedEntry(asOf.Add(-3*time.Hour), 1234*time.Second),
	}

	first, _ := Hours(entries, Month.Start(asOf), asOf, false)
	second, _ := Hours(entries, Month.Start(asOf), asOf, false)
	assert.Equal(t, first, second)
}

func TestWindowStart(t *testing.T) {
	t.Parallel()

	asOf := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 24, 12, 0, 0, 0, time.UTC), Week.Start(asOf))
	assert.Equal(t, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC), Month.Start(asOf))
	assert.Equal(t, time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), Year.Start(asOf))
	assert.Equal(t, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), Month.Start(time.Date(2024, 3, 30, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC), Year.Start(time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "month", Month.String())
}
