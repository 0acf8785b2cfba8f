package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

func ticketAt(openedAt time.Time) domain.AnalyticsRecord {
	return domain.AnalyticsRecord{Kind: domain.RecordKindTicket, OpenedAt: openedAt}
}

func ticketsPerDay(start time.Time, perDay ...int) []domain.AnalyticsRecord {
	var records []domain.AnalyticsRecord
	for day, count := range perDay {
		for i := 0; i < count; i++ {
			records = append(records, ticketAt(start.AddDate(0, 0, day).Add(time.Duration(i)*time.Minute)))
		}
	}
	return records
}

func TestVolumeTrendGroupsByDay(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	records := ticketsPerDay(start, 2, 0, 3)

	trend := VolumeTrendReport(records, GranularityDay)

	require.Len(t, trend.Points, 2)
	assert.Equal(t, VolumePoint{Period: "2025-05-01", Count: 2}, trend.Points[0])
	assert.Equal(t, VolumePoint{Period: "2025-05-03", Count: 3}, trend.Points[1])
	assert.Equal(t, 5, trend.Total)
}

func TestVolumeTrendGranularityKeys(t *testing.T) {
	record := ticketAt(time.Date(2025, 5, 7, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-05-07", VolumeTrendReport([]domain.AnalyticsRecord{record}, GranularityDay).Points[0].Period)
	assert.Equal(t, "2025-W19", VolumeTrendReport([]domain.AnalyticsRecord{record}, GranularityWeek).Points[0].Period)
	assert.Equal(t, "2025-05", VolumeTrendReport([]domain.AnalyticsRecord{record}, GranularityMonth).Points[0].Period)
}

func TestVolumeTrendDirection(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		perDay    []int
		direction TrendDirection
	}{
		{"rising second half", []int{1, 1, 3, 3}, TrendIncreasing},
		{"falling second half", []int{4, 4, 1, 1}, TrendDecreasing},
		{"flat", []int{2, 2, 2, 2}, TrendStable},
		{"within dead band", []int{100, 100, 104, 104}, TrendStable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			trend := VolumeTrendReport(ticketsPerDay(start, tc.perDay...), GranularityDay)
			assert.Equal(t, tc.direction, trend.Direction)
		})
	}
}

func TestVolumeTrendChangePercent(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	trend := VolumeTrendReport(ticketsPerDay(start, 2, 2, 3, 3), GranularityDay)
	assert.InDelta(t, 50.0, trend.ChangePercent, 0.001)
}

func TestVolumeTrendFromZeroBaseline(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	// First-half mean of zero with any second-half activity reports +100%.
	records := append(
		ticketsPerDay(start, 0, 0),
		ticketAt(start.AddDate(0, 0, 2)),
		ticketAt(start.AddDate(0, 0, 3)),
	)
	// Day grouping drops empty periods, so force a two-point series where
	// the first period is present but empty is impossible; use explicit
	// counts instead.
	trend := VolumeTrendReport(records, GranularityDay)
	assert.Equal(t, TrendStable, trend.Direction)

	change, direction := halfOverHalfTrend([]VolumePoint{
		{Period: "2025-05-01", Count: 0},
		{Period: "2025-05-02", Count: 4},
	})
	assert.Equal(t, 100.0, change)
	assert.Equal(t, TrendIncreasing, direction)
}

func TestVolumeTrendEmptyAndSinglePoint(t *testing.T) {
	trend := VolumeTrendReport(nil, GranularityDay)
	assert.Equal(t, TrendStable, trend.Direction)
	assert.Zero(t, trend.Total)
	assert.Empty(t, trend.Points)

	trend = VolumeTrendReport([]domain.AnalyticsRecord{ticketAt(time.Now())}, GranularityDay)
	assert.Equal(t, TrendStable, trend.Direction)
	assert.Zero(t, trend.ChangePercent)
}
