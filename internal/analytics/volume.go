// Package analytics derives operational metrics from read-only ticket and
// escalation records fetched from the helpdesk. Every report is a pure
// function over a record slice.
package analytics

import (
	"fmt"
	"sort"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// Granularity selects the grouping period for volume reports.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// TrendDirection classifies a percent change with a small dead-band so
// noise does not flap the direction.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// trendDeadBandPercent is the change below which a trend counts as stable.
const trendDeadBandPercent = 5.0

// VolumePoint is the record count for one period.
type VolumePoint struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// VolumeTrend summarizes volume over time. ChangePercent compares the mean
// of the first half of the period series against the mean of the second.
type VolumeTrend struct {
	Granularity   Granularity    `json:"granularity"`
	Points        []VolumePoint  `json:"points"`
	ChangePercent float64        `json:"change_percent"`
	Direction     TrendDirection `json:"direction"`
	Total         int            `json:"total"`
}

// VolumeTrendReport groups records by period and computes the trend.
func VolumeTrendReport(records []domain.AnalyticsRecord, granularity Granularity) VolumeTrend {
	counts := make(map[string]int)
	for _, record := range records {
		counts[periodKey(record, granularity)]++
	}

	periods := make([]string, 0, len(counts))
	for period := range counts {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	points := make([]VolumePoint, 0, len(periods))
	total := 0
	for _, period := range periods {
		points = append(points, VolumePoint{Period: period, Count: counts[period]})
		total += counts[period]
	}

	change, direction := halfOverHalfTrend(points)
	return VolumeTrend{
		Granularity:   granularity,
		Points:        points,
		ChangePercent: change,
		Direction:     direction,
		Total:         total,
	}
}

func halfOverHalfTrend(points []VolumePoint) (float64, TrendDirection) {
	if len(points) < 2 {
		return 0, TrendStable
	}
	mid := len(points) / 2
	firstMean := meanCount(points[:mid])
	secondMean := meanCount(points[mid:])

	var change float64
	switch {
	case firstMean == 0 && secondMean == 0:
		change = 0
	case firstMean == 0:
		change = 100
	default:
		change = (secondMean - firstMean) / firstMean * 100
	}

	direction := TrendStable
	if change > trendDeadBandPercent {
		direction = TrendIncreasing
	} else if change < -trendDeadBandPercent {
		direction = TrendDecreasing
	}
	return change, direction
}

func meanCount(points []VolumePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0
	for _, p := range points {
		sum += p.Count
	}
	return float64(sum) / float64(len(points))
}

func periodKey(record domain.AnalyticsRecord, granularity Granularity) string {
	t := record.OpenedAt.UTC()
	switch granularity {
	case GranularityWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
