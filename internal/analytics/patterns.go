package analytics

import (
	"math"
	"sort"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// Pattern report defaults.
const (
	DefaultPeakHours = 5
	// DefaultPerStaffThroughput is the assumed tickets one staff member
	// can work per hour; overridable via PatternOptions.
	DefaultPerStaffThroughput = 6
	// peakRunMinLength is the minimum consecutive-hour run that counts as
	// a peak period.
	peakRunMinLength = 3
	// peakRunFactor is the multiple of the overall hourly average a run's
	// own average must exceed.
	peakRunFactor = 1.5
)

// PeakPeriod is a run of consecutive busy hours.
type PeakPeriod struct {
	StartHour    int     `json:"start_hour"`
	EndHour      int     `json:"end_hour"`
	AverageCount float64 `json:"average_count"`
}

// TimePatterns reports when tickets arrive and what staffing the peaks
// imply.
type TimePatterns struct {
	HourCounts             [24]int      `json:"hour_counts"`
	DayCounts              [7]int       `json:"day_counts"`
	PeakHours              []int        `json:"peak_hours"`
	PeakPeriods            []PeakPeriod `json:"peak_periods"`
	HourlyAverage          float64      `json:"hourly_average"`
	StaffingRecommendation int          `json:"staffing_recommendation"`
}

// PatternOptions tune the pattern report.
type PatternOptions struct {
	PerStaffThroughput int
}

// TimePatternReport builds hour-of-day and day-of-week histograms, finds
// peaks, and recommends staffing for the busiest hour.
func TimePatternReport(records []domain.AnalyticsRecord, opts PatternOptions) TimePatterns {
	if opts.PerStaffThroughput <= 0 {
		opts.PerStaffThroughput = DefaultPerStaffThroughput
	}

	var patterns TimePatterns
	for _, record := range records {
		t := record.OpenedAt.UTC()
		patterns.HourCounts[t.Hour()]++
		patterns.DayCounts[int(t.Weekday())]++
	}

	patterns.HourlyAverage = float64(len(records)) / 24.0
	patterns.PeakHours = topHours(patterns.HourCounts, DefaultPeakHours)
	patterns.PeakPeriods = peakPeriods(patterns.HourCounts, patterns.HourlyAverage)

	maxHourly := 0
	for _, count := range patterns.HourCounts {
		if count > maxHourly {
			maxHourly = count
		}
	}
	patterns.StaffingRecommendation = int(math.Ceil(float64(maxHourly) / float64(opts.PerStaffThroughput)))

	return patterns
}

// topHours returns the busiest non-empty hours, highest count first, lower
// hour winning ties.
func topHours(counts [24]int, limit int) []int {
	hours := make([]int, 0, 24)
	for hour, count := range counts {
		if count > 0 {
			hours = append(hours, hour)
		}
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > limit {
		hours = hours[:limit]
	}
	return hours
}

// peakPeriods finds maximal runs of at least peakRunMinLength consecutive
// above-average hours whose run average exceeds peakRunFactor times the
// overall hourly average.
func peakPeriods(counts [24]int, hourlyAverage float64) []PeakPeriod {
	periods := []PeakPeriod{}
	if hourlyAverage == 0 {
		return periods
	}

	runStart := -1
	for hour := 0; hour <= 24; hour++ {
		above := hour < 24 && float64(counts[hour]) > hourlyAverage
		if above {
			if runStart < 0 {
				runStart = hour
			}
			continue
		}
		if runStart >= 0 {
			if period, ok := runToPeriod(counts, runStart, hour-1, hourlyAverage); ok {
				periods = append(periods, period)
			}
			runStart = -1
		}
	}
	return periods
}

func runToPeriod(counts [24]int, start, end int, hourlyAverage float64) (PeakPeriod, bool) {
	length := end - start + 1
	if length < peakRunMinLength {
		return PeakPeriod{}, false
	}
	sum := 0
	for hour := start; hour <= end; hour++ {
		sum += counts[hour]
	}
	avg := float64(sum) / float64(length)
	if avg <= peakRunFactor*hourlyAverage {
		return PeakPeriod{}, false
	}
	return PeakPeriod{StartHour: start, EndHour: end, AverageCount: avg}, true
}
