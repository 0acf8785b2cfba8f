package analytics

import (
	"sort"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// Escalation report defaults.
const (
	DefaultRepeatThreshold = 2
	DefaultTopSlowest      = 5
)

// ResolutionBuckets counts closed escalations by resolution-time band.
type ResolutionBuckets struct {
	Under4h    int `json:"under_4h"`
	From4To8h  int `json:"4_to_8h"`
	From8To24h int `json:"8_to_24h"`
	Over24h    int `json:"over_24h"`
}

// RepeatCustomer is a customer at or above the repeat threshold within the
// analyzed window.
type RepeatCustomer struct {
	CustomerID string `json:"customer_id"`
	Count      int    `json:"count"`
}

// SlowResolution identifies one of the slowest closed escalations.
type SlowResolution struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customer_id"`
	Hours      float64 `json:"hours"`
}

// EscalationMetrics summarizes resolution-time health.
type EscalationMetrics struct {
	Total              int               `json:"total"`
	Closed             int               `json:"closed"`
	MeanHours          float64           `json:"mean_hours"`
	MedianHours        float64           `json:"median_hours"`
	MinHours           float64           `json:"min_hours"`
	MaxHours           float64           `json:"max_hours"`
	Buckets            ResolutionBuckets `json:"buckets"`
	RepeatCustomers    []RepeatCustomer  `json:"repeat_customers"`
	SlowestResolutions []SlowResolution  `json:"slowest_resolutions"`
}

// EscalationOptions tune the report.
type EscalationOptions struct {
	// RepeatThreshold is the escalation count at which a customer counts
	// as repeat.
	RepeatThreshold int
	// TopSlowest caps how many slow resolutions are surfaced.
	TopSlowest int
}

func (o *EscalationOptions) applyDefaults() {
	if o.RepeatThreshold <= 0 {
		o.RepeatThreshold = DefaultRepeatThreshold
	}
	if o.TopSlowest <= 0 {
		o.TopSlowest = DefaultTopSlowest
	}
}

// EscalationReport computes resolution statistics over escalation records.
// Resolution time only exists for closed records; open ones count toward
// totals and repeat detection but not the time statistics.
func EscalationReport(records []domain.AnalyticsRecord, opts EscalationOptions) EscalationMetrics {
	opts.applyDefaults()

	metrics := EscalationMetrics{
		Total:              len(records),
		RepeatCustomers:    []RepeatCustomer{},
		SlowestResolutions: []SlowResolution{},
	}

	hours := make([]float64, 0, len(records))
	slow := make([]SlowResolution, 0, len(records))
	perCustomer := make(map[string]int)

	for _, record := range records {
		if record.CustomerID != "" {
			perCustomer[record.CustomerID]++
		}
		if !record.Closed() {
			continue
		}
		h := record.ResolutionHours()
		hours = append(hours, h)
		slow = append(slow, SlowResolution{ID: record.ID, CustomerID: record.CustomerID, Hours: h})

		switch {
		case h < 4:
			metrics.Buckets.Under4h++
		case h < 8:
			metrics.Buckets.From4To8h++
		case h <= 24:
			metrics.Buckets.From8To24h++
		default:
			metrics.Buckets.Over24h++
		}
	}

	metrics.Closed = len(hours)
	if len(hours) > 0 {
		sort.Float64s(hours)
		metrics.MinHours = hours[0]
		metrics.MaxHours = hours[len(hours)-1]
		metrics.MeanHours = mean(hours)
		metrics.MedianHours = median(hours)
	}

	for customerID, count := range perCustomer {
		if count >= opts.RepeatThreshold {
			metrics.RepeatCustomers = append(metrics.RepeatCustomers, RepeatCustomer{CustomerID: customerID, Count: count})
		}
	}
	sort.Slice(metrics.RepeatCustomers, func(i, j int) bool {
		if metrics.RepeatCustomers[i].Count != metrics.RepeatCustomers[j].Count {
			return metrics.RepeatCustomers[i].Count > metrics.RepeatCustomers[j].Count
		}
		return metrics.RepeatCustomers[i].CustomerID < metrics.RepeatCustomers[j].CustomerID
	})

	sort.Slice(slow, func(i, j int) bool { return slow[i].Hours > slow[j].Hours })
	if len(slow) > opts.TopSlowest {
		slow = slow[:opts.TopSlowest]
	}
	metrics.SlowestResolutions = slow

	return metrics
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
