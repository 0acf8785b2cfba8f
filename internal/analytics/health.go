package analytics

import (
	"math"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// HealthStatus bands a score for at-a-glance triage.
type HealthStatus string

const (
	StatusHealthy        HealthStatus = "healthy"
	StatusNeedsAttention HealthStatus = "needs_attention"
	StatusCritical       HealthStatus = "critical"
)

// HealthWeights apportion the composite penalty. The split is a policy
// choice: escalation rate and resolution speed measure harm already done,
// so together they outweigh the volume trend, which is only a leading
// signal. Weights are points deducted at full penalty and should sum to
// 100.
type HealthWeights struct {
	Volume     float64 `json:"volume"`
	Escalation float64 `json:"escalation"`
	Resolution float64 `json:"resolution"`
}

// DefaultHealthWeights returns the standard 20/40/40 split.
func DefaultHealthWeights() HealthWeights {
	return HealthWeights{Volume: 20, Escalation: 40, Resolution: 40}
}

// Penalty saturation points: an escalation rate of half the tickets, or a
// mean resolution of a full day, earns the entire weighted penalty.
const (
	escalationRateSaturation  = 0.5
	resolutionHoursSaturation = 24.0
)

// HealthReport is the composite service health view.
type HealthReport struct {
	Score               int            `json:"score"`
	Status              HealthStatus   `json:"status"`
	VolumeDirection     TrendDirection `json:"volume_direction"`
	EscalationRate      float64        `json:"escalation_rate"`
	MeanResolutionHours float64        `json:"mean_resolution_hours"`
	TicketCount         int            `json:"ticket_count"`
	EscalationCount     int            `json:"escalation_count"`
}

// HealthScoreReport computes the 0-100 composite:
//
//	score = 100 - volumePenalty - escalationPenalty - resolutionPenalty
//
// where volumePenalty is the full volume weight when the ticket trend is
// increasing and zero otherwise, escalationPenalty scales linearly with
// escalations/tickets up to the saturation rate, and resolutionPenalty
// scales linearly with mean resolution hours up to the saturation point.
func HealthScoreReport(tickets, escalations []domain.AnalyticsRecord, weights HealthWeights) HealthReport {
	if weights.Volume <= 0 && weights.Escalation <= 0 && weights.Resolution <= 0 {
		weights = DefaultHealthWeights()
	}

	trend := VolumeTrendReport(tickets, GranularityDay)

	var escalationRate float64
	if len(tickets) > 0 {
		escalationRate = float64(len(escalations)) / float64(len(tickets))
	}

	resolution := EscalationReport(escalations, EscalationOptions{})

	var volumePenalty float64
	if trend.Direction == TrendIncreasing {
		volumePenalty = weights.Volume
	}
	escalationPenalty := weights.Escalation * clamp01(escalationRate/escalationRateSaturation)
	resolutionPenalty := weights.Resolution * clamp01(resolution.MeanHours/resolutionHoursSaturation)

	score := 100 - volumePenalty - escalationPenalty - resolutionPenalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	rounded := int(math.Round(score))
	return HealthReport{
		Score:               rounded,
		Status:              statusForScore(rounded),
		VolumeDirection:     trend.Direction,
		EscalationRate:      escalationRate,
		MeanResolutionHours: resolution.MeanHours,
		TicketCount:         len(tickets),
		EscalationCount:     len(escalations),
	}
}

func statusForScore(score int) HealthStatus {
	switch {
	case score >= 80:
		return StatusHealthy
	case score >= 50:
		return StatusNeedsAttention
	default:
		return StatusCritical
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
