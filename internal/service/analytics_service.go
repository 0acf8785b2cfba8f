package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-bridge/internal/analytics"
	"github.com/spec-kit/handoff-bridge/internal/domain"
	"github.com/spec-kit/handoff-bridge/internal/helpdesk"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

// RecordSource yields analytics records. Both the helpdesk API client and
// the reporting-replica repository satisfy it.
type RecordSource interface {
	FetchRecords(ctx context.Context, query helpdesk.RecordQuery) ([]domain.AnalyticsRecord, error)
}

// AnalyticsWindow bounds an analytics request.
type AnalyticsWindow struct {
	From    time.Time
	To      time.Time
	Service string
}

// AnalyticsService fetches records per request and runs the pure engine
// over them. Nothing is cached; records are discarded once the response is
// computed.
type AnalyticsService struct {
	source RecordSource
	logger *zap.Logger

	weights        analytics.HealthWeights
	escalationOpts analytics.EscalationOptions
	patternOpts    analytics.PatternOptions
	customerOpts   analytics.CustomerOptions
}

// AnalyticsDependencies bundles collaborators and policy knobs.
type AnalyticsDependencies struct {
	Source         RecordSource
	Logger         *zap.Logger
	Weights        analytics.HealthWeights
	EscalationOpts analytics.EscalationOptions
	PatternOpts    analytics.PatternOptions
	CustomerOpts   analytics.CustomerOptions
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AnalyticsService{
		source:         deps.Source,
		logger:         deps.Logger,
		weights:        deps.Weights,
		escalationOpts: deps.EscalationOpts,
		patternOpts:    deps.PatternOpts,
		customerOpts:   deps.CustomerOpts,
	}
}

// VolumeTrend reports grouped ticket volume and its direction.
func (s *AnalyticsService) VolumeTrend(ctx context.Context, window AnalyticsWindow, granularity analytics.Granularity) (analytics.VolumeTrend, error) {
	records, err := s.fetch(ctx, window, domain.RecordKindTicket)
	if err != nil {
		return analytics.VolumeTrend{}, err
	}
	return analytics.VolumeTrendReport(records, granularity), nil
}

// EscalationMetrics reports resolution-time health over escalations.
func (s *AnalyticsService) EscalationMetrics(ctx context.Context, window AnalyticsWindow) (analytics.EscalationMetrics, error) {
	records, err := s.fetch(ctx, window, domain.RecordKindEscalation)
	if err != nil {
		return analytics.EscalationMetrics{}, err
	}
	return analytics.EscalationReport(records, s.escalationOpts), nil
}

// ServiceHealth reports the composite 0-100 health score.
func (s *AnalyticsService) ServiceHealth(ctx context.Context, window AnalyticsWindow) (analytics.HealthReport, error) {
	tickets, err := s.fetch(ctx, window, domain.RecordKindTicket)
	if err != nil {
		return analytics.HealthReport{}, err
	}
	escalations, err := s.fetch(ctx, window, domain.RecordKindEscalation)
	if err != nil {
		return analytics.HealthReport{}, err
	}
	return analytics.HealthScoreReport(tickets, escalations, s.weights), nil
}

// TimePatterns reports hour-of-day and day-of-week histograms with
// staffing guidance.
func (s *AnalyticsService) TimePatterns(ctx context.Context, window AnalyticsWindow) (analytics.TimePatterns, error) {
	records, err := s.fetch(ctx, window, domain.RecordKindTicket)
	if err != nil {
		return analytics.TimePatterns{}, err
	}
	return analytics.TimePatternReport(records, s.patternOpts), nil
}

// CustomerPatterns reports high-touch customers and recurring themes.
func (s *AnalyticsService) CustomerPatterns(ctx context.Context, window AnalyticsWindow) ([]analytics.CustomerPattern, error) {
	records, err := s.fetch(ctx, window, "")
	if err != nil {
		return nil, err
	}
	return analytics.CustomerReport(records, s.customerOpts), nil
}

func (s *AnalyticsService) fetch(ctx context.Context, window AnalyticsWindow, kind domain.RecordKind) ([]domain.AnalyticsRecord, error) {
	records, err := s.source.FetchRecords(ctx, helpdesk.RecordQuery{
		From:    window.From,
		To:      window.To,
		Service: window.Service,
		Kind:    kind,
	})
	if err != nil {
		s.logger.Warn("record fetch failed", zap.Error(err))
		return nil, apperrors.NewHelpdeskError(err)
	}
	return records, nil
}
