package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

func customerRecord(customerID string, kind domain.RecordKind, description string) domain.AnalyticsRecord {
	return domain.AnalyticsRecord{
		ID:          "R-" + customerID,
		Kind:        kind,
		OpenedAt:    time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
		CustomerID:  customerID,
		Description: description,
	}
}

func TestCustomerReportGroupsAndSorts(t *testing.T) {
	records := []domain.AnalyticsRecord{
		customerRecord("cust-a", domain.RecordKindTicket, ""),
		customerRecord("cust-b", domain.RecordKindEscalation, ""),
		customerRecord("cust-b", domain.RecordKindTicket, ""),
		customerRecord("cust-c", domain.RecordKindEscalation, ""),
		customerRecord("cust-c", domain.RecordKindEscalation, ""),
		{Kind: domain.RecordKindTicket}, // no customer id, skipped
	}

	patterns := CustomerReport(records, CustomerOptions{})

	require.Len(t, patterns, 3)
	assert.Equal(t, "cust-c", patterns[0].CustomerID)
	assert.Equal(t, 2, patterns[0].EscalationCount)
	assert.Equal(t, "cust-b", patterns[1].CustomerID)
	assert.Equal(t, "cust-a", patterns[2].CustomerID)
}

func TestCustomerReportHighTouchFlags(t *testing.T) {
	records := []domain.AnalyticsRecord{
		// Three tickets: high touch by volume.
		customerRecord("volume", domain.RecordKindTicket, ""),
		customerRecord("volume", domain.RecordKindTicket, ""),
		customerRecord("volume", domain.RecordKindTicket, ""),
		// Two escalations: high touch by escalations.
		customerRecord("escalated", domain.RecordKindEscalation, ""),
		customerRecord("escalated", domain.RecordKindEscalation, ""),
		// One of each: not high touch.
		customerRecord("quiet", domain.RecordKindTicket, ""),
		customerRecord("quiet", domain.RecordKindEscalation, ""),
	}

	patterns := CustomerReport(records, CustomerOptions{})
	byID := make(map[string]CustomerPattern)
	for _, p := range patterns {
		byID[p.CustomerID] = p
	}

	assert.True(t, byID["volume"].HighTouch)
	assert.True(t, byID["escalated"].HighTouch)
	assert.False(t, byID["quiet"].HighTouch)
}

func TestCustomerReportRecommendedActions(t *testing.T) {
	records := []domain.AnalyticsRecord{
		customerRecord("urgent", domain.RecordKindEscalation, ""),
		customerRecord("urgent", domain.RecordKindEscalation, ""),
		customerRecord("urgent", domain.RecordKindEscalation, ""),
		customerRecord("call", domain.RecordKindEscalation, ""),
		customerRecord("call", domain.RecordKindEscalation, ""),
		customerRecord("watch", domain.RecordKindTicket, ""),
	}

	patterns := CustomerReport(records, CustomerOptions{})
	byID := make(map[string]Action)
	for _, p := range patterns {
		byID[p.CustomerID] = p.RecommendedAction
	}

	assert.Equal(t, ActionUrgent, byID["urgent"])
	assert.Equal(t, ActionScheduleCall, byID["call"])
	assert.Equal(t, ActionMonitor, byID["watch"])
}

func TestCustomerReportKeywords(t *testing.T) {
	records := []domain.AnalyticsRecord{
		customerRecord("cust-a", domain.RecordKindTicket, "wifi dropping in the evening"),
		customerRecord("cust-a", domain.RecordKindTicket, "wifi slow after the router reset"),
		customerRecord("cust-a", domain.RecordKindTicket, "wifi outage again"),
	}

	patterns := CustomerReport(records, CustomerOptions{})
	require.Len(t, patterns, 1)

	keywords := patterns[0].TopKeywords
	require.NotEmpty(t, keywords)
	assert.Equal(t, KeywordCount{Keyword: "wifi", Count: 3}, keywords[0])
	for _, kw := range keywords {
		assert.NotEqual(t, "the", kw.Keyword, "stop words must be filtered")
		assert.GreaterOrEqual(t, len(kw.Keyword), minKeywordLength)
	}
}

func TestTokenizeFiltersShortAndStopWords(t *testing.T) {
	tokens := tokenize("The customer says: WiFi is down, AGAIN!")
	assert.Equal(t, []string{"wifi", "down", "again"}, tokens)
}
