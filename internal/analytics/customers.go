package analytics

import (
	"sort"
	"strings"
	"unicode"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// Customer report defaults.
const (
	DefaultMinTickets        = 3
	DefaultMinEscalations    = 2
	DefaultTopKeywords       = 5
	DefaultUrgentEscalations = 3
	minKeywordLength         = 3
)

// Action is the recommended follow-up tier for a customer.
type Action string

const (
	ActionUrgent       Action = "urgent"
	ActionScheduleCall Action = "schedule_call"
	ActionMonitor      Action = "monitor"
)

// KeywordCount is a recurring theme extracted from ticket descriptions.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// CustomerPattern summarizes one customer's footprint in the window.
type CustomerPattern struct {
	CustomerID        string         `json:"customer_id"`
	TicketCount       int            `json:"ticket_count"`
	EscalationCount   int            `json:"escalation_count"`
	HighTouch         bool           `json:"high_touch"`
	TopKeywords       []KeywordCount `json:"top_keywords"`
	RecommendedAction Action         `json:"recommended_action"`
}

// CustomerOptions tune high-touch detection and action tiers.
type CustomerOptions struct {
	MinTickets        int
	MinEscalations    int
	TopKeywords       int
	UrgentEscalations int
}

func (o *CustomerOptions) applyDefaults() {
	if o.MinTickets <= 0 {
		o.MinTickets = DefaultMinTickets
	}
	if o.MinEscalations <= 0 {
		o.MinEscalations = DefaultMinEscalations
	}
	if o.TopKeywords <= 0 {
		o.TopKeywords = DefaultTopKeywords
	}
	if o.UrgentEscalations <= 0 {
		o.UrgentEscalations = DefaultUrgentEscalations
	}
}

// CustomerReport groups records by customer and flags high-touch
// customers, sorted by escalation count then ticket count descending.
// Records without a customer identifier are skipped.
func CustomerReport(records []domain.AnalyticsRecord, opts CustomerOptions) []CustomerPattern {
	opts.applyDefaults()

	type bucket struct {
		tickets      int
		escalations  int
		descriptions []string
	}
	buckets := make(map[string]*bucket)
	for _, record := range records {
		if record.CustomerID == "" {
			continue
		}
		b, ok := buckets[record.CustomerID]
		if !ok {
			b = &bucket{}
			buckets[record.CustomerID] = b
		}
		if record.Kind == domain.RecordKindEscalation {
			b.escalations++
		} else {
			b.tickets++
		}
		if record.Description != "" {
			b.descriptions = append(b.descriptions, record.Description)
		}
	}

	patterns := make([]CustomerPattern, 0, len(buckets))
	for customerID, b := range buckets {
		pattern := CustomerPattern{
			CustomerID:      customerID,
			TicketCount:     b.tickets,
			EscalationCount: b.escalations,
			HighTouch:       b.tickets >= opts.MinTickets || b.escalations >= opts.MinEscalations,
			TopKeywords:     topKeywords(b.descriptions, opts.TopKeywords),
		}
		switch {
		case b.escalations >= opts.UrgentEscalations:
			pattern.RecommendedAction = ActionUrgent
		case b.escalations >= opts.MinEscalations:
			pattern.RecommendedAction = ActionScheduleCall
		default:
			pattern.RecommendedAction = ActionMonitor
		}
		patterns = append(patterns, pattern)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].EscalationCount != patterns[j].EscalationCount {
			return patterns[i].EscalationCount > patterns[j].EscalationCount
		}
		if patterns[i].TicketCount != patterns[j].TicketCount {
			return patterns[i].TicketCount > patterns[j].TicketCount
		}
		return patterns[i].CustomerID < patterns[j].CustomerID
	})
	return patterns
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"was": {}, "are": {}, "has": {}, "have": {}, "had": {}, "not": {},
	"but": {}, "you": {}, "your": {}, "they": {}, "their": {}, "from": {},
	"about": {}, "after": {}, "into": {}, "when": {}, "while": {},
	"been": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"customer": {}, "issue": {}, "ticket": {}, "reported": {}, "says": {},
}

// topKeywords tokenizes descriptions, drops stop words and short tokens,
// and returns the most frequent terms.
func topKeywords(descriptions []string, limit int) []KeywordCount {
	frequency := make(map[string]int)
	for _, description := range descriptions {
		for _, token := range tokenize(description) {
			frequency[token]++
		}
	}

	keywords := make([]KeywordCount, 0, len(frequency))
	for keyword, count := range frequency {
		keywords = append(keywords, KeywordCount{Keyword: keyword, Count: count})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return keywords[i].Keyword < keywords[j].Keyword
	})
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < minKeywordLength {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}
