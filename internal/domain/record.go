package domain

import "time"

// RecordKind distinguishes plain tickets from escalations in analytics input.
type RecordKind string

const (
	RecordKindTicket     RecordKind = "TICKET"
	RecordKindEscalation RecordKind = "ESCALATION"
)

// AnalyticsRecord is a read-only ticket or escalation fetched from the
// helpdesk for analytics. The bridge never mutates these; they are fetched
// per request and discarded once the response is computed.
type AnalyticsRecord struct {
	ID          string
	Kind        RecordKind
	OpenedAt    time.Time
	ResolvedAt  *time.Time
	Category    Category
	Service     string
	CustomerID  string
	Description string
}

// Closed reports whether the record has a resolution timestamp.
func (r AnalyticsRecord) Closed() bool {
	return r.ResolvedAt != nil && !r.ResolvedAt.IsZero()
}

// ResolutionHours returns close minus open in hours; zero when still open.
func (r AnalyticsRecord) ResolutionHours() float64 {
	if !r.Closed() {
		return 0
	}
	return r.ResolvedAt.Sub(r.OpenedAt).Hours()
}
