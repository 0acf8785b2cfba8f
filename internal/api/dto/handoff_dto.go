package dto

import (
	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// HandoffRequest is the ingest payload for handoff operations.
type HandoffRequest struct {
	Note           string            `json:"note,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	Category       string            `json:"category,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Confidence     *float64          `json:"confidence,omitempty"`
	CallerNumber   string            `json:"caller_number,omitempty"`
	CorrelationKey string            `json:"correlation_key,omitempty"`
	Source         string            `json:"source,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// ToPayload converts the request into the domain payload.
func (r HandoffRequest) ToPayload() domain.HandoffPayload {
	return domain.HandoffPayload{
		Note:           r.Note,
		Summary:        r.Summary,
		Category:       domain.Category(r.Category),
		Reason:         domain.EscalationReason(r.Reason),
		Confidence:     r.Confidence,
		CallerNumber:   r.CallerNumber,
		CorrelationKey: r.CorrelationKey,
		Source:         domain.Source(r.Source),
		Meta:           r.Meta,
	}
}

// RenderNoteResponse returns the canonical note and its components.
type RenderNoteResponse struct {
	Note       string  `json:"note"`
	Category   string  `json:"category"`
	Reason     string  `json:"escalation_reason"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// HandoffResponse is the outcome of handoff and ticket operations.
type HandoffResponse struct {
	Created    bool    `json:"created"`
	TicketID   string  `json:"ticket_id"`
	TicketURL  string  `json:"ticket_url"`
	Category   string  `json:"category"`
	Reason     string  `json:"escalation_reason"`
	Confidence float64 `json:"confidence"`
}

// FromResult converts a domain result.
func FromResult(result domain.HandoffResult) HandoffResponse {
	return HandoffResponse{
		Created:    result.Created,
		TicketID:   result.TicketID,
		TicketURL:  result.TicketURL,
		Category:   string(result.Category),
		Reason:     string(result.Reason),
		Confidence: result.Confidence,
	}
}

// AppendNoteRequest appends a note to an existing ticket.
type AppendNoteRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// AppendNoteResponse acknowledges a successful append.
type AppendNoteResponse struct {
	Success  bool   `json:"success"`
	TicketID string `json:"ticket_id"`
}
