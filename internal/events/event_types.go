package events

import (
	"time"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "handoff_ticket_created"
	EventDeduplicated     EventType = "handoff_deduplicated"
	EventNoteAppended     EventType = "note_appended"
	EventNoteAppendFailed EventType = "note_append_failed"
)

// Event represents a bridge event emitted by the orchestrator.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	TicketID  string        `json:"ticket_id"`
	Source    domain.Source `json:"source,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   interface{}   `json:"payload"`
}

// TicketCreatedPayload describes a ticket created from a handoff.
type TicketCreatedPayload struct {
	TicketURL      string                  `json:"ticket_url"`
	Category       domain.Category         `json:"category"`
	Reason         domain.EscalationReason `json:"escalation_reason"`
	CorrelationKey string                  `json:"correlation_key,omitempty"`
	CallerNumber   string                  `json:"caller_number,omitempty"`
}

// DeduplicatedPayload describes a handoff resolved to an existing ticket.
type DeduplicatedPayload struct {
	TicketURL string          `json:"ticket_url"`
	MatchedBy string          `json:"matched_by"`
	Category  domain.Category `json:"category"`
}

// NoteAppendedPayload describes a note landing on a ticket.
type NoteAppendedPayload struct {
	Preview string `json:"preview"`
}

// NoteAppendFailedPayload describes a failed append after the ticket was
// resolved; the ticket still exists and only the append should be retried.
type NoteAppendFailedPayload struct {
	Error string `json:"error"`
}
