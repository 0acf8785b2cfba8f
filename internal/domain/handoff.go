package domain

import "time"

// Category classifies what the caller's issue is about.
type Category string

const (
	CategoryOutage          Category = "OUTAGE"
	CategoryWiFi            Category = "WIFI"
	CategoryCGNAT           Category = "CGNAT"
	CategoryWiring          Category = "WIRING"
	CategoryEquipmentReturn Category = "EQUIPMENT_RETURN"
	CategoryUnknown         Category = "UNKNOWN"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{
		CategoryOutage,
		CategoryWiFi,
		CategoryCGNAT,
		CategoryWiring,
		CategoryEquipmentReturn,
		CategoryUnknown,
	}
}

// ValidCategory reports whether c belongs to the closed set.
func ValidCategory(c Category) bool {
	for _, candidate := range Categories() {
		if candidate == c {
			return true
		}
	}
	return false
}

// EscalationReason explains why the automated agent handed off.
type EscalationReason string

const (
	ReasonCallerRequested   EscalationReason = "CALLER_REQUESTED"
	ReasonTwoStepsNoResolve EscalationReason = "TWO_STEPS_NO_RESOLVE"
	ReasonOutOfScope        EscalationReason = "OUT_OF_SCOPE"
	ReasonSafetyRisk        EscalationReason = "SAFETY_RISK"
	ReasonBillingOrAccount  EscalationReason = "BILLING_OR_ACCOUNT"
	ReasonOther             EscalationReason = "OTHER"
)

// EscalationReasons lists every valid reason.
func EscalationReasons() []EscalationReason {
	return []EscalationReason{
		ReasonCallerRequested,
		ReasonTwoStepsNoResolve,
		ReasonOutOfScope,
		ReasonSafetyRisk,
		ReasonBillingOrAccount,
		ReasonOther,
	}
}

// ValidEscalationReason reports whether r belongs to the closed set.
func ValidEscalationReason(r EscalationReason) bool {
	for _, candidate := range EscalationReasons() {
		if candidate == r {
			return true
		}
	}
	return false
}

// Source identifies the automated system that produced the handoff.
type Source string

const (
	SourceVoiceAgent Source = "VOICE_AGENT"
	SourceChatAgent  Source = "CHAT_AGENT"
	SourceEmailAgent Source = "EMAIL_AGENT"
	SourceUnknown    Source = "UNKNOWN"
)

// HandoffPayload is the inbound event describing an agent-to-human handoff.
// Either Note carries a pre-rendered canonical note, or Summary plus the
// optional classification fields carry the components to render one from.
type HandoffPayload struct {
	Note           string            `json:"note,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	Category       Category          `json:"category,omitempty"`
	Reason         EscalationReason  `json:"reason,omitempty"`
	Confidence     *float64          `json:"confidence,omitempty"`
	CallerNumber   string            `json:"caller_number,omitempty"`
	CorrelationKey string            `json:"correlation_key,omitempty"`
	Source         Source            `json:"source,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// TicketRecord is a dedup cache entry for a ticket created recently.
// Records are immutable after creation.
type TicketRecord struct {
	TicketID       string
	TicketURL      string
	CreatedAt      time.Time
	CorrelationKey string
	CallerNumber   string
	Category       Category
}

// HandoffResult is the outcome of a find-or-create-then-append run.
type HandoffResult struct {
	Created    bool             `json:"created"`
	TicketID   string           `json:"ticket_id"`
	TicketURL  string           `json:"ticket_url"`
	Category   Category         `json:"category"`
	Reason     EscalationReason `json:"escalation_reason"`
	Confidence float64          `json:"confidence"`
}
