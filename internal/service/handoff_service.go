package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-bridge/internal/clock"
	"github.com/spec-kit/handoff-bridge/internal/dedup"
	"github.com/spec-kit/handoff-bridge/internal/domain"
	"github.com/spec-kit/handoff-bridge/internal/events"
	"github.com/spec-kit/handoff-bridge/internal/helpdesk"
	"github.com/spec-kit/handoff-bridge/internal/note"
	"github.com/spec-kit/handoff-bridge/internal/observability"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

// defaultConfidence is used when the payload supplies neither a rendered
// note nor an explicit confidence.
const defaultConfidence = 0.5

// HandoffService turns handoff events into helpdesk tickets: render the
// canonical note, find or create the ticket, append the note.
type HandoffService struct {
	classifier *note.Classifier
	tickets    dedup.TicketStore
	helpdesk   helpdesk.Client
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      clock.Clock

	// inflight serializes work per dedup key. Two concurrent handoffs for
	// the same key would otherwise both see a cache miss while the create
	// call is in flight and open duplicate tickets.
	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
}

type inflightCall struct {
	done chan struct{}
}

// HandoffDependencies bundles collaborators for the service.
type HandoffDependencies struct {
	Classifier  *note.Classifier
	TicketStore dedup.TicketStore
	Helpdesk    helpdesk.Client
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       clock.Clock
}

// NewHandoffService constructs the service.
func NewHandoffService(deps HandoffDependencies) *HandoffService {
	if deps.Classifier == nil {
		deps.Classifier = note.NewClassifier()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &HandoffService{
		classifier: deps.Classifier,
		tickets:    deps.TicketStore,
		helpdesk:   deps.Helpdesk,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		clock:      deps.Clock,
		inflight:   make(map[string]*inflightCall),
	}
}

// RenderNote resolves a payload into its canonical note and components,
// inferring classification from free text where it was omitted.
func (s *HandoffService) RenderNote(payload domain.HandoffPayload) (string, note.Components, error) {
	if payload.Note != "" {
		components, err := note.Parse(payload.Note)
		if err != nil {
			return "", note.Components{}, err
		}
		return payload.Note, components, nil
	}

	if strings.TrimSpace(payload.Summary) == "" {
		return "", note.Components{}, apperrors.NewValidationError("either note or summary is required", map[string]any{
			"field": "summary",
		})
	}

	components := note.Components{
		Category:   payload.Category,
		Reason:     payload.Reason,
		Confidence: defaultConfidence,
	}
	if components.Category == "" {
		components.Category = s.classifier.InferCategory(payload.Summary)
	} else if !domain.ValidCategory(components.Category) {
		return "", note.Components{}, apperrors.NewValidationError("invalid category", map[string]any{
			"field": "category",
			"value": string(components.Category),
		})
	}
	if components.Reason == "" {
		components.Reason = s.classifier.InferReason(payload.Summary)
	} else if !domain.ValidEscalationReason(components.Reason) {
		return "", note.Components{}, apperrors.NewValidationError("invalid escalation reason", map[string]any{
			"field": "reason",
			"value": string(components.Reason),
		})
	}
	if payload.Confidence != nil {
		components.Confidence = *payload.Confidence
	}
	components.Summary = note.ClipSummary(payload.Summary, components.Category, components.Reason)

	rendered, err := note.Render(components)
	if err != nil {
		return "", note.Components{}, err
	}
	return rendered, components, nil
}

// Handoff runs the full pipeline: render, find-or-create, append.
func (s *HandoffService) Handoff(ctx context.Context, payload domain.HandoffPayload) (domain.HandoffResult, error) {
	rendered, components, err := s.RenderNote(payload)
	if err != nil {
		return domain.HandoffResult{}, err
	}

	result, err := s.findOrCreate(ctx, payload, components)
	if err != nil {
		return domain.HandoffResult{}, err
	}

	if err := s.AppendNote(ctx, result.TicketID, result.TicketURL, rendered, payload.Source); err != nil {
		// The ticket exists and stays remembered; only the append failed.
		return result, err
	}
	return result, nil
}

// FindOrCreateTicket resolves a payload to a ticket without appending the
// note.
func (s *HandoffService) FindOrCreateTicket(ctx context.Context, payload domain.HandoffPayload) (domain.HandoffResult, error) {
	_, components, err := s.RenderNote(payload)
	if err != nil {
		return domain.HandoffResult{}, err
	}
	return s.findOrCreate(ctx, payload, components)
}

// CreateTicket always opens a new ticket, bypassing dedup lookup. The new
// ticket is still remembered so later handoffs dedup against it.
func (s *HandoffService) CreateTicket(ctx context.Context, payload domain.HandoffPayload) (domain.HandoffResult, error) {
	rendered, components, err := s.RenderNote(payload)
	if err != nil {
		return domain.HandoffResult{}, err
	}
	keys := dedup.KeysFromPayload(payload, components.Category)
	result, err := s.create(ctx, payload, components, keys, rendered)
	if err != nil {
		return domain.HandoffResult{}, err
	}
	return result, nil
}

// AppendNote puts the rendered note onto an existing ticket.
func (s *HandoffService) AppendNote(ctx context.Context, ticketID, ticketURL, text string, source domain.Source) error {
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id is required", map[string]any{"field": "ticket_id"})
	}
	if err := s.helpdesk.AppendNote(ctx, ticketID, text); err != nil {
		if s.metrics != nil {
			s.metrics.RecordHelpdeskFailure("append_note")
		}
		s.publish(ctx, events.Event{
			Type:     events.EventNoteAppendFailed,
			TicketID: ticketID,
			Source:   source,
			Payload:  events.NoteAppendFailedPayload{Error: err.Error()},
		})
		return apperrors.NewNoteAppendError(ticketID, ticketURL, err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventNoteAppended,
		TicketID: ticketID,
		Source:   source,
		Payload:  events.NoteAppendedPayload{Preview: preview(text, 120)},
	})
	return nil
}

func (s *HandoffService) findOrCreate(ctx context.Context, payload domain.HandoffPayload, components note.Components) (domain.HandoffResult, error) {
	keys := dedup.KeysFromPayload(payload, components.Category)
	if keys.Empty() {
		// No usable dedup key; every such handoff opens a fresh ticket.
		return s.create(ctx, payload, components, keys, "")
	}

	s.claim(keys.CoalesceKey())
	defer s.release(keys.CoalesceKey())

	record, found, err := s.tickets.Find(ctx, keys)
	if err != nil {
		s.logger.Warn("dedup lookup failed", zap.Error(err))
	}
	if found {
		if s.metrics != nil {
			s.metrics.RecordDedupHit()
		}
		s.publish(ctx, events.Event{
			Type:     events.EventDeduplicated,
			TicketID: record.TicketID,
			Source:   payload.Source,
			Payload: events.DeduplicatedPayload{
				TicketURL: record.TicketURL,
				MatchedBy: matchedBy(keys, record),
				Category:  record.Category,
			},
		})
		return domain.HandoffResult{
			Created:    false,
			TicketID:   record.TicketID,
			TicketURL:  record.TicketURL,
			Category:   components.Category,
			Reason:     components.Reason,
			Confidence: components.Confidence,
		}, nil
	}

	return s.create(ctx, payload, components, keys, "")
}

// create opens a helpdesk ticket and remembers it. On failure nothing is
// remembered, so a retry is free to try again.
func (s *HandoffService) create(ctx context.Context, payload domain.HandoffPayload, components note.Components, keys dedup.DedupKeys, description string) (domain.HandoffResult, error) {
	if description == "" {
		description = components.Summary
	}
	ref, err := s.helpdesk.CreateTicket(ctx, helpdesk.CreateTicketInput{
		Description:  description,
		Category:     components.Category,
		Reason:       components.Reason,
		CallerNumber: payload.CallerNumber,
		Source:       payload.Source,
		Meta:         payload.Meta,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordHelpdeskFailure("create_ticket")
		}
		return domain.HandoffResult{}, apperrors.NewHelpdeskError(err)
	}

	record := domain.TicketRecord{
		TicketID:       ref.ID,
		TicketURL:      ref.URL,
		CreatedAt:      s.clock.Now(),
		CorrelationKey: keys.CorrelationKey,
		CallerNumber:   keys.CallerNumber,
		Category:       components.Category,
	}
	if !keys.Empty() {
		if err := s.tickets.Remember(ctx, keys, record); err != nil {
			s.logger.Warn("failed to remember ticket", zap.String("ticket_id", ref.ID), zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordTicketCreated()
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ref.ID,
		Source:   payload.Source,
		Payload: events.TicketCreatedPayload{
			TicketURL:      ref.URL,
			Category:       components.Category,
			Reason:         components.Reason,
			CorrelationKey: keys.CorrelationKey,
			CallerNumber:   keys.CallerNumber,
		},
	})

	return domain.HandoffResult{
		Created:    true,
		TicketID:   ref.ID,
		TicketURL:  ref.URL,
		Category:   components.Category,
		Reason:     components.Reason,
		Confidence: components.Confidence,
	}, nil
}

// claim blocks until this goroutine holds the in-flight slot for the key.
// Waiters re-check the dedup store once they acquire it, so a ticket
// created by the earlier holder is found instead of duplicated.
func (s *HandoffService) claim(key string) {
	for {
		s.inflightMu.Lock()
		call, busy := s.inflight[key]
		if !busy {
			s.inflight[key] = &inflightCall{done: make(chan struct{})}
			s.inflightMu.Unlock()
			return
		}
		s.inflightMu.Unlock()
		<-call.done
	}
}

func (s *HandoffService) release(key string) {
	s.inflightMu.Lock()
	call := s.inflight[key]
	delete(s.inflight, key)
	s.inflightMu.Unlock()
	if call != nil {
		close(call.done)
	}
}

func (s *HandoffService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func matchedBy(keys dedup.DedupKeys, record domain.TicketRecord) string {
	if keys.CorrelationKey != "" && keys.CorrelationKey == record.CorrelationKey {
		return "correlation_key"
	}
	return "caller_category"
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
