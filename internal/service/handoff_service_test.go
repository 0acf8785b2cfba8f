package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/handoff-bridge/internal/clock"
	"github.com/spec-kit/handoff-bridge/internal/dedup"
	"github.com/spec-kit/handoff-bridge/internal/domain"
	"github.com/spec-kit/handoff-bridge/internal/events"
	"github.com/spec-kit/handoff-bridge/internal/helpdesk"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

type fakeHelpdesk struct {
	mu sync.Mutex

	created   []helpdesk.CreateTicketInput
	notes     map[string][]string
	createErr error
	appendErr error
}

func newFakeHelpdesk() *fakeHelpdesk {
	return &fakeHelpdesk{notes: make(map[string][]string)}
}

func (f *fakeHelpdesk) CreateTicket(_ context.Context, input helpdesk.CreateTicketInput) (helpdesk.TicketRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return helpdesk.TicketRef{}, f.createErr
	}
	f.created = append(f.created, input)
	id := fmt.Sprintf("T-%d", len(f.created))
	return helpdesk.TicketRef{ID: id, URL: "https://desk.example.com/" + id}, nil
}

func (f *fakeHelpdesk) AppendNote(_ context.Context, ticketID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.notes[ticketID] = append(f.notes[ticketID], text)
	return nil
}

func (f *fakeHelpdesk) FetchRecords(context.Context, helpdesk.RecordQuery) ([]domain.AnalyticsRecord, error) {
	return nil, nil
}

func (f *fakeHelpdesk) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type handoffFixture struct {
	service  *HandoffService
	helpdesk *fakeHelpdesk
	tickets  *dedup.MemoryTicketStore
	clock    *clock.Manual
	events   *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) byType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []events.Event
	for _, event := range r.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func newHandoffFixture(t *testing.T) *handoffFixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	tickets := dedup.NewMemoryTicketStore(dedup.MemoryOptions{
		SweepInterval: time.Hour,
		Clock:         clk,
	})
	t.Cleanup(tickets.Close)

	desk := newFakeHelpdesk()
	recorder := &eventRecorder{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventDeduplicated,
		events.EventNoteAppended,
		events.EventNoteAppendFailed,
	} {
		dispatcher.Subscribe(eventType, recorder.record)
	}

	return &handoffFixture{
		service: NewHandoffService(HandoffDependencies{
			TicketStore: tickets,
			Helpdesk:    desk,
			Dispatcher:  dispatcher,
			Clock:       clk,
		}),
		helpdesk: desk,
		tickets:  tickets,
		clock:    clk,
		events:   recorder,
	}
}

func wifiPayload(correlationKey string) domain.HandoffPayload {
	return domain.HandoffPayload{
		Summary:        "Customer reports intermittent WiFi drops after router reset",
		Category:       domain.CategoryWiFi,
		Reason:         domain.ReasonTwoStepsNoResolve,
		CallerNumber:   "+15551234567",
		CorrelationKey: correlationKey,
		Source:         domain.SourceVoiceAgent,
	}
}

func TestHandoffCreatesTicketAndAppendsNote(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	result, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, "T-1", result.TicketID)
	assert.Equal(t, domain.CategoryWiFi, result.Category)
	assert.Equal(t, domain.ReasonTwoStepsNoResolve, result.Reason)

	notes := fx.helpdesk.notes["T-1"]
	require.Len(t, notes, 1)
	assert.True(t, strings.HasPrefix(notes[0], "Category: WiFi\nReason: TwoStepsNoResolve\n"))
	assert.LessOrEqual(t, len(notes[0]), 350)

	assert.Len(t, fx.events.byType(events.EventTicketCreated), 1)
	assert.Len(t, fx.events.byType(events.EventNoteAppended), 1)
}

func TestHandoffDeduplicatesWithinWindow(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	first, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)
	require.True(t, first.Created)

	fx.clock.Advance(3 * time.Hour)
	second, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.TicketID, second.TicketID)
	assert.Equal(t, 1, fx.helpdesk.createCount())
	// The duplicate handoff still lands its note on the existing ticket.
	assert.Len(t, fx.helpdesk.notes[first.TicketID], 2)
	assert.Len(t, fx.events.byType(events.EventDeduplicated), 1)
}

func TestHandoffDedupExpiresWithWindow(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	first, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)

	fx.clock.Advance(dedup.DefaultTicketDedupWindow + time.Minute)
	second, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)

	assert.True(t, second.Created)
	assert.NotEqual(t, first.TicketID, second.TicketID)
	assert.Equal(t, 2, fx.helpdesk.createCount())
}

func TestHandoffCallerCategoryFallbackDedup(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	payload := wifiPayload("")
	first, err := fx.service.Handoff(ctx, payload)
	require.NoError(t, err)

	second, err := fx.service.Handoff(ctx, payload)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.TicketID, second.TicketID)

	// A different category for the same caller is a separate issue.
	outage := payload
	outage.Category = domain.CategoryOutage
	outage.Reason = domain.ReasonOther
	outage.Summary = "Whole area outage reported"
	third, err := fx.service.Handoff(ctx, outage)
	require.NoError(t, err)
	assert.True(t, third.Created)
}

func TestHandoffWithoutDedupKeysAlwaysCreates(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	payload := domain.HandoffPayload{Summary: "General question, nothing identifying"}
	first, err := fx.service.Handoff(ctx, payload)
	require.NoError(t, err)
	second, err := fx.service.Handoff(ctx, payload)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.TicketID, second.TicketID)
}

func TestHandoffCreateFailureRemembersNothing(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	fx.helpdesk.createErr = errors.New("helpdesk down")
	_, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.Error(t, err)
	assert.Equal(t, "HELPDESK_UNAVAILABLE", apperrors.ToDomainError(err).Code)

	// The failed attempt must not poison the dedup cache: a retry creates.
	fx.helpdesk.createErr = nil
	result, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestHandoffAppendFailureKeepsTicketRemembered(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	fx.helpdesk.appendErr = errors.New("notes endpoint down")
	result, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.Error(t, err)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "NOTE_APPEND_FAILED", domainErr.Code)
	assert.Equal(t, "T-1", result.TicketID)
	assert.Len(t, fx.events.byType(events.EventNoteAppendFailed), 1)

	// The ticket exists, so a retry dedups instead of double-creating.
	fx.helpdesk.appendErr = nil
	retry, err := fx.service.Handoff(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)
	assert.False(t, retry.Created)
	assert.Equal(t, result.TicketID, retry.TicketID)
	assert.Equal(t, 1, fx.helpdesk.createCount())
}

func TestConcurrentHandoffsCoalesce(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]domain.HandoffResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.service.Handoff(ctx, wifiPayload("conv-race"))
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if results[i].Created {
			created++
		}
		assert.Equal(t, results[0].TicketID, results[i].TicketID)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, fx.helpdesk.createCount())
}

func TestRenderNotePrefersPreRenderedNote(t *testing.T) {
	fx := newHandoffFixture(t)

	raw := "Category: CGNAT\nReason: CallerRequested\nSummary: Needs a public IP\nConfidence: 0.9"
	rendered, components, err := fx.service.RenderNote(domain.HandoffPayload{Note: raw})
	require.NoError(t, err)

	assert.Equal(t, raw, rendered)
	assert.Equal(t, domain.CategoryCGNAT, components.Category)
	assert.Equal(t, domain.ReasonCallerRequested, components.Reason)
	assert.Equal(t, 0.9, components.Confidence)
}

func TestRenderNoteInfersMissingClassification(t *testing.T) {
	fx := newHandoffFixture(t)

	_, components, err := fx.service.RenderNote(domain.HandoffPayload{
		Summary: "wifi keeps dropping, already tried restarting twice",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryWiFi, components.Category)
	assert.Equal(t, domain.ReasonTwoStepsNoResolve, components.Reason)
	assert.Equal(t, defaultConfidence, components.Confidence)
}

func TestRenderNoteRejectsMissingSummary(t *testing.T) {
	fx := newHandoffFixture(t)

	_, _, err := fx.service.RenderNote(domain.HandoffPayload{})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestRenderNoteRejectsInvalidExplicitEnums(t *testing.T) {
	fx := newHandoffFixture(t)

	_, _, err := fx.service.RenderNote(domain.HandoffPayload{
		Summary:  "something broke",
		Category: "BANANAS",
	})
	require.Error(t, err)

	_, _, err = fx.service.RenderNote(domain.HandoffPayload{
		Summary: "something broke",
		Reason:  "MOON_PHASE",
	})
	require.Error(t, err)
}

func TestCreateTicketBypassesDedupButRemembers(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	first, err := fx.service.CreateTicket(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)
	second, err := fx.service.CreateTicket(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.TicketID, second.TicketID)

	// Later find-or-create sees the most recent forced ticket.
	found, err := fx.service.FindOrCreateTicket(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)
	assert.False(t, found.Created)
	assert.Equal(t, second.TicketID, found.TicketID)
}

func TestFindOrCreateDoesNotAppend(t *testing.T) {
	fx := newHandoffFixture(t)
	ctx := context.Background()

	result, err := fx.service.FindOrCreateTicket(ctx, wifiPayload("conv-1"))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Empty(t, fx.helpdesk.notes[result.TicketID])
}

func TestAppendNoteRequiresTicketID(t *testing.T) {
	fx := newHandoffFixture(t)

	err := fx.service.AppendNote(context.Background(), "", "", "note text", domain.SourceChatAgent)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}
