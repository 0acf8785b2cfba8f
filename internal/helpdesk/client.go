// Package helpdesk talks to the external helpdesk system. Its internals
// are opaque; it is the source of truth for ticket existence and is assumed
// reliable but slow and fallible.
package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// DefaultRequestTimeout bounds every helpdesk call. A timeout surfaces as
// an error, never as absence of a ticket.
const DefaultRequestTimeout = 10 * time.Second

// TicketRef identifies a ticket in the helpdesk.
type TicketRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateTicketInput is the payload for ticket creation.
type CreateTicketInput struct {
	Description  string                  `json:"description"`
	Category     domain.Category         `json:"category"`
	Reason       domain.EscalationReason `json:"escalation_reason"`
	CallerNumber string                  `json:"caller_number,omitempty"`
	Source       domain.Source           `json:"source,omitempty"`
	Meta         map[string]string       `json:"meta,omitempty"`
}

// RecordQuery filters analytics record fetches.
type RecordQuery struct {
	From    time.Time
	To      time.Time
	Service string
	Kind    domain.RecordKind
}

// Client is the helpdesk boundary consumed by the orchestrator and the
// analytics service.
type Client interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (TicketRef, error)
	AppendNote(ctx context.Context, ticketID, text string) error
	FetchRecords(ctx context.Context, query RecordQuery) ([]domain.AnalyticsRecord, error)
}

// HTTPClient implements Client against the helpdesk REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds a client with an explicit per-request timeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateTicket implements Client.
func (c *HTTPClient) CreateTicket(ctx context.Context, input CreateTicketInput) (TicketRef, error) {
	var ref TicketRef
	if err := c.postJSON(ctx, "/api/tickets", input, &ref); err != nil {
		return TicketRef{}, err
	}
	if ref.ID == "" {
		return TicketRef{}, fmt.Errorf("helpdesk returned ticket without id")
	}
	return ref, nil
}

// AppendNote implements Client.
func (c *HTTPClient) AppendNote(ctx context.Context, ticketID, text string) error {
	body := map[string]string{"text": text}
	path := "/api/tickets/" + url.PathEscape(ticketID) + "/notes"
	return c.postJSON(ctx, path, body, nil)
}

// FetchRecords implements Client.
func (c *HTTPClient) FetchRecords(ctx context.Context, query RecordQuery) ([]domain.AnalyticsRecord, error) {
	params := url.Values{}
	if !query.From.IsZero() {
		params.Set("from", query.From.Format(time.RFC3339))
	}
	if !query.To.IsZero() {
		params.Set("to", query.To.Format(time.RFC3339))
	}
	if query.Service != "" {
		params.Set("service", query.Service)
	}
	if query.Kind != "" {
		params.Set("kind", string(query.Kind))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/records?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var payload struct {
		Records []recordDTO `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	records := make([]domain.AnalyticsRecord, 0, len(payload.Records))
	for _, dto := range payload.Records {
		records = append(records, dto.toDomain())
	}
	return records, nil
}

type recordDTO struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	OpenedAt    time.Time  `json:"opened_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	Category    string     `json:"category"`
	Service     string     `json:"service"`
	CustomerID  string     `json:"customer_id"`
	Description string     `json:"description"`
}

func (d recordDTO) toDomain() domain.AnalyticsRecord {
	kind := domain.RecordKindTicket
	if domain.RecordKind(d.Kind) == domain.RecordKindEscalation {
		kind = domain.RecordKindEscalation
	}
	return domain.AnalyticsRecord{
		ID:          d.ID,
		Kind:        kind,
		OpenedAt:    d.OpenedAt,
		ResolvedAt:  d.ResolvedAt,
		Category:    domain.Category(d.Category),
		Service:     d.Service,
		CustomerID:  d.CustomerID,
		Description: d.Description,
	}
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *HTTPClient) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("helpdesk responded %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}
