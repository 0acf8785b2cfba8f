package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for handoff outcomes.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	ticketsCreated    int64
	dedupHits         int64
	idempotentReplays int64
	helpdeskFailures  map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:     make(map[string]int64),
		errorCount:       make(map[string]int64),
		helpdeskFailures: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTicketCreated counts a helpdesk ticket opened by the bridge.
func (m *Metrics) RecordTicketCreated() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketsCreated++
}

// RecordDedupHit counts a handoff resolved to an existing ticket.
func (m *Metrics) RecordDedupHit() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dedupHits++
}

// RecordIdempotentReplay counts a request answered from the idempotency
// cache without re-executing side effects.
func (m *Metrics) RecordIdempotentReplay() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotentReplays++
}

// RecordHelpdeskFailure counts a failed helpdesk call by operation.
func (m *Metrics) RecordHelpdeskFailure(operation string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.helpdeskFailures[operation]++
}

// Snapshot returns current counter values for the health endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := map[string]int64{
		"tickets_created":    m.ticketsCreated,
		"dedup_hits":         m.dedupHits,
		"idempotent_replays": m.idempotentReplays,
	}
	for operation, count := range m.helpdeskFailures {
		snapshot["helpdesk_failures_"+operation] = count
	}
	return snapshot
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
