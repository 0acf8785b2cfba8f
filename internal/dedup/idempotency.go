// Package dedup holds the idempotency and ticket-dedup caches that sit
// between inbound handoff events and ticket creation. The caches are not a
// source of truth; the helpdesk is.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/handoff-bridge/internal/clock"
)

// Idempotency defaults.
const (
	DefaultIdempotencyTTL    = 15 * time.Minute
	DefaultSweepInterval     = 5 * time.Minute
	DefaultTicketDedupWindow = 4 * time.Hour
)

// CheckOutcome is the result of an idempotency lookup.
type CheckOutcome int

const (
	// OutcomeMiss means the key is unseen; business logic proceeds.
	OutcomeMiss CheckOutcome = iota
	// OutcomeHit means the key was seen with the same payload; the stored
	// response must be replayed without re-executing side effects.
	OutcomeHit
	// OutcomeConflict means the key was seen with a different payload.
	OutcomeConflict
)

// IdempotencyRecord stores the response produced for a completed request so
// replays can return it verbatim.
type IdempotencyRecord struct {
	Response    []byte    `json:"response"`
	StatusCode  int       `json:"status_code"`
	PayloadHash string    `json:"payload_hash"`
	StoredAt    time.Time `json:"stored_at"`
}

// IdempotencyStore is the idempotency guard contract.
type IdempotencyStore interface {
	// Check resolves a client idempotency key against the payload hash.
	Check(ctx context.Context, key, payloadHash string) (IdempotencyRecord, CheckOutcome, error)
	// Record persists the response produced for a fresh key. Called exactly
	// once per successful request.
	Record(ctx context.Context, key, payloadHash string, response []byte, statusCode int) error
	// Close stops background eviction.
	Close()
}

// MemoryIdempotencyStore is the single-process implementation: a plain map
// guarded by a mutex, swept periodically.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]IdempotencyRecord

	ttl   time.Duration
	clock clock.Clock

	stop      chan struct{}
	closeOnce sync.Once
}

// MemoryOptions configures a memory-backed store.
type MemoryOptions struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
}

func (o *MemoryOptions) applyIdempotencyDefaults() {
	if o.TTL <= 0 {
		o.TTL = DefaultIdempotencyTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Clock == nil {
		o.Clock = clock.System()
	}
}

// NewMemoryIdempotencyStore constructs the store and starts its sweeper.
func NewMemoryIdempotencyStore(opts MemoryOptions) *MemoryIdempotencyStore {
	opts.applyIdempotencyDefaults()
	s := &MemoryIdempotencyStore{
		entries: make(map[string]IdempotencyRecord),
		ttl:     opts.TTL,
		clock:   opts.Clock,
		stop:    make(chan struct{}),
	}
	go s.sweepLoop(opts.SweepInterval)
	return s
}

// Check implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Check(_ context.Context, key, payloadHash string) (IdempotencyRecord, CheckOutcome, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.Sub(entry.StoredAt) > s.ttl {
		return IdempotencyRecord{}, OutcomeMiss, nil
	}
	if entry.PayloadHash != payloadHash {
		return IdempotencyRecord{}, OutcomeConflict, nil
	}
	return entry, OutcomeHit, nil
}

// Record implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Record(_ context.Context, key, payloadHash string, response []byte, statusCode int) error {
	stored := make([]byte, len(response))
	copy(stored, response)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = IdempotencyRecord{
		Response:    stored,
		StatusCode:  statusCode,
		PayloadHash: payloadHash,
		StoredAt:    s.clock.Now(),
	}
	return nil
}

// Close implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
}

// Len reports the number of live entries.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryIdempotencyStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep removes entries strictly older than the TTL at sweep start. The
// cutoff is fixed before iterating so entries written after the sweep began
// are never touched.
func (s *MemoryIdempotencyStore) sweep() {
	cutoff := s.clock.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if entry.StoredAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}
