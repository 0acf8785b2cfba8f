package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/handoff-bridge/internal/clock"
	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// DedupKeys identify the logical issue an inbound handoff refers to. The
// correlation key is the stronger signal; caller+category is the fallback.
type DedupKeys struct {
	CorrelationKey string
	CallerNumber   string
	Category       domain.Category
}

// KeysFromPayload derives dedup keys from a handoff payload. The caller
// pair only counts when both the number and a classified category exist.
func KeysFromPayload(p domain.HandoffPayload, category domain.Category) DedupKeys {
	keys := DedupKeys{CorrelationKey: p.CorrelationKey}
	if p.CallerNumber != "" && category != "" && category != domain.CategoryUnknown {
		keys.CallerNumber = p.CallerNumber
		keys.Category = category
	}
	return keys
}

// Empty reports whether no usable dedup key exists, in which case dedup is
// skipped and a new ticket is always created.
func (k DedupKeys) Empty() bool {
	return k.CorrelationKey == "" && (k.CallerNumber == "" || k.Category == "")
}

// CoalesceKey returns a single string identity for in-flight coalescing.
func (k DedupKeys) CoalesceKey() string {
	if k.CorrelationKey != "" {
		return "corr|" + k.CorrelationKey
	}
	return "caller|" + k.CallerNumber + "|" + string(k.Category)
}

// TicketStore remembers recently created tickets so duplicate handoffs
// within the recency window resolve to the same ticket.
type TicketStore interface {
	// Find returns a ticket created within the window for the given keys.
	// A correlation-key match wins over a caller+category match.
	Find(ctx context.Context, keys DedupKeys) (domain.TicketRecord, bool, error)
	// Remember stores a freshly created ticket under every available key.
	Remember(ctx context.Context, keys DedupKeys, record domain.TicketRecord) error
	// Close stops background eviction.
	Close()
}

// MemoryTicketStore is the single-process TicketStore.
type MemoryTicketStore struct {
	mu            sync.Mutex
	byCorrelation map[string]domain.TicketRecord
	byCaller      map[string]domain.TicketRecord

	window time.Duration
	clock  clock.Clock

	stop      chan struct{}
	closeOnce sync.Once
}

func (o *MemoryOptions) applyTicketDefaults() {
	if o.TTL <= 0 {
		o.TTL = DefaultTicketDedupWindow
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Clock == nil {
		o.Clock = clock.System()
	}
}

// NewMemoryTicketStore constructs the store and starts its sweeper.
func NewMemoryTicketStore(opts MemoryOptions) *MemoryTicketStore {
	opts.applyTicketDefaults()
	s := &MemoryTicketStore{
		byCorrelation: make(map[string]domain.TicketRecord),
		byCaller:      make(map[string]domain.TicketRecord),
		window:        opts.TTL,
		clock:         opts.Clock,
		stop:          make(chan struct{}),
	}
	go s.sweepLoop(opts.SweepInterval)
	return s
}

// Find implements TicketStore.
func (s *MemoryTicketStore) Find(_ context.Context, keys DedupKeys) (domain.TicketRecord, bool, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if keys.CorrelationKey != "" {
		if record, ok := s.byCorrelation[keys.CorrelationKey]; ok && s.fresh(record, now) {
			return record, true, nil
		}
	}
	if keys.CallerNumber != "" && keys.Category != "" {
		if record, ok := s.byCaller[callerKey(keys.CallerNumber, keys.Category)]; ok && s.fresh(record, now) {
			return record, true, nil
		}
	}
	return domain.TicketRecord{}, false, nil
}

// Remember implements TicketStore.
func (s *MemoryTicketStore) Remember(_ context.Context, keys DedupKeys, record domain.TicketRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if keys.CorrelationKey != "" {
		s.byCorrelation[keys.CorrelationKey] = record
	}
	if keys.CallerNumber != "" && keys.Category != "" {
		s.byCaller[callerKey(keys.CallerNumber, keys.Category)] = record
	}
	return nil
}

// Close implements TicketStore.
func (s *MemoryTicketStore) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
}

func (s *MemoryTicketStore) fresh(record domain.TicketRecord, now time.Time) bool {
	return now.Sub(record.CreatedAt) <= s.window
}

func (s *MemoryTicketStore) sweepLoop(interval time.Duration) {
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

// sweep deletes records strictly older than the window at sweep start.
func (s *MemoryTicketStore) sweep() {
	cutoff := s.clock.Now().Add(-s.window)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.byCorrelation {
		if record.CreatedAt.Before(cutoff) {
			delete(s.byCorrelation, key)
		}
	}
	for key, record := range s.byCaller {
		if record.CreatedAt.Before(cutoff) {
			delete(s.byCaller, key)
		}
	}
}

func callerKey(number string, category domain.Category) string {
	return number + "|" + string(category)
}
