package dedup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/handoff-bridge/internal/clock"
	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// Redis-backed stores share dedup and idempotency state across processes.
// SETNX with a TTL is the compare-and-set that keeps concurrent writers
// from clobbering the first recorded result; Redis key expiry replaces the
// in-memory sweeper.

const (
	idempotencyKeyPrefix = "handoff:idem:"
	correlationKeyPrefix = "handoff:dedup:corr:"
	callerKeyPrefix      = "handoff:dedup:caller:"
)

// RedisIdempotencyStore implements IdempotencyStore on a shared Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  clock.Clock
}

// NewRedisIdempotencyStore builds the store. TTL defaults to the standard
// idempotency window.
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration, clk clock.Clock) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if clk == nil {
		clk = clock.System()
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl, clock: clk}
}

// Check implements IdempotencyStore.
func (s *RedisIdempotencyStore) Check(ctx context.Context, key, payloadHash string) (IdempotencyRecord, CheckOutcome, error) {
	raw, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return IdempotencyRecord{}, OutcomeMiss, nil
	}
	if err != nil {
		return IdempotencyRecord{}, OutcomeMiss, err
	}
	var entry IdempotencyRecord
	if err := json.Unmarshal(raw, &entry); err != nil {
		return IdempotencyRecord{}, OutcomeMiss, err
	}
	if entry.PayloadHash != payloadHash {
		return IdempotencyRecord{}, OutcomeConflict, nil
	}
	return entry, OutcomeHit, nil
}

// Record implements IdempotencyStore. The first writer for a key wins.
func (s *RedisIdempotencyStore) Record(ctx context.Context, key, payloadHash string, response []byte, statusCode int) error {
	entry := IdempotencyRecord{
		Response:    response,
		StatusCode:  statusCode,
		PayloadHash: payloadHash,
		StoredAt:    s.clock.Now(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, idempotencyKeyPrefix+key, raw, s.ttl).Err()
}

// Close implements IdempotencyStore. The Redis client is owned by the
// composition root.
func (s *RedisIdempotencyStore) Close() {}

// RedisTicketStore implements TicketStore on a shared Redis.
type RedisTicketStore struct {
	client *redis.Client
	window time.Duration
	clock  clock.Clock
}

// NewRedisTicketStore builds the store. The window defaults to the
// standard ticket dedup window.
func NewRedisTicketStore(client *redis.Client, window time.Duration, clk clock.Clock) *RedisTicketStore {
	if window <= 0 {
		window = DefaultTicketDedupWindow
	}
	if clk == nil {
		clk = clock.System()
	}
	return &RedisTicketStore{client: client, window: window, clock: clk}
}

type redisTicketRecord struct {
	TicketID       string          `json:"ticket_id"`
	TicketURL      string          `json:"ticket_url"`
	CreatedAt      time.Time       `json:"created_at"`
	CorrelationKey string          `json:"correlation_key,omitempty"`
	CallerNumber   string          `json:"caller_number,omitempty"`
	Category       domain.Category `json:"category,omitempty"`
}

// Find implements TicketStore. Correlation-key matches win over
// caller+category matches.
func (s *RedisTicketStore) Find(ctx context.Context, keys DedupKeys) (domain.TicketRecord, bool, error) {
	if keys.CorrelationKey != "" {
		record, ok, err := s.get(ctx, correlationKeyPrefix+keys.CorrelationKey)
		if err != nil || ok {
			return record, ok, err
		}
	}
	if keys.CallerNumber != "" && keys.Category != "" {
		return s.get(ctx, callerKeyPrefix+callerKey(keys.CallerNumber, keys.Category))
	}
	return domain.TicketRecord{}, false, nil
}

// Remember implements TicketStore.
func (s *RedisTicketStore) Remember(ctx context.Context, keys DedupKeys, record domain.TicketRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.clock.Now()
	}
	raw, err := json.Marshal(redisTicketRecord{
		TicketID:       record.TicketID,
		TicketURL:      record.TicketURL,
		CreatedAt:      record.CreatedAt,
		CorrelationKey: record.CorrelationKey,
		CallerNumber:   record.CallerNumber,
		Category:       record.Category,
	})
	if err != nil {
		return err
	}
	if keys.CorrelationKey != "" {
		if err := s.client.SetNX(ctx, correlationKeyPrefix+keys.CorrelationKey, raw, s.window).Err(); err != nil {
			return err
		}
	}
	if keys.CallerNumber != "" && keys.Category != "" {
		if err := s.client.SetNX(ctx, callerKeyPrefix+callerKey(keys.CallerNumber, keys.Category), raw, s.window).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close implements TicketStore.
func (s *RedisTicketStore) Close() {}

func (s *RedisTicketStore) get(ctx context.Context, key string) (domain.TicketRecord, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return domain.TicketRecord{}, false, nil
	}
	if err != nil {
		return domain.TicketRecord{}, false, err
	}
	var stored redisTicketRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.TicketRecord{}, false, err
	}
	record := domain.TicketRecord{
		TicketID:       stored.TicketID,
		TicketURL:      stored.TicketURL,
		CreatedAt:      stored.CreatedAt,
		CorrelationKey: stored.CorrelationKey,
		CallerNumber:   stored.CallerNumber,
		Category:       stored.Category,
	}
	// Key expiry enforces the window, but guard against clock drift on the
	// stored timestamp as the memory store does.
	if s.clock.Now().Sub(record.CreatedAt) > s.window {
		return domain.TicketRecord{}, false, nil
	}
	return record, true, nil
}
