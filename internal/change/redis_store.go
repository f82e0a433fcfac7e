package change

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gigharvest/internal/domain"
)

// keyPrefix namespaces snapshot keys in Redis.
const keyPrefix = "gigharvest:snapshot:"

// RedisSnapshotStore persists per-source snapshots in Redis as JSON.
type RedisSnapshotStore struct {
	client *redis.Client
}

// NewRedisSnapshotStore creates a Redis-backed snapshot store.
func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

// Read returns the prior snapshot for a source, or an empty slice when
// none exists.
func (s *RedisSnapshotStore) Read(ctx context.Context, source string) ([]domain.Gig, error) {
	data, err := s.client.Get(ctx, keyPrefix+source).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", source, err)
	}

	var gigs []domain.Gig
	if unmarshalErr := json.Unmarshal(data, &gigs); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", source, unmarshalErr)
	}
	return gigs, nil
}

// Write replaces the snapshot for a source.
func (s *RedisSnapshotStore) Write(ctx context.Context, source string, gigs []domain.Gig) error {
	data, err := json.Marshal(gigs)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", source, err)
	}

	if setErr := s.client.Set(ctx, keyPrefix+source, data, 0).Err(); setErr != nil {
		return fmt.Errorf("failed to write snapshot for %s: %w", source, setErr)
	}
	return nil
}

// MemorySnapshotStore keeps snapshots in process memory. Used in tests
// and single-shot CLI runs where no Redis is configured.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]domain.Gig
}

// NewMemorySnapshotStore creates an in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string][]domain.Gig)}
}

// Read returns the prior snapshot for a source.
func (s *MemorySnapshotStore) Read(_ context.Context, source string) ([]domain.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.snapshots[source]
	out := make([]domain.Gig, len(stored))
	copy(out, stored)
	return out, nil
}

// Write replaces the snapshot for a source.
func (s *MemorySnapshotStore) Write(_ context.Context, source string, gigs []domain.Gig) error {
	stored := make([]domain.Gig, len(gigs))
	copy(stored, gigs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[source] = stored
	return nil
}
