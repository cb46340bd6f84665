package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const metaKeyPrefix = "artifact:"

// MetaStore holds artifact pair metadata with TTL-based expiry.
type MetaStore interface {
	Put(ctx context.Context, a *Artifact) error
	Get(ctx context.Context, fileID string) (*Artifact, error)
	MarkDelivered(ctx context.Context, fileID string) error
}

type redisMetaStore struct {
	client *redis.Client
}

// NewRedisMetaStore stores pair metadata as JSON values under artifact:<id>
// with the artifact TTL; expiry needs no sweeper, the key simply vanishes.
func NewRedisMetaStore(client *redis.Client) MetaStore {
	return &redisMetaStore{client: client}
}

func (m *redisMetaStore) Put(ctx context.Context, a *Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, metaKeyPrefix+a.FileID, data, TTL).Err()
}

func (m *redisMetaStore) Get(ctx context.Context, fileID string) (*Artifact, error) {
	data, err := m.client.Get(ctx, metaKeyPrefix+fileID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *redisMetaStore) MarkDelivered(ctx context.Context, fileID string) error {
	a, err := m.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if a.State == StateDelivered {
		return nil
	}
	a.State = StateDelivered
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	// Keep the original expiry window; delivery does not extend it.
	return m.client.Set(ctx, metaKeyPrefix+fileID, data, redis.KeepTTL).Err()
}

type memoryMetaStore struct {
	mu    sync.Mutex
	pairs map[string]*Artifact
	now   func() time.Time
}

// NewMemoryMetaStore keeps pair metadata in process memory. Used in tests and
// cache-less development setups.
func NewMemoryMetaStore() MetaStore {
	return &memoryMetaStore{pairs: make(map[string]*Artifact), now: time.Now}
}

func (m *memoryMetaStore) Put(_ context.Context, a *Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *a
	m.pairs[a.FileID] = &copied
	return nil
}

func (m *memoryMetaStore) Get(_ context.Context, fileID string) (*Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.pairs[fileID]
	if !ok || m.now().Sub(a.CreatedAt) > TTL {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memoryMetaStore) MarkDelivered(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.pairs[fileID]
	if !ok {
		return ErrNotFound
	}
	a.State = StateDelivered
	return nil
}
