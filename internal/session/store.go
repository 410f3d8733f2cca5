package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// ErrNotFound is returned for unknown or expired session ids
var ErrNotFound = errors.New("session not found")

// Data is everything kept server-side for one session
type Data struct {
	UserID  int64    `json:"user_id,omitempty"`
	Flashes []string `json:"flashes,omitempty"`
}

// Store persists session data by opaque id
type Store interface {
	Load(ctx context.Context, id string) (Data, error)
	Save(ctx context.Context, id string, data Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// RedisStore shares sessions between app instances
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Load(ctx context.Context, id string) (Data, error) {
	payload, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Data{}, ErrNotFound
	}
	if err != nil {
		return Data{}, err
	}
	var d Data
	if err := json.Unmarshal(payload, &d); err != nil {
		return Data{}, err
	}
	return d, nil
}

func (r *RedisStore) Save(ctx context.Context, id string, data Data, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+id, payload, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, keyPrefix+id).Err()
}

// MemoryStore keeps at most size sessions in process; the least recently
// used one is evicted first.
type MemoryStore struct {
	entries *lru.Cache
	mu      sync.Mutex
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	data    Data
	expires time.Time
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries, now: time.Now}, nil
}

func (m *MemoryStore) clock() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now()
}

func (m *MemoryStore) Load(_ context.Context, id string) (Data, error) {
	v, ok := m.entries.Get(id)
	if !ok {
		return Data{}, ErrNotFound
	}
	e := v.(memoryEntry)
	if !m.clock().Before(e.expires) {
		m.entries.Remove(id)
		return Data{}, ErrNotFound
	}
	// callers must not share the flash slice
	d := e.data
	d.Flashes = append([]string(nil), e.data.Flashes...)
	return d, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, data Data, ttl time.Duration) error {
	data.Flashes = append([]string(nil), data.Flashes...)
	m.entries.Add(id, memoryEntry{data: data, expires: m.clock().Add(ttl)})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.entries.Remove(id)
	return nil
}
