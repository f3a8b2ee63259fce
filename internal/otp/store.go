package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps pending logins keyed by phone number.
type Store interface {
	Save(ctx context.Context, p Pending, ttl time.Duration) error
	Load(ctx context.Context, phone string) (Pending, bool, error)
	Delete(ctx context.Context, phone string) error
}

type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]Pending
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string]Pending)}
}

func (m *MemoryStore) Save(_ context.Context, p Pending, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[p.Phone] = p
	return nil
}

// Load returns the pending login. Expired entries are kept so Verify can
// report ErrExpired rather than ErrNoPending.
func (m *MemoryStore) Load(_ context.Context, phone string) (Pending, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[phone]
	return p, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, phone)
	return nil
}

const redisKeyPrefix = "ispportal:otp:"

// RedisStore shares pending logins between portal instances. Keys expire
// with the code.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Save(ctx context.Context, p Pending, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, redisKeyPrefix+p.Phone, data, ttl).Err()
}

func (r *RedisStore) Load(ctx context.Context, phone string) (Pending, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return Pending{}, false, nil
	}
	if err != nil {
		return Pending{}, false, fmt.Errorf("load OTP: %w", err)
	}
	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		return Pending{}, false, fmt.Errorf("decode OTP: %w", err)
	}
	return p, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, phone string) error {
	return r.client.Del(ctx, redisKeyPrefix+phone).Err()
}
