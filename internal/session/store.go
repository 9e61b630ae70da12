package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
)

// Store persists attempts by id. Implementations are safe for concurrent use; ordering of
// writes to the same attempt is the caller's concern.
type Store interface {
	Get(ctx context.Context, id string) (domain.Attempt, error)
	Save(ctx context.Context, a domain.Attempt) error
	Delete(ctx context.Context, id string) error
}

func notFound(id string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: id=%s", id))
}

// MemoryStore keeps attempts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string]domain.Attempt)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, notFound(id)
	}
	return a, nil
}

// Save stores the attempt as is. Attempts are values whose transitions copy, so the stored
// one cannot be changed through the caller's copy.
func (s *MemoryStore) Save(_ context.Context, a domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[a.ID] = a
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, id)
	return nil
}

// RedisStore keeps a JSON snapshot of every attempt under <prefix>:session:<id>, expiring
// ttl after the last write.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(r redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: r, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (domain.Attempt, error) {
	b, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return domain.Attempt{}, notFound(id)
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get session %s: %w", id, err)
	}

	var a domain.Attempt
	if err := json.Unmarshal(b, &a); err != nil {
		return domain.Attempt{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return a, nil
}

func (s *RedisStore) Save(ctx context.Context, a domain.Attempt) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", a.ID, err)
	}

	if err := s.redis.Set(ctx, s.key(a.ID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", a.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}
