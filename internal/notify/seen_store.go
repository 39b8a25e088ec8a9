package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenStore remembers, per feed session, which alerts were delivered and
// when the session may rescan.
type SeenStore interface {
	// AcquireScan reports whether the session is outside its cooldown and,
	// if so, starts a new one.
	AcquireScan(ctx context.Context, session string, cooldown time.Duration) (bool, error)
	// MarkSeen records key for the session and reports whether it was new.
	MarkSeen(ctx context.Context, session, key string, ttl time.Duration) (bool, error)
	// Forget drops key so the next scan delivers it again.
	Forget(ctx context.Context, session, key string) error
}

const redisKeyPrefix = "sla:feed:"

// RedisSeenStore keeps feed state in Redis so it survives restarts and is
// shared across instances.
type RedisSeenStore struct {
	client *redis.Client
}

// NewRedisSeenStore wraps a go-redis client.
func NewRedisSeenStore(client *redis.Client) *RedisSeenStore {
	return &RedisSeenStore{client: client}
}

func (s *RedisSeenStore) AcquireScan(ctx context.Context, session string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	return s.client.SetNX(ctx, redisKeyPrefix+session+":cooldown", time.Now().Unix(), cooldown).Result()
}

// MarkSeen stores one key per alert so each expires on its own ttl.
func (s *RedisSeenStore) MarkSeen(ctx context.Context, session, key string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.SetNX(ctx, seenKey(session, key), 1, ttl).Result()
}

func (s *RedisSeenStore) Forget(ctx context.Context, session, key string) error {
	return s.client.Del(ctx, seenKey(session, key)).Err()
}

func seenKey(session, key string) string {
	return redisKeyPrefix + session + ":seen:" + key
}

// MemorySeenStore is a process-local SeenStore.
type MemorySeenStore struct {
	mu       sync.Mutex
	nextScan map[string]time.Time
	seen     map[string]map[string]time.Time
	now      func() time.Time
}

// NewMemorySeenStore creates an empty store. A nil now uses time.Now.
func NewMemorySeenStore(now func() time.Time) *MemorySeenStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySeenStore{
		nextScan: make(map[string]time.Time),
		seen:     make(map[string]map[string]time.Time),
		now:      now,
	}
}

func (s *MemorySeenStore) AcquireScan(_ context.Context, session string, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	if next, ok := s.nextScan[session]; ok && now.Before(next) {
		return false, nil
	}
	if cooldown > 0 {
		s.nextScan[session] = now.Add(cooldown)
	}
	return true, nil
}

func (s *MemorySeenStore) MarkSeen(_ context.Context, session, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	keys, ok := s.seen[session]
	if !ok {
		keys = make(map[string]time.Time)
		s.seen[session] = keys
	}
	if expires, ok := keys[key]; ok && (expires.IsZero() || now.Before(expires)) {
		return false, nil
	}
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	keys[key] = expires
	return true, nil
}

func (s *MemorySeenStore) Forget(_ context.Context, session, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keys, ok := s.seen[session]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.seen, session)
		}
	}
	return nil
}

// sweep drops expired keys, emptied sessions and elapsed cooldowns.
// Callers hold s.mu.
func (s *MemorySeenStore) sweep(now time.Time) {
	for session, next := range s.nextScan {
		if !now.Before(next) {
			delete(s.nextScan, session)
		}
	}
	for session, keys := range s.seen {
		for key, expires := range keys {
			if !expires.IsZero() && !now.Before(expires) {
				delete(keys, key)
			}
		}
		if len(keys) == 0 {
			delete(s.seen, session)
		}
	}
}
