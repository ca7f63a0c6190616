package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lure:session:"

// RedisStore is a Redis-backed Store. Session JSON is written through on
// Save with an expiry matching the remaining TTL, so idle sessions vanish
// from Redis on their own; a background sweep prunes the in-process live map
// the same way.
//
// A single engine process still needs object identity and a single writer
// per session id, so the store keeps the live *Session instances in an
// in-process map; Redis is the persistence layer, not the source of truth
// for an in-flight turn. Cross-process coordination for the same session id
// is out of scope for this deployment model.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	live map[string]*Session

	sweepInterval time.Duration
	stopSweep     chan struct{}
	stopOnce      sync.Once
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisTTL sets the session time-to-live.
func WithRedisTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

// WithRedisSweepInterval sets how often the live-map sweep runs.
func WithRedisSweepInterval(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.sweepInterval = d }
}

// WithRedisClock overrides the store's time source for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// NewRedisStore connects to Redis using a redis:// URL.
func NewRedisStore(url string, opts ...RedisOption) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	s := &RedisStore{
		client:        redis.NewClient(redisOpts),
		ttl:           DefaultTTL,
		now:           time.Now,
		live:          make(map[string]*Session),
		sweepInterval: 5 * time.Minute,
		stopSweep:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s, nil
}

// Ping verifies connectivity. Called once at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetOrCreate implements Store.
func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.live[id]; ok {
		if !sess.Expired(now, s.ttl) {
			return sess, nil
		}
		delete(s.live, id)
		_ = s.client.Del(ctx, redisKeyPrefix+id).Err()
	}

	sess, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = New(id, now)
	}
	s.live[id] = sess
	return sess, nil
}

// Get implements Store. Returns nil, nil when absent or expired.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.live[id]; ok {
		if !sess.Expired(now, s.ttl) {
			return sess, nil
		}
		delete(s.live, id)
		_ = s.client.Del(ctx, redisKeyPrefix+id).Err()
		return nil, nil
	}

	sess, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		s.live[id] = sess
	}
	return sess, nil
}

// load fetches and decodes a session from Redis. Returns nil, nil on miss.
func (s *RedisStore) load(ctx context.Context, id string, now time.Time) (*Session, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}

	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Expired(now, s.ttl) {
		_ = s.client.Del(ctx, redisKeyPrefix+id).Err()
		return nil, nil
	}
	return sess, nil
}

// Save implements Store. The key expiry tracks the session's remaining
// lifetime so Redis-side TTL matches the createdAt-based eviction rule.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return fmt.Errorf("session is nil")
	}

	remaining := s.ttl - s.now().Sub(sess.CreatedAt)
	if remaining <= 0 {
		return s.Delete(ctx, sess.SessionID)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.SessionID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+sess.SessionID, data, remaining).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", sess.SessionID, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
	return s.client.Del(ctx, redisKeyPrefix+id).Err()
}

// Close stops the live-map sweep and releases the Redis connection.
func (s *RedisStore) Close() {
	s.stopOnce.Do(func() { close(s.stopSweep) })
	_ = s.client.Close()
}

// sweepLoop prunes expired entries from the live map. Redis expires its own
// keys, but sessions never touched again would otherwise sit in-process for
// the life of the server.
func (s *RedisStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopSweep:
			return
		}
	}
}

func (s *RedisStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.live {
		if sess.Expired(now, s.ttl) {
			delete(s.live, id)
		}
	}
}

var _ Store = (*RedisStore)(nil)
