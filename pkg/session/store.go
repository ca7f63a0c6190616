package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long an idle session survives before eviction.
const DefaultTTL = time.Hour

// Store is the pluggable session storage behind the orchestration engine.
// The engine works identically against the in-memory store and the
// Redis-backed store.
type Store interface {
	// GetOrCreate returns the live session for id, creating it atomically if
	// absent. Concurrent callers with the same new id observe the same
	// *Session instance; exactly one is ever created per id.
	GetOrCreate(ctx context.Context, id string) (*Session, error)

	// Get returns the live session for id, or nil, nil if absent or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists the session after a turn. The in-memory store treats
	// this as a no-op since the map already holds the live object.
	Save(ctx context.Context, s *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Close releases background resources.
	Close()
}

// MemoryStore is a thread-safe in-memory Store with TTL-based eviction.
// Expired sessions are dropped opportunistically on access and swept by a
// background loop. Suitable for single-node deployments; distributed
// deployments use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL sets the session time-to-live.
func WithTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = d }
}

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.sweepInterval = d }
}

// WithClock overrides the store's time source. Tests use this to drive
// expiry without sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions:      make(map[string]*Session),
		ttl:           DefaultTTL,
		sweepInterval: 5 * time.Minute,
		now:           time.Now,
		stopSweep:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok {
		if !sess.Expired(now, s.ttl) {
			return sess, nil
		}
		// Stale entry under a reused id: evict and start fresh.
		delete(s.sessions, id)
	}

	sess := New(id, now)
	s.sessions[id] = sess
	return sess, nil
}

// Get implements Store. Returns nil, nil when the session is absent or
// expired; expired entries are evicted on the spot.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if sess.Expired(s.now(), s.ttl) {
		delete(s.sessions, id)
		return nil, nil
	}
	return sess, nil
}

// Save implements Store. The map already holds the live object.
func (s *MemoryStore) Save(context.Context, *Session) error { return nil }

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stopSweep) })
}

// Len returns the number of live sessions. Used by stats reporting.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) sweepLoop() {
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

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if sess.Expired(now, s.ttl) {
			delete(s.sessions, id)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
