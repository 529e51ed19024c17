package flow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultSessionTTL      = 24 * time.Hour
	DefaultSessionCapacity = 10000
	defaultJanitorInterval = 10 * time.Minute
)

// Store persists per-user sessions. A missing user yields NewSession().
type Store interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Put(ctx context.Context, userID int64, s Session) error
}

// Tracker serializes read-advance-write cycles per user on top of a Store.
// Sessions of different users never contend for the same lock.
type Tracker struct {
	store Store
	locks [lockStripes]sync.Mutex
}

const lockStripes = 32

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

func (t *Tracker) lock(userID int64) *sync.Mutex {
	return &t.locks[uint64(userID)%lockStripes]
}

// Advance feeds one input through the machine and persists the outcome.
func (t *Tracker) Advance(ctx context.Context, userID int64, input string) (Result, error) {
	mu := t.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	s, err := t.store.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load session for user %d: %w", userID, err)
	}
	res := Advance(s, input)
	if res.Advanced {
		if err := t.store.Put(ctx, userID, res.Session); err != nil {
			return Result{}, fmt.Errorf("store session for user %d: %w", userID, err)
		}
	}
	return res, nil
}

// Peek returns the user's current session without touching it.
func (t *Tracker) Peek(ctx context.Context, userID int64) (Session, error) {
	mu := t.lock(userID)
	mu.Lock()
	defer mu.Unlock()
	return t.store.Get(ctx, userID)
}

// MemoryStore keeps sessions in a sharded in-process map with TTL and a
// capacity bound, so abandoned conversations do not pile up forever.
type MemoryStore struct {
	ttl      time.Duration
	capacity int

	shards [shardCount]memoryShard
}

const shardCount = 16

type memoryShard struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

func NewMemoryStore(ttl time.Duration, capacity int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	m := &MemoryStore{ttl: ttl, capacity: capacity}
	for i := range m.shards {
		m.shards[i].sessions = make(map[int64]Session)
	}
	return m
}

func (m *MemoryStore) shard(userID int64) *memoryShard {
	return &m.shards[uint64(userID)%shardCount]
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	sh := m.shard(userID)
	sh.mu.RLock()
	s, ok := sh.sessions[userID]
	sh.mu.RUnlock()
	if !ok || time.Since(s.UpdatedAt) > m.ttl {
		return NewSession(), nil
	}
	return s, nil
}

func (m *MemoryStore) Put(_ context.Context, userID int64, s Session) error {
	sh := m.shard(userID)
	sh.mu.Lock()
	sh.sessions[userID] = s
	if len(sh.sessions) > m.capacity/shardCount+1 {
		evictOldestLocked(sh.sessions)
	}
	sh.mu.Unlock()
	return nil
}

func evictOldestLocked(sessions map[int64]Session) {
	var (
		oldestID int64
		oldest   time.Time
		found    bool
	)
	for id, s := range sessions {
		if !found || s.UpdatedAt.Before(oldest) {
			oldestID, oldest, found = id, s.UpdatedAt, true
		}
	}
	if found {
		delete(sessions, oldestID)
	}
}

// StartJanitor drops expired sessions on a fixed interval until ctx ends.
func (m *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.dropExpired()
			}
		}
	}()
}

func (m *MemoryStore) dropExpired() {
	cutoff := time.Now().Add(-m.ttl)
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if s.UpdatedAt.Before(cutoff) {
				delete(sh.sessions, id)
			}
		}
		sh.mu.Unlock()
	}
}

// Len reports the number of live sessions across all shards.
func (m *MemoryStore) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
