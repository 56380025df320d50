package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/tandas/pkg/application/services/composer"
)

// ErrSessionNotFound is returned for unknown, expired or malformed session ids
var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 1000
)

// SessionConfig bounds the registry. Zero values take the defaults.
type SessionConfig struct {
	// IdleTTL drops sessions not used for this long
	IdleTTL time.Duration
	// MaxSessions evicts the least recently used session when exceeded
	MaxSessions int
	Now         func() time.Time
}

type session struct {
	composer *composer.Composer
	lastUsed time.Time
}

// SessionRegistry keeps one Composer per operator session. Idle sessions
// expire and the number of open sessions is capped.
type SessionRegistry struct {
	factory     func() *composer.Composer
	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewSessionRegistry creates a registry with default limits
func NewSessionRegistry(factory func() *composer.Composer) *SessionRegistry {
	return NewSessionRegistryWithConfig(SessionConfig{}, factory)
}

// NewSessionRegistryWithConfig creates a registry with custom limits
func NewSessionRegistryWithConfig(config SessionConfig, factory func() *composer.Composer) *SessionRegistry {
	ttl := config.IdleTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	maxSessions := config.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &SessionRegistry{
		factory:     factory,
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         now,
		sessions:    make(map[uuid.UUID]*session),
	}
}

// Create starts a session and loads its lines and pools. A session whose
// load failed is not registered.
func (r *SessionRegistry) Create(ctx context.Context) (uuid.UUID, *composer.Composer, error) {
	c := r.factory()
	if err := c.Load(ctx); err != nil {
		return uuid.Nil, nil, err
	}

	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.expire(now)
	for len(r.sessions) >= r.maxSessions {
		r.evictOldest()
	}
	r.sessions[id] = &session{composer: c, lastUsed: now}
	return id, c, nil
}

// Get returns the composer of a session and marks the session used
func (r *SessionRegistry) Get(id string) (*composer.Composer, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[parsed]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if now.Sub(s.lastUsed) > r.ttl {
		delete(r.sessions, parsed)
		return nil, ErrSessionNotFound
	}
	s.lastUsed = now
	return s.composer, nil
}

// Delete ends a session; it reports whether the session existed
func (r *SessionRegistry) Delete(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[parsed]; !ok {
		return false
	}
	delete(r.sessions, parsed)
	return true
}

// Len returns the number of open sessions, expired ones excluded
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expire(r.now())
	return len(r.sessions)
}

func (r *SessionRegistry) expire(now time.Time) {
	for id, s := range r.sessions {
		if now.Sub(s.lastUsed) > r.ttl {
			delete(r.sessions, id)
		}
	}
}

func (r *SessionRegistry) evictOldest() {
	var oldest uuid.UUID
	var oldestAt time.Time
	first := true
	for id, s := range r.sessions {
		if first || s.lastUsed.Before(oldestAt) {
			oldest, oldestAt, first = id, s.lastUsed, false
		}
	}
	delete(r.sessions, oldest)
}
