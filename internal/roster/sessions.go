package roster

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultSessionTTL is how long an idle session keeps its cache
const DefaultSessionTTL = 12 * time.Hour

// Sessions owns one Cache per interactive session. A session that stays idle
// for the TTL is dropped together with its entries.
type Sessions struct {
	store    EntryStore
	ttl      time.Duration
	sessions *gocache.Cache
}

// NewSessions creates a registry whose caches keep entries in store
func NewSessions(store EntryStore, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	sessions := gocache.New(ttl, ttl/4)
	sessions.OnEvicted(func(id string, v interface{}) {
		if err := v.(*Cache).Purge(); err != nil {
			slog.Warn("Failed to purge expired session", "session", id, "error", err)
			return
		}
		slog.Info("Session expired", "session", id)
	})
	return &Sessions{store: store, ttl: ttl, sessions: sessions}
}

// New starts a session and returns its ID and cache
func (s *Sessions) New() (string, *Cache) {
	id := uuid.NewString()
	return id, s.Lookup(id)
}

// Lookup returns the cache of session id, recreating it over the store if
// the registry no longer knows it (for example after a restart with a
// durable store). Each lookup extends the session's lifetime.
func (s *Sessions) Lookup(id string) *Cache {
	candidate := NewCache(s.store, id)
	if err := s.sessions.Add(id, candidate, gocache.DefaultExpiration); err == nil {
		return candidate
	}

	v, ok := s.sessions.Get(id)
	if !ok {
		// Expired between Add and Get
		s.sessions.Set(id, candidate, gocache.DefaultExpiration)
		return candidate
	}
	cache := v.(*Cache)
	s.sessions.Set(id, cache, gocache.DefaultExpiration)
	return cache
}

// Restore registers namespaces already present in a durable store as idle
// sessions, so the ones whose cookie never comes back expire and are purged
// like any other. Namespaces that are not session IDs are purged right away.
// It returns the number of sessions restored.
func (s *Sessions) Restore(namespaces []string) int {
	restored := 0
	for _, ns := range namespaces {
		if !s.Valid(ns) {
			if err := s.store.Purge(ns); err != nil {
				slog.Warn("Failed to purge stray namespace", "namespace", ns, "error", err)
			}
			continue
		}
		if err := s.sessions.Add(ns, NewCache(s.store, ns), gocache.DefaultExpiration); err == nil {
			restored++
		}
	}
	return restored
}

// Valid reports whether id has the shape of a session ID issued by New
func (s *Sessions) Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Count returns the number of live sessions
func (s *Sessions) Count() int {
	return s.sessions.ItemCount()
}
