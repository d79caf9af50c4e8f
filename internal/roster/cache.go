package roster

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zombor/roster-scan/internal/scanning"
)

// EntryStore holds cache entries, one record set per identity, grouped by
// namespace (one namespace per session)
type EntryStore interface {
	// Load returns the entry for identity, reporting whether it exists
	Load(namespace, identity string) (scanning.RecordSet, bool, error)

	// Save creates or overwrites the entry for identity
	Save(namespace, identity string, records scanning.RecordSet) error

	// Delete removes the entry for identity
	Delete(namespace, identity string) error

	// List returns the identities stored in namespace
	List(namespace string) ([]string, error)

	// Purge removes every entry of namespace
	Purge(namespace string) error
}

// ComputeFunc produces the record set for an identity on a cache miss
type ComputeFunc func(ctx context.Context) (scanning.RecordSet, error)

// Identity derives the cache key of an upload from its filename. Two
// different images uploaded under the same name share one entry.
func Identity(filename string) string {
	name := filepath.Base(strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/")))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

// Cache memoizes one record set per identity for a single session. Entries
// are never invalidated implicitly; Clear or Refresh replace them.
type Cache struct {
	store     EntryStore
	namespace string

	mu     sync.Mutex
	flight singleflight.Group
}

// DefaultNamespace is used by callers that do not track sessions
const DefaultNamespace = "default"

// refreshKey prefixes forced computes so they get their own flight
const refreshKey = "refresh:"

// NewCache creates a Cache whose entries live in store under namespace
func NewCache(store EntryStore, namespace string) *Cache {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Cache{store: store, namespace: namespace}
}

// Namespace returns the session namespace of the cache
func (c *Cache) Namespace() string {
	return c.namespace
}

// GetOrCompute returns the cached record set for identity, invoking compute
// only on a miss. A successful result is stored; a failure is returned
// without being stored so the next call retries. Concurrent misses for the
// same identity share a single compute call.
func (c *Cache) GetOrCompute(ctx context.Context, identity string, compute ComputeFunc) (scanning.RecordSet, error) {
	records, ok, err := c.Get(identity)
	if err != nil {
		return nil, err
	}
	if ok {
		return records, nil
	}

	v, err, _ := c.flight.Do(identity, func() (interface{}, error) {
		// A flight that finished between Get and Do already stored the entry
		if records, ok, err := c.Get(identity); err != nil || ok {
			return records, err
		}
		return c.computeAndStore(ctx, identity, compute)
	})
	if err != nil {
		return nil, err
	}
	return v.(scanning.RecordSet).Clone(), nil
}

// Refresh forces a new extraction for identity. The existing entry is
// overwritten only when compute succeeds. Concurrent refreshes share a call,
// but a refresh never joins an ordinary miss already in flight.
func (c *Cache) Refresh(ctx context.Context, identity string, compute ComputeFunc) (scanning.RecordSet, error) {
	v, err, _ := c.flight.Do(refreshKey+identity, func() (interface{}, error) {
		return c.computeAndStore(ctx, identity, compute)
	})
	if err != nil {
		return nil, err
	}
	return v.(scanning.RecordSet).Clone(), nil
}

func (c *Cache) computeAndStore(ctx context.Context, identity string, compute ComputeFunc) (scanning.RecordSet, error) {
	records, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = scanning.RecordSet{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(c.namespace, identity, records); err != nil {
		return nil, fmt.Errorf("storing cache entry: %w", err)
	}
	return records.Clone(), nil
}

// Get returns a copy of the entry for identity without computing anything
func (c *Cache) Get(identity string) (scanning.RecordSet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, ok, err := c.store.Load(c.namespace, identity)
	if err != nil {
		return nil, false, fmt.Errorf("loading cache entry: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return records.Clone(), true, nil
}

// Clear removes the entry for identity so the next GetOrCompute re-extracts
func (c *Cache) Clear(identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(c.namespace, identity); err != nil {
		return fmt.Errorf("clearing cache entry: %w", err)
	}
	return nil
}

// Identities lists the identities with an entry
func (c *Cache) Identities() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.store.List(c.namespace)
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	return ids, nil
}

// Purge removes every entry of the cache
func (c *Cache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.Purge(c.namespace)
}

// Editor returns an editor bound to the entry for identity
func (c *Cache) Editor(identity string) *Editor {
	return &Editor{cache: c, identity: identity}
}

// update applies fn to the live entry and writes the result back. fn must
// validate before mutating so a failed edit leaves the entry unchanged.
func (c *Cache) update(identity string, fn func(scanning.RecordSet) (scanning.RecordSet, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, ok, err := c.store.Load(c.namespace, identity)
	if err != nil {
		return fmt.Errorf("loading cache entry: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotExtracted, identity)
	}

	updated, err := fn(records)
	if err != nil {
		return err
	}
	if err := c.store.Save(c.namespace, identity, updated); err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}
