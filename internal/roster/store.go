package roster

import (
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zombor/roster-scan/internal/scanning"
)

const keySeparator = "\x00"

// MemoryStore implements EntryStore in process memory. Entries never expire
// and Load hands out the live record set, so edits written back through
// Save land on the same entry other readers see.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

func memoryKey(namespace, identity string) string {
	return namespace + keySeparator + identity
}

// Load returns the live entry for identity
func (m *MemoryStore) Load(namespace, identity string) (scanning.RecordSet, bool, error) {
	v, ok := m.cache.Get(memoryKey(namespace, identity))
	if !ok {
		return nil, false, nil
	}
	return v.(scanning.RecordSet), true, nil
}

// Save creates or overwrites the entry for identity
func (m *MemoryStore) Save(namespace, identity string, records scanning.RecordSet) error {
	m.cache.Set(memoryKey(namespace, identity), records, gocache.NoExpiration)
	return nil
}

// Delete removes the entry for identity
func (m *MemoryStore) Delete(namespace, identity string) error {
	m.cache.Delete(memoryKey(namespace, identity))
	return nil
}

// List returns the identities of namespace in sorted order
func (m *MemoryStore) List(namespace string) ([]string, error) {
	prefix := namespace + keySeparator
	ids := make([]string, 0)
	for key := range m.cache.Items() {
		if identity, ok := strings.CutPrefix(key, prefix); ok {
			ids = append(ids, identity)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Purge removes every entry of namespace
func (m *MemoryStore) Purge(namespace string) error {
	ids, _ := m.List(namespace)
	for _, id := range ids {
		m.cache.Delete(memoryKey(namespace, id))
	}
	return nil
}
