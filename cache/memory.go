package cache

import (
	"container/list"
	"strings"
)

// namespaceSep joins the namespace and normalized key in memory-tier
// keys. It cannot occur in either part: namespaces are identity IDs or
// URL-shaped strings and keys are URLs.
const namespaceSep = "\x00"

// memoryKey builds the composite memory-tier key. Using a structured
// composite rather than plain concatenation keeps entries from one
// namespace unreachable from another.
func memoryKey(namespace, normalized string) string {
	return namespace + namespaceSep + normalized
}

// memoryEntry is one resident payload.
type memoryEntry struct {
	key     string
	payload []byte
}

// memoryTier is a least-recently-used byte cache bounded by both a byte
// budget and an entry-count budget. It is not safe for concurrent use;
// the owning Cache serialises access.
type memoryTier struct {
	maxBytes   int64
	maxEntries int

	ll      *list.List // front is most recently used
	entries map[string]*list.Element
	bytes   int64
}

func newMemoryTier(maxBytes int64, maxEntries int) *memoryTier {
	return &memoryTier{
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
		ll:         list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// get returns the payload for key and marks it most recently used.
func (m *memoryTier) get(key string) ([]byte, bool) {
	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	m.ll.MoveToFront(el)
	return el.Value.(*memoryEntry).payload, true
}

// put inserts or replaces the payload for key, then evicts
// least-recently-used entries until both budgets are satisfied.
// It returns the number of entries and bytes evicted.
func (m *memoryTier) put(key string, payload []byte) (evicted int, freed int64) {
	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		m.bytes += int64(len(payload)) - int64(len(entry.payload))
		entry.payload = payload
		m.ll.MoveToFront(el)
	} else {
		el := m.ll.PushFront(&memoryEntry{key: key, payload: payload})
		m.entries[key] = el
		m.bytes += int64(len(payload))
	}
	return m.enforceBudgets()
}

// enforceBudgets evicts from the LRU end until both bounds hold.
func (m *memoryTier) enforceBudgets() (evicted int, freed int64) {
	for m.ll.Len() > 0 && (m.bytes > m.maxBytes || m.ll.Len() > m.maxEntries) {
		el := m.ll.Back()
		entry := el.Value.(*memoryEntry)

		// Never evict the sole entry for being over the byte budget;
		// a single oversized payload is allowed to live until replaced.
		if m.ll.Len() == 1 && m.bytes > m.maxBytes && m.ll.Len() <= m.maxEntries {
			break
		}

		m.ll.Remove(el)
		delete(m.entries, entry.key)
		m.bytes -= int64(len(entry.payload))
		evicted++
		freed += int64(len(entry.payload))
	}
	return evicted, freed
}

// removeNamespace drops every entry owned by the namespace and returns
// how many were removed.
func (m *memoryTier) removeNamespace(namespace string) int {
	prefix := namespace + namespaceSep
	removed := 0
	for key, el := range m.entries {
		if strings.HasPrefix(key, prefix) {
			entry := el.Value.(*memoryEntry)
			m.ll.Remove(el)
			delete(m.entries, key)
			m.bytes -= int64(len(entry.payload))
			removed++
		}
	}
	return removed
}

func (m *memoryTier) len() int {
	return m.ll.Len()
}

func (m *memoryTier) size() int64 {
	return m.bytes
}
