package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryTierGetPut(t *testing.T) {
	m := newMemoryTier(1024, 10)

	_, ok := m.get("missing")
	require.False(t, ok)

	m.put("a", []byte("alpha"))
	got, ok := m.get("a")
	require.True(t, ok)
	require.Equal(t, []byte("alpha"), got)
	require.Equal(t, 1, m.len())
	require.Equal(t, int64(5), m.size())
}

func TestMemoryTierReplaceAdjustsBytes(t *testing.T) {
	m := newMemoryTier(1024, 10)
	m.put("a", []byte("alpha"))
	m.put("a", []byte("al"))
	require.Equal(t, 1, m.len())
	require.Equal(t, int64(2), m.size())
}

func TestMemoryTierEntryBudget(t *testing.T) {
	m := newMemoryTier(1024*1024, 3)

	for i := 0; i < 5; i++ {
		m.put(fmt.Sprintf("k%d", i), []byte("v"))
	}
	require.Equal(t, 3, m.len())

	// Oldest entries evicted first.
	_, ok := m.get("k0")
	require.False(t, ok)
	_, ok = m.get("k1")
	require.False(t, ok)
	_, ok = m.get("k4")
	require.True(t, ok)
}

func TestMemoryTierByteBudget(t *testing.T) {
	m := newMemoryTier(30, 100)

	m.put("a", make([]byte, 10))
	m.put("b", make([]byte, 10))
	m.put("c", make([]byte, 10))
	require.Equal(t, 3, m.len())

	evicted, freed := m.put("d", make([]byte, 10))
	require.Equal(t, 1, evicted)
	require.Equal(t, int64(10), freed)

	_, ok := m.get("a")
	require.False(t, ok)
	require.LessOrEqual(t, m.size(), int64(30))
}

func TestMemoryTierGetRefreshesRecency(t *testing.T) {
	m := newMemoryTier(30, 100)
	m.put("a", make([]byte, 10))
	m.put("b", make([]byte, 10))
	m.put("c", make([]byte, 10))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := m.get("a")
	require.True(t, ok)

	m.put("d", make([]byte, 10))
	_, ok = m.get("a")
	require.True(t, ok)
	_, ok = m.get("b")
	require.False(t, ok)
}

func TestMemoryTierSoleOversizedEntrySurvives(t *testing.T) {
	m := newMemoryTier(10, 100)
	evicted, _ := m.put("big", make([]byte, 50))
	require.Equal(t, 0, evicted)
	require.Equal(t, 1, m.len())
}

func TestMemoryTierRemoveNamespace(t *testing.T) {
	m := newMemoryTier(1024, 100)
	m.put(memoryKey("server-a", "u1"), []byte("1"))
	m.put(memoryKey("server-a", "u2"), []byte("2"))
	m.put(memoryKey("server-b", "u1"), []byte("3"))

	removed := m.removeNamespace("server-a")
	require.Equal(t, 2, removed)
	require.Equal(t, 1, m.len())
	require.Equal(t, int64(1), m.size())

	_, ok := m.get(memoryKey("server-b", "u1"))
	require.True(t, ok)
}

func TestMemoryKeyNamespaceIsolation(t *testing.T) {
	// A namespace that happens to be a prefix of another must not
	// collide once the separator is applied.
	require.NotEqual(t, memoryKey("server", "a"), memoryKey("server-a", ""))
	require.NotEqual(t, memoryKey("server", "a-b"), memoryKey("server-a", "b"))
}
