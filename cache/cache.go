// Package cache provides the two-tier image cache: a fast in-memory
// LRU tier over a durable bbolt tier. Entries are keyed by
// (server-identity namespace, normalized URL) so no payload cached for
// one server is ever visible while another is active.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	catalogclient "github.com/mediakit/catalog-client"
	"github.com/mediakit/catalog-client/session"
	"github.com/mediakit/catalog-client/telemetry"
)

const (
	// defaultMaxMemoryBytes bounds the memory tier payload budget.
	defaultMaxMemoryBytes = 300 * 1024 * 1024

	// defaultMaxMemoryEntries bounds the memory tier entry count.
	defaultMaxMemoryEntries = 300
)

// FetchFunc retrieves the payload for a URL on a cache miss.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Config holds cache configuration.
type Config struct {
	// Path is the bbolt file backing the durable tier.
	Path string

	// MaxMemoryBytes bounds the memory tier. Default: 300 MiB.
	MaxMemoryBytes int64

	// MaxMemoryEntries bounds the memory tier. Default: 300.
	MaxMemoryEntries int

	// Fetch fills misses. When nil, Get returns ErrNotFound on a full miss.
	Fetch FetchFunc

	// Logger for cache events.
	Logger *slog.Logger
}

// Cache is the tiered byte cache. All memory-tier mutation is
// serialised under c.mu; the durable tier serialises through bbolt
// transactions. The cache subscribes to server-switch events and purges
// the abandoned identity's namespace.
type Cache struct {
	boundary *session.Boundary
	fetch    FetchFunc
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	memory  *memoryTier
	durable *durableTier

	unsubscribe func()
}

// New opens the cache and subscribes it to the session boundary.
func New(boundary *session.Boundary, cfg Config) (*Cache, error) {
	if cfg.MaxMemoryBytes <= 0 {
		cfg.MaxMemoryBytes = defaultMaxMemoryBytes
	}
	if cfg.MaxMemoryEntries <= 0 {
		cfg.MaxMemoryEntries = defaultMaxMemoryEntries
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	durable, err := openDurable(cfg.Path)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		boundary: boundary,
		fetch:    cfg.Fetch,
		logger:   cfg.Logger,
		now:      time.Now,
		memory:   newMemoryTier(cfg.MaxMemoryBytes, cfg.MaxMemoryEntries),
		durable:  durable,
	}
	c.unsubscribe = boundary.OnServerSwitch(func(prev, next catalogclient.Identity) {
		if prev.IsZero() {
			return
		}
		if err := c.PurgeNamespace(prev); err != nil {
			c.logger.Warn("purging previous server namespace failed",
				"server", prev.String(), "error", err)
		}
	})
	return c, nil
}

// Close unsubscribes from session events and closes the durable tier.
func (c *Cache) Close() error {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	return c.durable.close()
}

// Get returns the cached payload for url, checking the memory tier,
// then the durable tier (promoting a hit into memory), and finally
// fetching and storing on a full miss. The lookup is always scoped to
// the identity active at call time.
func (c *Cache) Get(ctx context.Context, url string) ([]byte, error) {
	namespace := c.boundary.Active().Namespace()
	normalized := NormalizeKey(url)
	mkey := memoryKey(namespace, normalized)

	c.mu.Lock()
	payload, ok := c.memory.get(mkey)
	c.mu.Unlock()
	if ok {
		telemetry.RecordCacheLookup(ctx, "memory", "hit")
		return payload, nil
	}
	telemetry.RecordCacheLookup(ctx, "memory", "miss")

	framed, err := c.durable.get(namespace, DurableKey(normalized))
	if err == nil {
		_, payload, err := decodeEntry(framed)
		if err == nil {
			telemetry.RecordCacheLookup(ctx, "durable", "hit")
			c.mu.Lock()
			evicted, freed := c.memory.put(mkey, payload)
			c.mu.Unlock()
			if evicted > 0 {
				telemetry.RecordCacheEviction(ctx, evicted, freed)
			}
			return payload, nil
		}
		c.logger.Warn("dropping unreadable durable entry", "url", url, "error", err)
		_ = c.durable.delete(namespace, DurableKey(normalized))
	}
	telemetry.RecordCacheLookup(ctx, "durable", "miss")

	if c.fetch == nil {
		return nil, ErrNotFound
	}

	payload, err = c.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	// Store under the namespace captured before the fetch: if the
	// active server switched while the bytes were in flight they must
	// not land in the new identity's namespace.
	c.putIn(ctx, namespace, url, normalized, payload)
	return payload, nil
}

// Put stores a payload in both tiers under the active identity.
func (c *Cache) Put(ctx context.Context, url string, payload []byte) {
	normalized := NormalizeKey(url)
	c.putIn(ctx, c.boundary.Active().Namespace(), url, normalized, payload)
}

func (c *Cache) putIn(ctx context.Context, namespace, url, normalized string, payload []byte) {
	framed, err := encodeEntry(&entryHeader{
		CachedAt:  c.now(),
		Size:      int64(len(payload)),
		SourceURL: url,
	}, payload)
	if err != nil {
		c.logger.Warn("encoding cache entry failed", "url", url, "error", err)
		return
	}

	if err := c.durable.put(namespace, DurableKey(normalized), framed); err != nil {
		// A failed durable write still leaves the memory tier usable.
		c.logger.Warn("durable cache write failed", "url", url, "error", err)
	}

	c.mu.Lock()
	evicted, freed := c.memory.put(memoryKey(namespace, normalized), payload)
	c.mu.Unlock()

	telemetry.RecordCacheStore(ctx, int64(len(payload)))
	if evicted > 0 {
		telemetry.RecordCacheEviction(ctx, evicted, freed)
	}
}

// PurgeNamespace removes every entry owned by the identity from both
// tiers. Called on server switch so no payload leaks across servers.
func (c *Cache) PurgeNamespace(identity catalogclient.Identity) error {
	namespace := identity.Namespace()

	c.mu.Lock()
	removed := c.memory.removeNamespace(namespace)
	c.mu.Unlock()

	if err := c.durable.deleteNamespace(namespace); err != nil {
		return fmt.Errorf("purging namespace %q: %w", namespace, err)
	}

	c.logger.Info("cache namespace purged", "server", identity.String(), "memory_entries", removed)
	telemetry.RecordCachePurge(context.Background())
	return nil
}

// MemoryLen returns the number of resident memory-tier entries.
func (c *Cache) MemoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory.len()
}

// MemoryBytes returns the memory tier payload byte total.
func (c *Cache) MemoryBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory.size()
}

// DurableCount returns the number of durable entries for an identity.
func (c *Cache) DurableCount(identity catalogclient.Identity) (int, error) {
	return c.durable.count(identity.Namespace())
}

// enforceMemoryBudgets re-applies the memory-tier bounds. The sweeper
// calls this; put paths already enforce inline.
func (c *Cache) enforceMemoryBudgets(ctx context.Context) {
	c.mu.Lock()
	evicted, freed := c.memory.enforceBudgets()
	c.mu.Unlock()
	if evicted > 0 {
		telemetry.RecordCacheEviction(ctx, evicted, freed)
	}
}

// removeExpired deletes the given durable entries, returning how many
// were removed and the payload bytes they accounted for.
func (c *Cache) removeExpired(entries []expiredEntry) (removed int, freed int64, errs int) {
	for _, e := range entries {
		if err := c.durable.delete(e.namespace, e.key); err != nil {
			c.logger.Warn("deleting expired entry failed", "namespace", e.namespace, "error", err)
			errs++
			continue
		}
		removed++
		freed += e.size
	}
	return removed, freed, errs
}
