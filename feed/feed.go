// Package feed provides a generic page-based feed over a remote
// collection: load the first page, append further pages on demand, and
// track whether more items remain.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/mediakit/catalog-client/telemetry"
)

// defaultPageSize is used when the config leaves PageSize unset.
const defaultPageSize = 40

// Phase is the feed lifecycle state.
type Phase int

const (
	// PhaseIdle means no load is in progress.
	PhaseIdle Phase = iota
	// PhaseLoading means the first page (or a refresh) is in flight.
	PhaseLoading
	// PhaseLoadingMore means a follow-on page is in flight.
	PhaseLoadingMore
	// PhaseFailed means the last initial load failed.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoadingMore:
		return "loading_more"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// FetchFunc returns one page of items (1-based page numbers) along with
// the total number of items the collection holds.
type FetchFunc[T any] func(ctx context.Context, page, pageSize int) ([]T, int, error)

// Config holds feed configuration.
type Config struct {
	// PageSize is the number of items requested per page. Default: 40.
	PageSize int
}

// Feed accumulates pages of T. All state is confined behind f.mu; the
// fetch itself runs outside the lock so readers are never blocked on
// the network. A load already in flight makes further load calls
// no-ops rather than queueing.
type Feed[T any] struct {
	fetch    FetchFunc[T]
	pageSize int

	mu      sync.Mutex
	phase   Phase
	items   []T
	page    int
	total   int
	hasMore bool
	lastErr error
	epoch   int
}

// New creates a feed over fetch.
func New[T any](fetch FetchFunc[T], cfg Config) *Feed[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Feed[T]{
		fetch:    fetch,
		pageSize: cfg.PageSize,
	}
}

// Items returns a copy of the accumulated items.
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]T, len(f.items))
	copy(out, f.items)
	return out
}

// Len returns the number of accumulated items.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Total returns the collection size reported by the last page fetch.
func (f *Feed[T]) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// HasMore reports whether further pages remain.
func (f *Feed[T]) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Phase returns the current lifecycle phase.
func (f *Feed[T]) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Err returns the error from the last failed load, if any.
func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// LoadInitial fetches page one, replacing any accumulated items. A
// call while another load is in flight is a no-op. On failure the feed
// is left empty with hasMore false and the error retained.
func (f *Feed[T]) LoadInitial(ctx context.Context) error {
	f.mu.Lock()
	if f.phase == PhaseLoading || f.phase == PhaseLoadingMore {
		f.mu.Unlock()
		return nil
	}
	f.phase = PhaseLoading
	f.epoch++
	epoch := f.epoch
	pageSize := f.pageSize
	f.mu.Unlock()

	items, total, err := f.fetch(ctx, 1, pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		// Reset raced the fetch; drop the stale result.
		return nil
	}

	if err != nil {
		f.phase = PhaseFailed
		f.items = nil
		f.page = 0
		f.total = 0
		f.hasMore = false
		f.lastErr = err
		telemetry.RecordFeedLoad(ctx, "initial", "error", 0)
		return fmt.Errorf("loading first page: %w", err)
	}

	f.phase = PhaseIdle
	f.items = items
	f.page = 1
	f.total = total
	f.hasMore = len(f.items) < total
	f.lastErr = nil
	telemetry.RecordFeedLoad(ctx, "initial", "ok", len(items))
	return nil
}

// LoadMore fetches the next page and appends it. Calls while a load is
// in flight, before any initial load, or once the collection is
// exhausted are no-ops. On failure the accumulated items are kept so
// the caller can retry.
func (f *Feed[T]) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.phase == PhaseLoading || f.phase == PhaseLoadingMore || f.page == 0 || !f.hasMore {
		f.mu.Unlock()
		return nil
	}
	f.phase = PhaseLoadingMore
	f.epoch++
	epoch := f.epoch
	next := f.page + 1
	pageSize := f.pageSize
	f.mu.Unlock()

	items, total, err := f.fetch(ctx, next, pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return nil
	}

	if err != nil {
		f.phase = PhaseIdle
		f.lastErr = err
		telemetry.RecordFeedLoad(ctx, "more", "error", 0)
		return fmt.Errorf("loading page %d: %w", next, err)
	}

	f.phase = PhaseIdle
	f.items = append(f.items, items...)
	f.page = next
	f.total = total
	f.hasMore = len(items) > 0 && len(f.items) < total
	f.lastErr = nil
	telemetry.RecordFeedLoad(ctx, "more", "ok", len(items))
	return nil
}

// Refresh reloads the feed from the first page.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	return f.LoadInitial(ctx)
}

// Reset clears the feed back to its initial empty state. A load in
// flight when Reset is called has its result discarded.
func (f *Feed[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
	f.phase = PhaseIdle
	f.items = nil
	f.page = 0
	f.total = 0
	f.hasMore = false
	f.lastErr = nil
}
