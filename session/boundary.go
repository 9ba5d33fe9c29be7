// Package session holds the process-wide active server identity and the
// broadcast fabric that coordinates the dispatcher and cache around
// server switches and authentication failures.
package session

import (
	"log/slog"
	"sync"

	catalogclient "github.com/mediakit/catalog-client"
)

// SwitchHandler is invoked after the active identity changes. prev is
// the identity being abandoned and may be the zero value on first
// configuration.
type SwitchHandler func(prev, next catalogclient.Identity)

// AuthFailureHandler is invoked when a request against the given
// identity was rejected with a credential failure.
type AuthFailureHandler func(id catalogclient.Identity)

// Option configures a Boundary.
type Option func(*Boundary)

// WithLogger sets the logger for session events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Boundary) {
		b.logger = logger
	}
}

// Boundary is the session boundary: the single writer of the active
// identity, and a callback registry for server-switch and auth-failure
// events. Handlers are invoked synchronously on the calling goroutine,
// outside the boundary's lock, so they may call back into the boundary.
type Boundary struct {
	logger *slog.Logger

	mu         sync.RWMutex
	active     catalogclient.Identity
	nextSubID  int
	switchSubs map[int]SwitchHandler
	authSubs   map[int]AuthFailureHandler
}

// NewBoundary creates a Boundary with the given initial active identity.
func NewBoundary(active catalogclient.Identity, opts ...Option) *Boundary {
	b := &Boundary{
		logger:     slog.Default(),
		active:     active,
		switchSubs: make(map[int]SwitchHandler),
		authSubs:   make(map[int]AuthFailureHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Active returns the current active identity. Callers must read this at
// request time rather than caching it: a switch can occur between a
// component's construction and its next use.
func (b *Boundary) Active() catalogclient.Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// OnServerSwitch registers a handler for server-switch events and
// returns a function that removes it.
func (b *Boundary) OnServerSwitch(h SwitchHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	b.switchSubs[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.switchSubs, id)
	}
}

// OnAuthFailure registers a handler for authentication failures and
// returns a function that removes it.
func (b *Boundary) OnAuthFailure(h AuthFailureHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	b.authSubs[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.authSubs, id)
	}
}

// SwitchTo makes next the active identity and notifies subscribers with
// the previous identity so they can invalidate per-server state.
// Switching to the identity that is already active is a no-op.
func (b *Boundary) SwitchTo(next catalogclient.Identity) {
	b.mu.Lock()
	prev := b.active
	if prev == next {
		b.mu.Unlock()
		return
	}
	b.active = next
	handlers := make([]SwitchHandler, 0, len(b.switchSubs))
	for _, h := range b.switchSubs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	b.logger.Info("server switched", "prev", prev.String(), "next", next.String())
	for _, h := range handlers {
		h(prev, next)
	}
}

// NotifyAuthFailure broadcasts a credential failure for the current
// active identity. The boundary does not retry or re-authenticate; the
// consuming application is expected to prompt for new credentials.
func (b *Boundary) NotifyAuthFailure() {
	b.mu.RLock()
	active := b.active
	handlers := make([]AuthFailureHandler, 0, len(b.authSubs))
	for _, h := range b.authSubs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.logger.Warn("authentication failed", "server", active.String())
	for _, h := range handlers {
		h(active)
	}
}
