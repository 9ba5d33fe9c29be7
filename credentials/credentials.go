// Package credentials resolves API key references to their values. A
// server identity never stores the key itself, only a reference such
// as env:STASH_API_KEY or file:/run/secrets/stash-key, so keys stay
// out of persisted configuration.
package credentials

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// maxSecretFileSize bounds a file-backed secret read.
const maxSecretFileSize = 64 * 1024

// Provider resolves a reference (the part after the scheme) to a
// secret value.
type Provider func(ctx context.Context, ref string) (string, error)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger for the resolver.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithProvider registers a provider under a scheme, replacing any
// built-in of the same name.
func WithProvider(scheme string, p Provider) ResolverOption {
	return func(r *Resolver) {
		r.providers[scheme] = p
	}
}

// Resolver maps scheme-prefixed references to secret values. Resolved
// values are memoized, so a reference is looked up at most once per
// resolver even when every request asks for it.
type Resolver struct {
	providers map[string]Provider
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver with the built-in env, file, and
// literal schemes.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers: map[string]Provider{
			"env":     envProvider,
			"file":    fileProvider,
			"literal": literalProvider,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the secret value for a reference. An empty reference
// resolves to an empty key, for servers with authentication disabled.
// A reference without a scheme is treated as a literal value.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	r.mu.Lock()
	if val, ok := r.cache[ref]; ok {
		r.mu.Unlock()
		return val, nil
	}
	r.mu.Unlock()

	scheme, rest, found := strings.Cut(ref, ":")
	if !found {
		scheme, rest = "literal", ref
	}

	provider, ok := r.providers[scheme]
	if !ok {
		return "", fmt.Errorf("unknown credential scheme %q", scheme)
	}

	val, err := provider(ctx, rest)
	if err != nil {
		return "", fmt.Errorf("resolving credential %s: %w", scheme, err)
	}

	r.mu.Lock()
	r.cache[ref] = val
	r.mu.Unlock()

	r.logger.Debug("credential resolved", "scheme", scheme)
	return val, nil
}

// Forget drops a memoized value so the next Resolve re-reads it. The
// dispatcher calls this after an authentication failure in case the
// underlying secret was rotated.
func (r *Resolver) Forget(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, ref)
}

func envProvider(_ context.Context, name string) (string, error) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %q is not set", name)
	}
	return val, nil
}

func fileProvider(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening secret file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSecretFileSize+1))
	if err != nil {
		return "", fmt.Errorf("reading secret file: %w", err)
	}
	if len(data) > maxSecretFileSize {
		return "", fmt.Errorf("secret file %q exceeds %d bytes", path, maxSecretFileSize)
	}
	return strings.TrimSpace(string(data)), nil
}

func literalProvider(_ context.Context, value string) (string, error) {
	return value, nil
}
