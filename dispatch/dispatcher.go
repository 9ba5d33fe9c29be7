// Package dispatch executes requests against the active catalog server.
// It attaches credentials, applies the transport trust policy, retries
// the transient storage-locked condition with bounded backoff, and
// suppresses responses that arrive after a bulk cancellation.
package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	catalogclient "github.com/mediakit/catalog-client"
	"github.com/mediakit/catalog-client/session"
	"github.com/mediakit/catalog-client/telemetry"
	"github.com/mediakit/catalog-client/trust"
)

const (
	// apiKeyHeader carries the server credential.
	apiKeyHeader = "ApiKey"

	// defaultTimeout applies when a request does not specify one.
	defaultTimeout = 30 * time.Second
)

// KeyResolver resolves a credential reference from an Identity into the
// API key value sent on the wire.
type KeyResolver func(ctx context.Context, ref string) (string, error)

// Config holds dispatcher configuration.
type Config struct {
	// Retry bounds automatic retries. Zero value uses DefaultRetryPolicy.
	Retry RetryPolicy

	// Timeout is the default per-request timeout. Default: 30s.
	Timeout time.Duration

	// Logger for request lifecycle events.
	Logger *slog.Logger

	// KeyResolver resolves Identity.APIKeyRef. When nil the reference
	// is used verbatim as the key.
	KeyResolver KeyResolver

	// Transport overrides the HTTP transport. Mainly for tests; when
	// nil a trust-policy-aware transport is built.
	Transport http.RoundTripper
}

// Dispatcher executes requests for the session's active identity.
//
// Concurrency model: Execute may be called from any number of
// goroutines; each call is one logical in-flight request. CancelAll
// bumps the cancellation generation under d.mu and aborts every
// in-flight request issued under the previous generation.
type Dispatcher struct {
	boundary   *session.Boundary
	retry      RetryPolicy
	timeout    time.Duration
	logger     *slog.Logger
	client     *http.Client
	resolveKey KeyResolver

	mu          sync.Mutex
	gen         atomic.Int64
	genCtx      context.Context
	genCancel   context.CancelFunc
	unsubscribe func()
}

// New creates a Dispatcher bound to the session boundary. The trust
// policy decides TLS verification per host. The dispatcher subscribes
// to server-switch events and cancels all in-flight requests when the
// active identity changes.
func New(boundary *session.Boundary, policy *trust.Policy, cfg Config) *Dispatcher {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.KeyResolver == nil {
		cfg.KeyResolver = func(_ context.Context, ref string) (string, error) { return ref, nil }
	}

	transport := cfg.Transport
	if transport == nil {
		transport = telemetry.NewInstrumentedTransport(newTrustedTransport(policy), "catalog")
	}

	genCtx, genCancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		boundary:   boundary,
		retry:      cfg.Retry,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		client:     &http.Client{Transport: transport},
		resolveKey: cfg.KeyResolver,
		genCtx:     genCtx,
		genCancel:  genCancel,
	}
	d.unsubscribe = boundary.OnServerSwitch(func(prev, next catalogclient.Identity) {
		d.CancelAll()
	})
	return d
}

// newTrustedTransport builds an HTTP transport that consults the trust
// policy per host when dialing TLS.
func newTrustedTransport(policy *trust.Policy) *http.Transport {
	base, _ := http.DefaultTransport.(*http.Transport)
	transport := base.Clone()
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		cfg := policy.ClientTLSConfig(host)
		cfg.ServerName = host
		dialer := &tls.Dialer{Config: cfg}
		return dialer.DialContext(ctx, network, addr)
	}
	return transport
}

// Close unsubscribes from session events and aborts in-flight requests.
func (d *Dispatcher) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	d.CancelAll()
}

// CancelAll bumps the cancellation generation. Responses for requests
// issued before the bump are discarded: their callers observe a
// cancelled outcome instead of the payload.
func (d *Dispatcher) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen.Add(1)
	d.genCancel()
	d.genCtx, d.genCancel = context.WithCancel(context.Background())
	telemetry.RecordCancellation(context.Background())
}

// Generation returns the current cancellation generation.
func (d *Dispatcher) Generation() int64 {
	return d.gen.Load()
}

// generation snapshots the current generation and its context.
func (d *Dispatcher) generation() (int64, context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen.Load(), d.genCtx
}

// Execute runs the request to completion and returns its classified
// outcome. It blocks; run it on its own goroutine for asynchronous use.
// Transient failures are retried with bounded backoff. If CancelAll is
// invoked while the request is in flight, the outcome is KindCancelled
// and the payload is discarded.
func (d *Dispatcher) Execute(ctx context.Context, req *Request) *Outcome {
	gen, genCtx := d.generation()
	identity := d.boundary.Active()

	logger := d.logger.With(
		"request_id", uuid.NewString(),
		"method", req.Method,
		"path", req.Path,
		"server", identity.String(),
	)

	if err := identity.Validate(); err != nil {
		return &Outcome{Kind: KindFatal, Err: err}
	}

	apiKey, err := d.resolveKey(ctx, identity.APIKeyRef)
	if err != nil {
		return &Outcome{Kind: KindFatal, Err: err}
	}

	target := identity.BaseURL() + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	start := time.Now()
	attempts := 0
	var out *Outcome
	for attempt := 0; ; attempt++ {
		attempts++
		out = d.attempt(ctx, genCtx, req, target, apiKey)
		if out.Kind != KindRetryable || attempt+1 >= d.retry.MaxAttempts {
			break
		}

		delay := d.retry.delayFor(attempt)
		logger.Debug("retrying transient failure",
			"attempt", attempt+1,
			"delay", delay,
			"error", out.Err,
		)
		telemetry.RecordRequestRetry(ctx)
		if err := d.retrySleep(ctx, genCtx, delay); err != nil {
			break
		}
	}

	// Suppress delivery when the generation advanced while in flight.
	if d.gen.Load() != gen {
		out = &Outcome{Kind: KindCancelled, Err: ErrCancelled}
	}

	switch out.Kind {
	case KindSuccess:
		logger.Debug("request complete", "status", out.Status, "attempts", attempts, "duration", time.Since(start))
	case KindCancelled:
		logger.Debug("request cancelled", "attempts", attempts)
	case KindAuthFailure:
		logger.Warn("request rejected: credential failure", "status", out.Status)
		// Exactly once per failed execution, never once per attempt.
		d.boundary.NotifyAuthFailure()
	default:
		logger.Warn("request failed", "kind", out.Kind.String(), "status", out.Status, "attempts", attempts, "error", out.Err)
	}

	telemetry.RecordRequest(ctx, out.Kind.String(), attempts, time.Since(start))
	return out
}

// attempt performs a single HTTP exchange. The attempt context is bound
// to the caller's context, the per-request timeout, and the generation
// context so CancelAll aborts the exchange mid-flight.
func (d *Dispatcher) attempt(ctx, genCtx context.Context, req *Request, target, apiKey string) *Outcome {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(genCtx, cancel)
	defer stop()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, body)
	if err != nil {
		return &Outcome{Kind: KindFatal, Err: err}
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, apiKey)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	return classifyResponse(resp.StatusCode, respBody)
}

// retrySleep waits out a backoff delay, aborting early on caller
// cancellation or a generation bump.
func (d *Dispatcher) retrySleep(ctx, genCtx context.Context, delay time.Duration) error {
	joined, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(genCtx, cancel)
	defer stop()
	return sleep(joined, delay)
}
