package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Sentinel errors surfaced by the dispatcher.
var (
	// ErrCancelled is reported when a response arrived for a request
	// issued under a superseded cancellation generation. The payload is
	// never delivered.
	ErrCancelled = errors.New("dispatch: request cancelled")

	// ErrAuthFailed is reported when the server rejected the API key.
	ErrAuthFailed = errors.New("dispatch: authentication failed")

	// ErrStorageLocked is reported when the retry budget was exhausted
	// while the server's storage stayed locked.
	ErrStorageLocked = errors.New("dispatch: server storage locked")
)

// Kind classifies the result of a request.
type Kind int

const (
	// KindSuccess carries a payload.
	KindSuccess Kind = iota
	// KindRetryable is a transient failure the dispatcher retries
	// automatically: the storage-locked signature and network-level
	// timeouts or resets.
	KindRetryable
	// KindAuthFailure is a credential rejection. Never retried here;
	// surfaced through the session boundary for re-authentication.
	KindAuthFailure
	// KindFatal is everything else: unreachable server, malformed
	// response, unexpected status. Surfaced immediately to the caller.
	KindFatal
	// KindCancelled replaces any outcome whose generation went stale
	// before delivery.
	KindCancelled
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryable:
		return "retryable"
	case KindAuthFailure:
		return "auth_failure"
	case KindFatal:
		return "fatal"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of executing a request.
type Outcome struct {
	Kind    Kind
	Status  int    // HTTP status code, 0 when the transport failed
	Payload []byte // response body, only populated on success
	Err     error  // nil only on success
}

// storageLockedSignature is the server-side contention marker. The
// catalog server keeps its database in sqlite; concurrent writes
// surface as this message either in a 5xx body or inside a 200-level
// query-error envelope.
var storageLockedSignature = []byte("database is locked")

// isStorageLocked reports whether the response carries the transient
// storage contention signature. A 200-level response only counts when
// the signature appears inside a query-error envelope, so payloads that
// merely mention the phrase are not misclassified.
func isStorageLocked(status int, body []byte) bool {
	lower := bytes.ToLower(body)
	switch {
	case status >= 500:
		return bytes.Contains(lower, storageLockedSignature)
	case status == http.StatusOK:
		return bytes.Contains(lower, []byte(`"errors"`)) && bytes.Contains(lower, storageLockedSignature)
	default:
		return false
	}
}

// classifyTransportError maps a transport-level error to an outcome.
// Timeouts and connection resets are transient; everything else
// (refused, unreachable, DNS) is surfaced immediately.
func classifyTransportError(err error) *Outcome {
	if errors.Is(err, context.Canceled) {
		return &Outcome{Kind: KindCancelled, Err: ErrCancelled}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Outcome{Kind: KindRetryable, Err: fmt.Errorf("request timed out: %w", err)}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &Outcome{Kind: KindRetryable, Err: fmt.Errorf("connection reset: %w", err)}
	}

	return &Outcome{Kind: KindFatal, Err: fmt.Errorf("request failed: %w", err)}
}

// classifyResponse maps an HTTP status and body to an outcome.
func classifyResponse(status int, body []byte) *Outcome {
	switch {
	case status == http.StatusUnauthorized:
		return &Outcome{Kind: KindAuthFailure, Status: status, Err: ErrAuthFailed}

	case isStorageLocked(status, body):
		return &Outcome{Kind: KindRetryable, Status: status, Err: ErrStorageLocked}

	case status >= 200 && status < 300:
		return &Outcome{Kind: KindSuccess, Status: status, Payload: body}

	default:
		return &Outcome{
			Kind:   KindFatal,
			Status: status,
			Err:    fmt.Errorf("unexpected status %d: %s", status, truncateBody(body)),
		}
	}
}

// truncateBody bounds error messages built from response bodies.
func truncateBody(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
