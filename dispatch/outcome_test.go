package dispatch

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsStorageLocked(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{
			name:   "500 with signature",
			status: http.StatusInternalServerError,
			body:   "database is locked",
			want:   true,
		},
		{
			name:   "500 mixed case",
			status: http.StatusInternalServerError,
			body:   "Database Is Locked (5) (SQLITE_BUSY)",
			want:   true,
		},
		{
			name:   "200 query error envelope",
			status: http.StatusOK,
			body:   `{"errors":[{"message":"database is locked"}]}`,
			want:   true,
		},
		{
			name:   "200 payload mentioning the phrase is not locked",
			status: http.StatusOK,
			body:   `{"data":{"findScenes":{"scenes":[{"title":"database is locked"}]}}}`,
			want:   false,
		},
		{
			name:   "500 without signature",
			status: http.StatusInternalServerError,
			body:   "no such table",
			want:   false,
		},
		{
			name:   "404 with signature",
			status: http.StatusNotFound,
			body:   "database is locked",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isStorageLocked(tt.status, []byte(tt.body)))
		})
	}
}

func TestClassifyResponse(t *testing.T) {
	out := classifyResponse(http.StatusOK, []byte(`{"data":{}}`))
	require.Equal(t, KindSuccess, out.Kind)
	require.NoError(t, out.Err)
	require.NotNil(t, out.Payload)

	out = classifyResponse(http.StatusUnauthorized, nil)
	require.Equal(t, KindAuthFailure, out.Kind)
	require.ErrorIs(t, out.Err, ErrAuthFailed)

	out = classifyResponse(http.StatusInternalServerError, []byte("database is locked"))
	require.Equal(t, KindRetryable, out.Kind)
	require.ErrorIs(t, out.Err, ErrStorageLocked)

	out = classifyResponse(http.StatusBadGateway, []byte("bad gateway"))
	require.Equal(t, KindFatal, out.Kind)
	require.Error(t, out.Err)
}

func TestClassifyTransportError(t *testing.T) {
	out := classifyTransportError(context.Canceled)
	require.Equal(t, KindCancelled, out.Kind)
	require.ErrorIs(t, out.Err, ErrCancelled)

	out = classifyTransportError(context.DeadlineExceeded)
	require.Equal(t, KindRetryable, out.Kind)

	out = classifyTransportError(syscall.ECONNRESET)
	require.Equal(t, KindRetryable, out.Kind)

	out = classifyTransportError(errors.New("no such host"))
	require.Equal(t, KindFatal, out.Kind)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "success", KindSuccess.String())
	require.Equal(t, "retryable", KindRetryable.String())
	require.Equal(t, "auth_failure", KindAuthFailure.String())
	require.Equal(t, "fatal", KindFatal.String())
	require.Equal(t, "cancelled", KindCancelled.String())
}
