package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("CATALOG_TEST_KEY", "key-from-env")

	r := NewResolver()
	val, err := r.Resolve(context.Background(), "env:CATALOG_TEST_KEY")
	require.NoError(t, err)
	require.Equal(t, "key-from-env", val)
}

func TestResolveEnvMissing(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), "env:CATALOG_TEST_KEY_UNSET")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not set")
}

func TestResolveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api-key")
	require.NoError(t, os.WriteFile(path, []byte("  key-from-file\n"), 0600))

	r := NewResolver()
	val, err := r.Resolve(context.Background(), "file:"+path)
	require.NoError(t, err)
	require.Equal(t, "key-from-file", val)
}

func TestResolveFileMissing(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), "file:/nonexistent/api-key")
	require.Error(t, err)
}

func TestResolveLiteral(t *testing.T) {
	r := NewResolver()

	val, err := r.Resolve(context.Background(), "literal:abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", val)

	// No scheme means literal.
	val, err = r.Resolve(context.Background(), "plain-value")
	require.NoError(t, err)
	require.Equal(t, "plain-value", val)
}

func TestResolveEmptyRef(t *testing.T) {
	r := NewResolver()
	val, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, val)
}

func TestResolveUnknownScheme(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), "vault:secret/api-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown credential scheme")
}

func TestResolveMemoizes(t *testing.T) {
	calls := 0
	r := NewResolver(WithProvider("counting", func(ctx context.Context, ref string) (string, error) {
		calls++
		return "value-" + ref, nil
	}))

	for i := 0; i < 3; i++ {
		val, err := r.Resolve(context.Background(), "counting:a")
		require.NoError(t, err)
		require.Equal(t, "value-a", val)
	}
	require.Equal(t, 1, calls)

	// Errors are not memoized.
	_, err := r.Resolve(context.Background(), "counting:b")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestForget(t *testing.T) {
	calls := 0
	r := NewResolver(WithProvider("counting", func(ctx context.Context, ref string) (string, error) {
		calls++
		return "rotated", nil
	}))

	_, err := r.Resolve(context.Background(), "counting:a")
	require.NoError(t, err)
	r.Forget("counting:a")
	_, err = r.Resolve(context.Background(), "counting:a")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestCustomProviderError(t *testing.T) {
	providerErr := errors.New("backend unavailable")
	r := NewResolver(WithProvider("vault", func(ctx context.Context, ref string) (string, error) {
		return "", providerErr
	}))

	_, err := r.Resolve(context.Background(), "vault:secret/api-key")
	require.ErrorIs(t, err, providerErr)
}
