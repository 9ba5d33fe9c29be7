package catalogclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		wantErr bool
	}{
		{
			name: "valid https",
			id:   Identity{ID: "home", Host: "stash.local", Port: 9999, Scheme: "https"},
		},
		{
			name: "valid http",
			id:   Identity{Host: "127.0.0.1", Port: 9999, Scheme: "http"},
		},
		{
			name:    "missing host",
			id:      Identity{Port: 9999, Scheme: "http"},
			wantErr: true,
		},
		{
			name:    "bad port",
			id:      Identity{Host: "stash.local", Port: 0, Scheme: "http"},
			wantErr: true,
		},
		{
			name:    "bad scheme",
			id:      Identity{Host: "stash.local", Port: 9999, Scheme: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIdentityBaseURL(t *testing.T) {
	id := Identity{Host: "stash.local", Port: 9999, Scheme: "https"}
	require.Equal(t, "https://stash.local:9999", id.BaseURL())
}

func TestIdentityNamespace(t *testing.T) {
	withID := Identity{ID: "home", Host: "a.example", Port: 1, Scheme: "http"}
	require.Equal(t, "home", withID.Namespace())

	// Without an ID the namespace is derived from the address.
	anon := Identity{Host: "A.Example", Port: 9999, Scheme: "HTTP"}
	require.Equal(t, "http://a.example:9999", anon.Namespace())

	// Different servers must never share a namespace.
	other := Identity{Host: "b.example", Port: 9999, Scheme: "http"}
	require.NotEqual(t, anon.Namespace(), other.Namespace())
}

func TestIdentityIsZero(t *testing.T) {
	require.True(t, Identity{}.IsZero())
	require.False(t, Identity{Host: "x"}.IsZero())
}
