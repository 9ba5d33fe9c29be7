package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain url unchanged",
			in:   "https://media.example.com/scene/42/screenshot",
			want: "https://media.example.com/scene/42/screenshot",
		},
		{
			name: "timestamp stripped",
			in:   "https://media.example.com/scene/42/screenshot?t=1700000000",
			want: "https://media.example.com/scene/42/screenshot",
		},
		{
			name: "width and height retained",
			in:   "https://media.example.com/scene/42/screenshot?width=640&height=360&t=123",
			want: "https://media.example.com/scene/42/screenshot?height=360&width=640",
		},
		{
			name: "query params sorted",
			in:   "https://media.example.com/image?width=640&crop=true&quality=80",
			want: "https://media.example.com/image?crop=true&quality=80&width=640",
		},
		{
			name: "cache buster variants stripped",
			in:   "https://media.example.com/image?cb=9&nonce=abc&rand=1&_=555&width=100",
			want: "https://media.example.com/image?width=100",
		},
		{
			name: "fragment dropped",
			in:   "https://media.example.com/image?width=100#preview",
			want: "https://media.example.com/image?width=100",
		},
		{
			name: "unparseable returned unchanged",
			in:   "http://[::1]:bad%port",
			want: "http://[::1]:bad%port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestNormalizeKeyIdempotent(t *testing.T) {
	urls := []string{
		"https://media.example.com/scene/42/screenshot?t=1700000000&width=640",
		"https://media.example.com/image?b=2&a=1",
		"https://media.example.com/plain",
	}
	for _, u := range urls {
		once := NormalizeKey(u)
		require.Equal(t, once, NormalizeKey(once))
	}
}

func TestNormalizeKeyVolatileOnlyDiffersNot(t *testing.T) {
	a := NormalizeKey("https://media.example.com/image?width=640&t=111")
	b := NormalizeKey("https://media.example.com/image?t=999&width=640")
	require.Equal(t, a, b)
}

func TestDurableKey(t *testing.T) {
	k1 := DurableKey("https://media.example.com/a")
	k2 := DurableKey("https://media.example.com/b")

	require.Len(t, k1, 64)
	require.Len(t, k2, 64)
	require.NotEqual(t, k1, k2)
	require.Equal(t, k1, DurableKey("https://media.example.com/a"))
}
