package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEntry(t *testing.T) {
	cachedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := bytes.Repeat([]byte("screenshot bytes "), 512)

	framed, err := encodeEntry(&entryHeader{
		CachedAt:  cachedAt,
		Size:      int64(len(payload)),
		SourceURL: "https://media.example.com/scene/42/screenshot",
	}, payload)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(framed, entryMagic))

	header, got, err := decodeEntry(framed)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.True(t, header.CachedAt.Equal(cachedAt))
	require.Equal(t, int64(len(payload)), header.Size)
	require.Equal(t, "https://media.example.com/scene/42/screenshot", header.SourceURL)
}

func TestDecodeHeaderWithoutDecompress(t *testing.T) {
	cachedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	framed, err := encodeEntry(&entryHeader{CachedAt: cachedAt, Size: 5}, []byte("hello"))
	require.NoError(t, err)

	header, body, err := decodeHeader(framed)
	require.NoError(t, err)
	require.True(t, header.CachedAt.Equal(cachedAt))
	require.NotEmpty(t, body)
	// Body stays compressed until decodeEntry.
	require.NotEqual(t, []byte("hello"), body)
}

func TestDecodeEntryInvalidMagic(t *testing.T) {
	_, _, err := decodeEntry([]byte("XXXX\x00\x00\x00\x02{}"))
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecodeEntryTruncated(t *testing.T) {
	framed, err := encodeEntry(&entryHeader{CachedAt: time.Now(), Size: 5}, []byte("hello"))
	require.NoError(t, err)

	_, _, err = decodeHeader(framed[:6])
	require.ErrorIs(t, err, ErrInvalidMagic)

	_, _, err = decodeHeader(framed[:10])
	require.Error(t, err)
}

func TestEncodeEntryCompresses(t *testing.T) {
	payload := bytes.Repeat([]byte("aaaaaaaaaaaaaaaa"), 4096)
	framed, err := encodeEntry(&entryHeader{CachedAt: time.Now(), Size: int64(len(payload))}, payload)
	require.NoError(t, err)
	require.Less(t, len(framed), len(payload))
}
