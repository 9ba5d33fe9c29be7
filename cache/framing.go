package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

var (
	// entryMagic is the 4-byte prefix for framed durable cache entries.
	entryMagic = []byte("MCE1")

	// ErrInvalidMagic is returned when an entry doesn't start with the
	// expected magic bytes.
	ErrInvalidMagic = errors.New("invalid magic bytes: expected MCE1")

	// ErrHeaderTooLarge is returned when the header exceeds maxHeaderSize.
	ErrHeaderTooLarge = errors.New("header exceeds maximum size")
)

const (
	// maxHeaderSize is the maximum allowed size for the JSON header.
	maxHeaderSize = 64 * 1024

	// maxPayloadSize caps decompression to guard against corrupted
	// entries expanding unboundedly.
	maxPayloadSize = 64 * 1024 * 1024
)

// entryHeader carries metadata for a durable cache entry. CachedAt
// drives the TTL sweep.
type entryHeader struct {
	CachedAt  time.Time `json:"cached_at"`
	Size      int64     `json:"size"`
	SourceURL string    `json:"source_url,omitempty"`
}

// Shared zstd codec. Encoder and decoder are goroutine-safe when used
// through EncodeAll/DecodeAll.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeEntry frames a cache entry for durable storage.
// Format: MAGIC (4 bytes) | HDRLEN (uint32 big-endian) | HDRBYTES (JSON) | zstd(BODY)
func encodeEntry(header *entryHeader, payload []byte) ([]byte, error) {
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}
	if len(headerBytes) > maxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	compressed := zstdEncoder.EncodeAll(payload, nil)

	buf := bytes.NewBuffer(make([]byte, 0, 8+len(headerBytes)+len(compressed)))
	buf.Write(entryMagic)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(headerBytes))); err != nil { //nolint:gosec // bounds-checked above
		return nil, fmt.Errorf("writing header length: %w", err)
	}
	buf.Write(headerBytes)
	buf.Write(compressed)
	return buf.Bytes(), nil
}

// decodeHeader parses the header of a framed entry without touching the
// compressed body. The sweep uses this to read timestamps cheaply.
func decodeHeader(data []byte) (*entryHeader, []byte, error) {
	if len(data) < 8 || !bytes.Equal(data[:4], entryMagic) {
		return nil, nil, ErrInvalidMagic
	}
	headerLen := binary.BigEndian.Uint32(data[4:8])
	if headerLen > maxHeaderSize {
		return nil, nil, ErrHeaderTooLarge
	}
	if len(data) < int(8+headerLen) {
		return nil, nil, fmt.Errorf("truncated entry: header length %d exceeds remaining %d bytes", headerLen, len(data)-8)
	}

	var header entryHeader
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	return &header, data[8+headerLen:], nil
}

// decodeEntry parses a framed entry and decompresses its payload.
func decodeEntry(data []byte) (*entryHeader, []byte, error) {
	header, body, err := decodeHeader(data)
	if err != nil {
		return nil, nil, err
	}

	payload, err := zstdDecoder.DecodeAll(body, make([]byte, 0, header.Size))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if len(payload) > maxPayloadSize {
		return nil, nil, fmt.Errorf("payload exceeds maximum size: %d bytes", len(payload))
	}
	return header, payload, nil
}
