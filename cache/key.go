package cache

import (
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/zeebo/blake3"
)

// volatileParams are query parameters that act as cache busters: they
// change between requests for the same content. They are stripped from
// the cache key. Parameters that change the returned bytes themselves
// (width, height, size, crop, quality) are retained.
var volatileParams = map[string]struct{}{
	"t":           {},
	"ts":          {},
	"time":        {},
	"timestamp":   {},
	"nonce":       {},
	"rand":        {},
	"random":      {},
	"cb":          {},
	"cachebuster": {},
	"_":           {},
}

// NormalizeKey derives the cache key for a URL: volatile query
// parameters are dropped, the remainder are sorted into a canonical
// order, and the fragment is removed. Normalization is idempotent.
// Unparseable input is returned unchanged so it still keys consistently.
func NormalizeKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if _, ok := volatileParams[strings.ToLower(name)]; ok {
				q.Del(name)
			}
		}
		u.RawQuery = q.Encode() // Encode sorts keys
	}
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// DurableKey digests a normalized key into the fixed-width hex key used
// by the durable tier, keeping bolt keys bounded regardless of URL length.
func DurableKey(normalized string) []byte {
	sum := blake3.Sum256([]byte(normalized))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}
