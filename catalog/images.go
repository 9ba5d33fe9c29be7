package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mediakit/catalog-client/dispatch"
	"github.com/mediakit/catalog-client/telemetry"
)

// FetchImage retrieves image bytes from a media URL returned by the
// server (screenshot, preview, image_path). The URL's path and query
// are dispatched against the active server identity, so the request
// carries the API key and follows the same retry and cancellation
// rules as queries. The signature matches the cache's fetch hook.
func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing image url: %w", err)
	}
	if u.Path == "" {
		return nil, fmt.Errorf("image url %q has no path", rawURL)
	}

	start := time.Now()
	out := c.dispatcher.Execute(ctx, &dispatch.Request{
		Method: http.MethodGet,
		Path:   u.Path,
		Query:  u.Query(),
	})
	if out.Err != nil {
		telemetry.RecordUpstreamFetch(ctx, "image", time.Since(start), 0, "error")
		return nil, out.Err
	}

	telemetry.RecordUpstreamFetch(ctx, "image", time.Since(start), int64(len(out.Payload)), "ok")
	return out.Payload, nil
}
