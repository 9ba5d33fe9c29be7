// Package catalog exposes typed queries against a remote
// media-cataloging server's GraphQL endpoint, built on the dispatch
// layer so every query inherits retry, cancellation, and auth
// handling.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mediakit/catalog-client/dispatch"
)

// Client issues catalog queries through a dispatcher.
type Client struct {
	dispatcher *dispatch.Dispatcher
}

// NewClient creates a client over the dispatcher.
func NewClient(dispatcher *dispatch.Dispatcher) *Client {
	return &Client{dispatcher: dispatcher}
}

// graphqlError is one entry of a response error list.
type graphqlError struct {
	Message string `json:"message"`
}

// envelope is the standard query response shape.
type envelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphqlError             `json:"errors"`
}

// query executes a document and returns the decoded data map.
func (c *Client) query(ctx context.Context, document string, variables map[string]any) (map[string]json.RawMessage, error) {
	req, err := dispatch.NewGraphQLRequest(document, variables)
	if err != nil {
		return nil, err
	}

	out := c.dispatcher.Execute(ctx, req)
	if out.Err != nil {
		return nil, out.Err
	}

	var env envelope
	if err := json.Unmarshal(out.Payload, &env); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("query failed: %s", strings.Join(msgs, "; "))
	}
	if env.Data == nil {
		return nil, errors.New("query response missing data")
	}
	return env.Data, nil
}

// findPage runs a find query and decodes the count plus the page of
// items nested under (field, itemsKey).
func findPage[T any](ctx context.Context, c *Client, document, field, itemsKey string, filter FindFilter) ([]T, int, error) {
	data, err := c.query(ctx, document, map[string]any{"filter": filter})
	if err != nil {
		return nil, 0, err
	}

	raw, ok := data[field]
	if !ok {
		return nil, 0, fmt.Errorf("query response missing %s", field)
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", field, err)
	}

	var count int
	if rawCount, ok := result["count"]; ok {
		if err := json.Unmarshal(rawCount, &count); err != nil {
			return nil, 0, fmt.Errorf("decoding %s count: %w", field, err)
		}
	}

	var items []T
	if rawItems, ok := result[itemsKey]; ok {
		if err := json.Unmarshal(rawItems, &items); err != nil {
			return nil, 0, fmt.Errorf("decoding %s items: %w", field, err)
		}
	}
	return items, count, nil
}

// FindScenes returns one page of scenes and the total count.
func (c *Client) FindScenes(ctx context.Context, filter FindFilter) ([]Scene, int, error) {
	return findPage[Scene](ctx, c, findScenesQuery, "findScenes", "scenes", filter)
}

// FindPerformers returns one page of performers and the total count.
func (c *Client) FindPerformers(ctx context.Context, filter FindFilter) ([]Performer, int, error) {
	return findPage[Performer](ctx, c, findPerformersQuery, "findPerformers", "performers", filter)
}

// FindStudios returns one page of studios and the total count.
func (c *Client) FindStudios(ctx context.Context, filter FindFilter) ([]Studio, int, error) {
	return findPage[Studio](ctx, c, findStudiosQuery, "findStudios", "studios", filter)
}

// FindGalleries returns one page of galleries and the total count.
func (c *Client) FindGalleries(ctx context.Context, filter FindFilter) ([]Gallery, int, error) {
	return findPage[Gallery](ctx, c, findGalleriesQuery, "findGalleries", "galleries", filter)
}

// FindTags returns one page of tags and the total count.
func (c *Client) FindTags(ctx context.Context, filter FindFilter) ([]Tag, int, error) {
	return findPage[Tag](ctx, c, findTagsQuery, "findTags", "tags", filter)
}

// Status probes the server, returning its system status and build
// version. Useful as a connectivity and credential check.
func (c *Client) Status(ctx context.Context) (*SystemStatus, *Version, error) {
	data, err := c.query(ctx, systemStatusQuery, nil)
	if err != nil {
		return nil, nil, err
	}

	var status SystemStatus
	if raw, ok := data["systemStatus"]; ok {
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, nil, fmt.Errorf("decoding system status: %w", err)
		}
	}
	var version Version
	if raw, ok := data["version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return nil, nil, fmt.Errorf("decoding version: %w", err)
		}
	}
	return &status, &version, nil
}
