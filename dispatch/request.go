package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// graphqlPath is the query endpoint exposed by the catalog server.
const graphqlPath = "/graphql"

// Request describes a single outbound request. The API key header for
// the active server identity is attached by the dispatcher; callers
// must not set it themselves.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    []byte
	Timeout time.Duration // zero means the dispatcher default
}

// graphqlPayload is the wire shape of a query request.
type graphqlPayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// NewGraphQLRequest builds a POST request carrying the given query
// document and variables.
func NewGraphQLRequest(query string, variables map[string]any) (*Request, error) {
	body, err := json.Marshal(graphqlPayload{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encoding query payload: %w", err)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	return &Request{
		Method: http.MethodPost,
		Path:   graphqlPath,
		Header: header,
		Body:   body,
	}, nil
}
