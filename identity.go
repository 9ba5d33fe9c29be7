// Package catalogclient provides the data-access core for a remote
// media-cataloging service: a retrying request dispatcher with
// generation-based cancellation, a two-tier image cache namespaced per
// server identity, and a generic paginated feed loader.
package catalogclient

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Identity describes one configured catalog server. It is treated as an
// immutable value: the session layer swaps the active Identity as a
// whole, and the cache uses it as a namespace key.
type Identity struct {
	// ID is an opaque identifier chosen by the configuration layer.
	ID string

	// Host is the server hostname or IP address.
	Host string

	// Port is the TCP port the API listens on.
	Port int

	// Scheme is "http" or "https".
	Scheme string

	// APIKeyRef is a credential reference ("env:NAME", "file:/path",
	// or a literal key) resolved by the credentials package.
	APIKeyRef string
}

// Validate checks that the identity is usable for outbound requests.
func (id Identity) Validate() error {
	if id.Host == "" {
		return fmt.Errorf("identity %q: host is required", id.ID)
	}
	if id.Port <= 0 || id.Port > 65535 {
		return fmt.Errorf("identity %q: invalid port %d", id.ID, id.Port)
	}
	switch id.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("identity %q: invalid scheme %q", id.ID, id.Scheme)
	}
	return nil
}

// BaseURL returns the root URL for the server, e.g. "https://host:9999".
func (id Identity) BaseURL() string {
	u := url.URL{
		Scheme: id.Scheme,
		Host:   net.JoinHostPort(id.Host, strconv.Itoa(id.Port)),
	}
	return u.String()
}

// Namespace returns the cache namespace key for this identity. Entries
// written under one namespace are never visible to another. The ID is
// preferred when set so that re-addressing a server (new hostname, same
// configured entry) keeps its cache.
func (id Identity) Namespace() string {
	if id.ID != "" {
		return id.ID
	}
	return strings.ToLower(id.Scheme) + "://" + net.JoinHostPort(strings.ToLower(id.Host), strconv.Itoa(id.Port))
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// String returns a loggable representation without the credential reference.
func (id Identity) String() string {
	if id.ID != "" {
		return fmt.Sprintf("%s (%s)", id.ID, id.BaseURL())
	}
	return id.BaseURL()
}
