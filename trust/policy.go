// Package trust decides whether to accept TLS certificates presented by
// a given host. Self-hosted catalog servers commonly run with
// self-signed certificates on a LAN; the policy accepts any certificate
// from loopback and private-range hosts while leaving standard chain
// verification in place for everything else.
package trust

import (
	"crypto/tls"
	"net"
	"net/netip"
	"strings"
)

// privateBlocks are the address ranges trusted unconditionally:
// loopback plus the three standard private IPv4 blocks.
var privateBlocks = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
}

// defaultAllowedHosts are hostnames trusted without certificate
// verification regardless of the address they resolve to.
var defaultAllowedHosts = []string{
	"localhost",
	"host.docker.internal",
}

// Policy decides per-host certificate trust. It is stateless and safe
// for concurrent use.
type Policy struct {
	allowed map[string]struct{}
}

// New creates a Policy. Extra hostnames are added to the built-in
// allow-list.
func New(extraHosts ...string) *Policy {
	allowed := make(map[string]struct{}, len(defaultAllowedHosts)+len(extraHosts))
	for _, h := range defaultAllowedHosts {
		allowed[h] = struct{}{}
	}
	for _, h := range extraHosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}
	return &Policy{allowed: allowed}
}

// TrustsHost reports whether certificates from host are accepted
// without chain verification. The host may include a port. Hostnames
// are matched against the allow-list only; no DNS resolution is
// performed, so a public hostname pointing at a private address is
// still verified normally.
func (p *Policy) TrustsHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}

	if _, ok := p.allowed[host]; ok {
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, block := range privateBlocks {
		if block.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientTLSConfig returns the TLS configuration to use when dialing
// host. Trusted hosts skip certificate chain verification; all other
// hosts use standard system verification.
func (p *Policy) ClientTLSConfig(host string) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if p.TrustsHost(host) {
		cfg.InsecureSkipVerify = true //nolint:gosec // loopback/private hosts only
	}
	return cfg
}
