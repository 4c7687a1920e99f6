package http

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// IPConfig lists the proxies whose forwarding headers are believed.
// TrustedProxies holds CIDR ranges; invalid entries are ignored.
type IPConfig struct {
	TrustedProxies []string
}

// trusts reports whether the direct peer of r is a configured proxy
func (c *IPConfig) trusts(r *http.Request) bool {
	if c == nil || len(c.TrustedProxies) == 0 {
		return false
	}

	peer := net.ParseIP(peerAddr(r))
	if peer == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		if _, network, err := net.ParseCIDR(cidr); err == nil && network.Contains(peer) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the caller's address for rate limiting and audit
// entries. X-Forwarded-For (first valid entry) and then X-Real-IP are
// consulted only when the peer is a trusted proxy; otherwise, or when
// neither header holds an address, the peer address is used.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	if config.trusts(r) {
		for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if candidate = strings.TrimSpace(candidate); net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
			return xri
		}
	}
	return peerAddr(r)
}

// RequestURL rebuilds the absolute URL the client used. Pagination links
// are built from it. X-Forwarded-Proto and X-Forwarded-Host are honoured
// only behind a trusted proxy.
func RequestURL(r *http.Request, config *IPConfig) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if config.trusts(r) {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
			host = fh
		}
	}

	return &url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
}

func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
