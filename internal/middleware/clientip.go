package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const clientIPContextKey contextKey = "client_ip"

// ProxyTrust resolves the client address for a request. Forwarding headers
// are only read when the socket peer is one of the trusted proxies.
type ProxyTrust struct {
	proxies []netip.Prefix
}

func NewProxyTrust(proxies []netip.Prefix) *ProxyTrust {
	return &ProxyTrust{proxies: proxies}
}

// Handler stores the resolved client IP in the request context for
// ClientIP.
func (p *ProxyTrust) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := p.resolve(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPContextKey, ip)))
	})
}

func (p *ProxyTrust) resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !p.trusted(peer) {
		return peer
	}

	// Walk X-Forwarded-For right to left; the first hop that is not one of
	// our proxies is the client.
	if forwarded := r.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
		hops := strings.Split(strings.Join(forwarded, ","), ",")
		leftmost := ""
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			leftmost = addr.Unmap().String()
			if !p.trusted(leftmost) {
				return leftmost
			}
		}
		if leftmost != "" {
			return leftmost
		}
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}

	return peer
}

func (p *ProxyTrust) trusted(ip string) bool {
	if len(p.proxies) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range p.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address resolved by ProxyTrust, or the socket peer
// when the request did not pass through it. Forwarding headers are never
// read here.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(remote)
	if err == nil && host != "" {
		return host
	}
	return remote
}
