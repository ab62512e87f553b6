// Package httputil holds small request helpers shared by the HTTP layer.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP extracts the client IP address from the request.
// When trustProxy is true, the first X-Forwarded-For entry and then
// X-Real-IP are consulted before RemoteAddr. Header values that do not
// parse as an IP address are ignored, so a client cannot pick an
// arbitrary rate-limit key.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, ok := parseIP(first); ok {
				return ip
			}
		}
		if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
