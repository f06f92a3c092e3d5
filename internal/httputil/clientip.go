// Package httputil holds request helpers shared by the HTTP handlers.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address a request came from. Forwarding headers are
// only honoured when trustProxy is set, and only when they hold a parseable
// IP: the leftmost X-Forwarded-For entry first, then X-Real-IP. Anything
// else falls back to the connection's RemoteAddr.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
			if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
				return addr.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
