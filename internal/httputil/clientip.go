package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address used to key per-client limits. With
// trustProxy the leftmost parseable X-Forwarded-For entry wins, then
// X-Real-IP; otherwise only RemoteAddr is consulted. IPv4-mapped IPv6
// addresses are reported in their IPv4 form so one client gets one key.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for entry := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
			if addr, ok := parseAddr(entry); ok {
				return addr.String()
			}
		}
		if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
			return addr.String()
		}
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	// Unix sockets and test transports.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// parseAddr accepts a bare address or address:port.
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap().WithZone(""), true
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return a.Unmap().WithZone(""), true
	}
	return netip.Addr{}, false
}
