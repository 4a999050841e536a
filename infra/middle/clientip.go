package middle

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the first IPv4 address in X-Forwarded-For, falling
// back to the peer address without its port.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			candidate := strings.TrimSpace(part)
			if ip := net.ParseIP(candidate); ip != nil && ip.To4() != nil {
				return candidate
			}
		}
	}

	remoteAddr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}
	if remoteAddr == "::1" || remoteAddr == "[::1]" {
		return "127.0.0.1"
	}
	return remoteAddr
}
