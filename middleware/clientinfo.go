package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// ClientInfo records the caller's IP address, user agent and host on the
// request context for session metadata, activity events and API key
// allow-lists. With trustProxy, X-Forwarded-For, X-Real-IP and
// X-Forwarded-Host are honoured; only enable it behind a proxy that
// overwrites them.
func ClientInfo(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			host := r.Host
			if trustProxy {
				if fwd := forwardedIP(r); fwd != "" {
					ip = fwd
				}
				if fh := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); fh != "" {
					host = fh
				}
			}

			ctx := authcore.WithClientIP(r.Context(), ip)
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())
			ctx = authcore.WithClientDomain(ctx, hostname(host))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func forwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return ""
}

// hostname strips any port from a Host header value.
func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.Trim(host, "[]")
}
