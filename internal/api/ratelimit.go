package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/http/response"
	"github.com/Arax734/bookshare-app-sub001/internal/ratelimit"
)

// RateLimitMiddleware rejects requests from an IP that has used up its
// tokens with 429 and a Retry-After of at least one second.
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger interface{ Warn(msg string, args ...any) }) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			if ok, wait := limiter.Allow(ip); !ok {
				logger.Warn("Rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"retry_after", wait,
				)
				response.TooManyRequests(w, "Too many requests. Please try again later.", max(wait, time.Second))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	// First entry of X-Forwarded-For is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if client, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(client)
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
