package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"famledger/pkg/requestcontext"
)

// ClientMetadata extracts client IP address, User-Agent, and a parsed device
// description from the request and adds them to the context for use by
// handlers and services (audit entries record all three).
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		ua := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, ua)
		ctx = requestcontext.WithDeviceInfo(ctx, DeviceInfoFromUserAgent(ua))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceInfoFromUserAgent condenses a raw User-Agent into a short
// human-readable description like "Chrome 120 on Linux (Mobile)".
func DeviceInfoFromUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	parsed := useragent.New(raw)
	name, version := parsed.Browser()
	if name == "" {
		return raw
	}
	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		// Major version is enough for forensics; full versions churn.
		if idx := strings.Index(version, "."); idx != -1 {
			version = version[:idx]
		}
		b.WriteString(" ")
		b.WriteString(version)
	}
	if os := parsed.OS(); os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	if parsed.Mobile() {
		b.WriteString(" (Mobile)")
	}
	return b.String()
}

// ClientIPFromRequest extracts the real client IP from the request, handling
// proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// Check X-Forwarded-For header first (standard for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
		// Take the first IP which is the original client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header (used by nginx and other proxies)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr (direct connection)
	// RemoteAddr is in format "ip:port", so we need to strip the port
	if addr := r.RemoteAddr; addr != "" {
		// For IPv6, format is [::1]:port
		// For IPv4, format is 127.0.0.1:port
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
