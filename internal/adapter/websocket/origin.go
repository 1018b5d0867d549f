package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns a CheckOrigin function for the watch upgrader.
// An empty allow-list accepts every origin. Otherwise requests without an
// Origin header (non-browser clients) and origins in the list are accepted;
// a "*" entry accepts all.
func NewCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if normalized := normalizeOrigin(o); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	_, wildcard := allowed["*"]

	return func(r *http.Request) bool {
		if len(allowed) == 0 || wildcard {
			return true
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if _, ok := allowed[normalizeOrigin(origin)]; ok {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func normalizeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
