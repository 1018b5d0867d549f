package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowList := []string{"https://boards.example.com/app", "http://localhost:5173"}

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		// No allow-list: everything passes
		{"no list, empty origin", nil, "", true},
		{"no list, any origin", nil, "https://evil.com", true},
		{"wildcard", []string{"*"}, "https://evil.com", true},

		// With allow-list
		{"empty origin", allowList, "", true},
		{"listed origin", allowList, "https://boards.example.com", true},
		{"listed origin, case", allowList, "HTTPS://Boards.Example.com", true},
		{"listed localhost", allowList, "http://localhost:5173", true},
		{"different host", allowList, "https://evil.com", false},
		{"different port", allowList, "https://boards.example.com:9090", false},
		{"http instead of https", allowList, "http://boards.example.com", false},
		{"subdomain", allowList, "https://sub.boards.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(tt.allowed)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/api/v1/boards/x/watch", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/boards", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"surrounding spaces", "  http://localhost:8080 ", "http://localhost:8080"},
		{"wildcard", "*", "*"},
		{"empty string", "", ""},
		{"no host", "mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeOrigin(tt.rawURL))
		})
	}
}
