package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/boardsync/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func rateLimitedCall(t *testing.T, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/test", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	mw := newRateLimiter(10, 3) // 10 req/s, burst 3
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for range 3 {
		rec := rateLimitedCall(t, handler, testRemoteAddr)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	mw := newRateLimiter(0.01, 1) // very low rate, burst 1
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := rateLimitedCall(t, handler, testRemoteAddr)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = rateLimitedCall(t, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp.Error)
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	mw := newRateLimiter(0.01, 1) // very low rate, burst 1
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// First IP uses its burst
	assert.Equal(t, http.StatusOK, rateLimitedCall(t, handler, testRemoteAddr).Code)

	// Second IP still has its own burst
	assert.Equal(t, http.StatusOK, rateLimitedCall(t, handler, "5.6.7.8:5678").Code)

	// First IP is now blocked
	assert.Equal(t, http.StatusTooManyRequests, rateLimitedCall(t, handler, testRemoteAddr).Code)
}
