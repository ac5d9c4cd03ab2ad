package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, e *echo.Echo) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.1:5555"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRateLimitAllowsRequestsWithinBurst(t *testing.T) {
	e := echo.New()
	handler := RateLimit(5)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c := newRequest(t, e)
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, c.Response().Status)
}

func TestRateLimitRejectsRequestsBeyondBurst(t *testing.T) {
	e := echo.New()
	handler := RateLimit(1)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(newRequest(t, e)))

	err := handler(newRequest(t, e))
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}

func TestRateLimitTracksLimitersPerIP(t *testing.T) {
	e := echo.New()
	handler := RateLimit(1)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "203.0.113.1:1"
	c1 := e.NewContext(req1, httptest.NewRecorder())
	require.NoError(t, handler(c1))

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "203.0.113.2:1"
	c2 := e.NewContext(req2, httptest.NewRecorder())
	require.NoError(t, handler(c2))
}
