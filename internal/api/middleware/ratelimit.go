// Package middleware holds echo middleware shared by internal/api's
// routes. Grounded on the teacher's internal/api/middleware (the
// EnforcePlan-style echo.MiddlewareFunc wrapping next) and
// internal/providers/bitbucket's rate.NewLimiter usage, which this
// generalizes from a single outbound client limiter into a per-remote-IP
// inbound token bucket.
package middleware

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimit returns middleware enforcing requestsPerMinute per remote IP,
// matching spec.md §6's default 10 req/min.
func RateLimit(requestsPerMinute int) echo.MiddlewareFunc {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	limiters := &limiterStore{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !limiters.forIP(ip).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// limiterStore keys one token bucket per remote IP.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func (s *limiterStore) forIP(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(s.rps, s.burst)
		s.limiters[ip] = l
	}
	return l
}
