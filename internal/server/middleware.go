package server

import (
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avoauthd/internal/oauth"
	"github.com/vyrodovalexey/avoauthd/internal/observability"
)

// RequestIDHeader is the header carrying the request identifier.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware assigns each request an identifier, honoring one
// supplied by the caller, and propagates it via header and context.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// limiter returns the bucket for the given address, creating it on first
// use.
func (l *ipLimiter) limiter(addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[addr] = lim
	}
	return lim
}

// RateLimitMiddleware applies per-address token-bucket rate limiting to the
// token endpoint. The endpoint is a brute-force target, so the limit is
// keyed on the remote address rather than the claimed client identifier.
func RateLimitMiddleware(requestsPerSecond float64, burst int) gin.HandlerFunc {
	l := &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}

	return func(c *gin.Context) {
		addr, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			addr = c.Request.RemoteAddr
		}

		if !l.limiter(addr).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, oauth.NewError(oauth.ErrorCodeSlowDown))
			return
		}
		c.Next()
	}
}
