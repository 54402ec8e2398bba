package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-IP limiter cache; the least recently seen
// client loses its bucket first.
const maxTrackedClients = 10_000

type ipRateLimiter struct {
	perMin   int
	limiters *lru.Cache[string, *rate.Limiter]
}

func newIPRateLimiter(perMin int) *ipRateLimiter {
	cache, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &ipRateLimiter{perMin: perMin, limiters: cache}
}

func (l *ipRateLimiter) limiter(ip string) *rate.Limiter {
	if lim, ok := l.limiters.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), l.perMin)
	// Another request may have raced us here; keep whichever got in first.
	if prev, ok, _ := l.limiters.PeekOrAdd(ip, lim); ok {
		return prev
	}
	return lim
}

// rateLimit applies a token bucket of perMin requests per minute per client IP
// and answers 429 with Retry-After once it is drained.
func rateLimit(perMin int) gin.HandlerFunc {
	l := newIPRateLimiter(perMin)
	limitHeader := strconv.Itoa(perMin)

	return func(c *gin.Context) {
		lim := l.limiter(c.ClientIP())
		c.Header("X-RateLimit-Limit", limitHeader)

		r := lim.Reserve()
		if delay := r.Delay(); !r.OK() || delay > 0 {
			r.Cancel()
			retryAfter := int(math.Ceil(delay.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please retry later."})
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, int(lim.Tokens()))))
		c.Next()
	}
}
