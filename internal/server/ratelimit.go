package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/KaramelBytes/estimate-insight/internal/logging"
)

const (
	visitorTTL  = 10 * time.Minute
	pruneEvery  = time.Minute
	retryAfterS = 60
)

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastPrune time.Time
	log       *logging.Logger
	onLimit   func()
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// newClientLimiter returns a limiter; rps <= 0 disables limiting.
func newClientLimiter(rps float64, burst int, log *logging.Logger, onLimit func()) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		visitors: map[string]*visitor{},
		log:      log,
		onLimit:  onLimit,
	}
}

func (c *clientLimiter) allow(key string, now time.Time) bool {
	if c.limit <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastPrune) > pruneEvery {
		for k, v := range c.visitors {
			if now.Sub(v.seen) > visitorTTL {
				delete(c.visitors, k)
			}
		}
		c.lastPrune = now
	}
	v, ok := c.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(c.limit, c.burst)}
		c.visitors[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !c.allow(key, time.Now()) {
			c.log.Warn("rate limit exceeded",
				logging.FieldClientIP, key,
				logging.FieldMethod, r.Method,
				logging.FieldPath, r.URL.Path,
			)
			if c.onLimit != nil {
				c.onLimit()
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterS))
			writeProblem(w, r, newProblem(http.StatusTooManyRequests, "rate-limit-exceeded", "Too Many Requests",
				"rate limit exceeded, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
