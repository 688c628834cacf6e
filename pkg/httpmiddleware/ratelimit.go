package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the length of one window.
	Window time.Duration
	// KeyFunc extracts the limit key. Defaults to SessionOrIPKey.
	KeyFunc func(*http.Request) string
}

// counter holds the counts of the current and previous fixed windows.
type counter struct {
	prev      float64
	curr      float64
	currStart time.Time
}

// Limiter is a per-key sliding window rate limiter. The previous window's
// count is weighted by how much of it still overlaps the sliding window.
type Limiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	counters map[string]*counter
}

// NewLimiter creates a Limiter.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = SessionOrIPKey
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{cfg: cfg, counters: make(map[string]*counter)}
}

// Decision is the outcome of Allow.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow counts one request for key at now.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok {
		c = &counter{currStart: now.Truncate(l.cfg.Window)}
		l.counters[key] = c
	}
	if since := now.Sub(c.currStart); since >= l.cfg.Window {
		c.prev = c.curr
		if since >= 2*l.cfg.Window {
			c.prev = 0
		}
		c.curr = 0
		c.currStart = now.Truncate(l.cfg.Window)
	}

	overlap := max(1-now.Sub(c.currStart).Seconds()/l.cfg.Window.Seconds(), 0)
	used := c.prev*overlap + c.curr
	d := Decision{ResetAt: c.currStart.Add(l.cfg.Window)}
	if used >= float64(l.cfg.Max) {
		return d
	}
	c.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(l.cfg.Max)-used-1), 0)
	return d
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

// Evict drops keys whose windows are fully in the past.
func (l *Limiter) Evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.currStart) >= 2*l.cfg.Window {
			delete(l.counters, key)
		}
	}
}

// Run evicts stale keys every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.Evict(now)
		}
	}
}

// RateLimit rejects requests over the limit with 429 and a JSON notice.
// Every response carries X-RateLimit-* headers.
func RateLimit(l *Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(l.cfg.KeyFunc(r), time.Now())
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				retry := max(time.Until(d.ResetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "rate_limited",
					"message": "Too many requests, slow down.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionOrIPKey keys by visitor session, falling back to the client IP.
// Sessions minted by this request count against the IP so clients that drop
// the cookie cannot get a fresh budget per request.
func SessionOrIPKey(r *http.Request) string {
	if id := SessionIDFromContext(r.Context()); id != "" && !IsNewSession(r.Context()) {
		return "s:" + id
	}
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
