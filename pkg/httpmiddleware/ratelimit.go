package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max requests per Window. Zero or negative disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

type window struct {
	start time.Time
	prev  float64
	curr  float64
}

// Limiter is a per-key sliding window counter.
type Limiter struct {
	max    int
	window time.Duration
	key    func(*http.Request) string
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter returns a Limiter for cfg.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	key := cfg.KeyFunc
	if key == nil {
		key = ClientIP
	}
	return &Limiter{
		max:     cfg.Max,
		window:  cfg.Window,
		key:     key,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts a request for key at now. It reports whether the request fits
// the limit, the remaining budget and when the current window ends.
func (l *Limiter) Allow(key string, now time.Time) (allowed bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{start: now.Truncate(l.window)}
		l.windows[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.window {
		if elapsed >= 2*l.window {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.start = now.Truncate(l.window)
	}

	weight := 1 - now.Sub(w.start).Seconds()/l.window.Seconds()
	used := w.prev*max(weight, 0) + w.curr
	reset = w.start.Add(l.window)
	if used >= float64(l.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(int(float64(l.max)-used-1), 0), reset
}

// Evict drops keys idle for two windows.
func (l *Limiter) Evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if now.Sub(w.start) >= 2*l.window {
			delete(l.windows, k)
		}
	}
}

// Run evicts idle keys every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	if l.max <= 0 || l.window <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(2 * l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			l.Evict(now)
		}
	}
}

// Middleware enforces the limit. Rejected requests get 429 with a JSON error
// and a Retry-After header. Every response carries X-RateLimit-* headers.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if l.max <= 0 || l.window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := l.now()
			allowed, remaining, reset := l.Allow(l.key(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				retry := max(reset.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
