package httpx

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter estimates request rates per key with a sliding window counter: the
// previous fixed window's count, weighted by how much of it still overlaps the
// sliding window, plus the current window's count.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	remaining int
	reset     time.Time
}

// slidingEstimate weights the previous window by the share of it still inside the
// sliding window ending at now.
func slidingEstimate(previous, current int, now, start time.Time, window time.Duration) int {
	elapsed := float64(now.Sub(start)) / float64(window)
	return int(float64(previous)*(1-elapsed)) + current
}

type windowCounts struct {
	start    time.Time
	window   time.Duration
	previous int
	current  int
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowCounts
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryRateLimiter returns a process-local limiter with a background sweeper.
func NewMemoryRateLimiter() RateLimiter {
	rl := newMemoryRateLimiter(time.Now)
	go rl.sweep(rateLimiterSweepInterval)
	return rl
}

func newMemoryRateLimiter(now func() time.Time) *memoryRateLimiter {
	return &memoryRateLimiter{windows: map[string]*windowCounts{}, now: now, done: make(chan struct{})}
}

func (rl *memoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()
	start := now.Truncate(window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	wc := rl.windows[key]
	switch {
	case wc == nil:
		wc = &windowCounts{start: start, window: window}
		rl.windows[key] = wc
	case start.Sub(wc.start) == window:
		wc.start, wc.previous, wc.current = start, wc.current, 0
	case start.After(wc.start):
		wc.start, wc.previous, wc.current = start, 0, 0
	}

	reset := start.Add(window)
	estimate := slidingEstimate(wc.previous, wc.current, now, start, window)
	if estimate >= limit {
		return rateDecision{allowed: false, reset: reset}
	}
	wc.current++
	return rateDecision{allowed: true, remaining: limit - estimate - 1, reset: reset}
}

func (rl *memoryRateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evict(rl.now())
		case <-rl.done:
			return
		}
	}
}

// evict drops keys whose windows no longer influence any estimate.
func (rl *memoryRateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, wc := range rl.windows {
		if now.Sub(wc.start) >= 2*wc.window {
			delete(rl.windows, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// withRateLimit applies a per-client limit keyed by class, so reads and writes keep
// separate budgets.
func (r *Router) withRateLimit(route, class string, limit int, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		decision := r.limiter.Allow(req.Context(), class+":"+rateLimitKeyIP(req, r.trustProxy), limit, rateWindow)
		r.applyRateHeaders(w, limit, decision)
		if !decision.allowed {
			r.recordRateLimitHit(route, class)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

func rateLimitKeyIP(req *http.Request, trustForwarded bool) string {
	if host := clientIP(req, trustForwarded); host != "" {
		return "ip:" + host
	}
	return "ip:unknown"
}

// clientIP returns the first X-Forwarded-For hop when trusted, else the peer address.
func clientIP(req *http.Request, trustForwarded bool) string {
	if forwarded := req.Header.Get("X-Forwarded-For"); trustForwarded && forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	addr := strings.TrimSpace(req.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
