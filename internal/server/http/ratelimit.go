package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ekisa-team/scribepod/internal/config"
)

// Paths that are never rate limited.
var rateLimitExempt = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu        sync.Mutex
	clients   map[string]*clientEntry
	lastPrune time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(requests int, window time.Duration) *clientLimiter {
	return &clientLimiter{
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		idleTTL: 2 * window,
		clients: make(map[string]*clientEntry),
	}
}

func (l *clientLimiter) allow(client string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > l.idleTTL {
		for key, entry := range l.clients {
			if now.Sub(entry.lastSeen) > l.idleTTL {
				delete(l.clients, key)
			}
		}
		l.lastPrune = now
	}

	entry, ok := l.clients[client]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = entry
	}
	entry.lastSeen = now

	r := entry.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// rateLimiter applies the global limit plus stricter per-path limits.
type rateLimiter struct {
	global  *clientLimiter
	perPath map[string]*clientLimiter
	now     func() time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		perPath: make(map[string]*clientLimiter),
		now:     time.Now,
	}

	if cfg.MaxRequests > 0 && cfg.Window > 0 {
		rl.global = newClientLimiter(cfg.MaxRequests, cfg.Window)
	}
	if cfg.TranscribePerMinute > 0 {
		rl.perPath["/transcribe"] = newClientLimiter(cfg.TranscribePerMinute, time.Minute)
	}

	return rl
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rateLimitExempt[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		client := clientAddr(r)
		now := rl.now()

		if l, ok := rl.perPath[r.URL.Path]; ok {
			if allowed, retry := l.allow(client, now); !allowed {
				writeTooManyRequests(w, retry)
				return
			}
		}

		if rl.global != nil {
			if allowed, retry := rl.global.allow(client, now); !allowed {
				writeTooManyRequests(w, retry)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retry time.Duration) {
	seconds := int(retry.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(http.StatusTooManyRequests),
		"status": http.StatusTooManyRequests,
		"detail": "Too many requests from this address, please try again later",
	})
}
