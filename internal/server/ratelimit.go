package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/docqa-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained per-IP rate on upload, ask and search
	// when none is configured.
	defaultRateLimit = 10
	// defaultRateBurst is the per-IP burst when none is configured.
	defaultRateBurst = 20
	// limiterIdleTTL is how long an idle client's bucket is kept.
	limiterIdleTTL = 5 * time.Minute
	// evictInterval is how often idle buckets are swept.
	evictInterval = time.Minute
)

// clientBucket is one client's token bucket and its last use.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token bucket on the expensive endpoints.
// Every ask and search embeds a question and every upload embeds the whole
// document, so the limit protects the embedding backend as much as the server.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
	log     *slog.Logger
}

// newRateLimiter constructs a rateLimiter and starts its eviction loop. The
// returned stop function ends the loop.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log,
	}

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case now := <-ticker.C:
				rl.evictIdle(now)
			}
		}
	}()

	return rl, func() { close(stopCh) }
}

// bucket returns the limiter for ip, creating it on first use.
func (rl *rateLimiter) bucket(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// evictIdle drops buckets unused for longer than limiterIdleTTL.
func (rl *rateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-limiterIdleTTL)
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// size reports the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects requests over the limit with 429 and a Retry-After
// header holding the whole seconds until the next token.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		ip := clientIP(r)
		res := rl.bucket(ip, now).ReserveN(now, 1)

		if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
			res.CancelAt(now)
			retry := 1
			if res.OK() {
				retry = max(1, int(math.Ceil(delay.Seconds())))
			}
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
				slog.Int("retry_after_s", retry),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
