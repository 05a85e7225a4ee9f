package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/walletvault/server/internal/utils"
)

// RateLimiter throttles a route per caller wallet. Audio generation is the
// expensive path: 10 requests per 15 minutes per wallet.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    time.Duration
	burst    int
}

// NewRateLimiter allows burst requests per window per wallet.
func NewRateLimiter(window time.Duration, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    window / time.Duration(burst),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(rl.every), rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Middleware rejects over-limit requests with 429. Wallet header identifies
// the caller; unauthenticated requests fall back to the remote address.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderAddress)
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.limiter(key).Allow() {
			utils.WriteError(w, http.StatusTooManyRequests,
				"Too many audio generation requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
