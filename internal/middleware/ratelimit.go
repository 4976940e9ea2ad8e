package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginRateLimiter limits failed login attempts per client IP. Each IP gets a
// token bucket holding maxAttempts tokens that refills over window.
type LoginRateLimiter struct {
	limiters    map[string]*rate.Limiter
	mutex       sync.Mutex
	maxAttempts int
	limit       rate.Limit
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewLoginRateLimiter allows maxAttempts per window for each IP
func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	rl := &LoginRateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		maxAttempts: maxAttempts,
		limit:       rate.Every(window / time.Duration(maxAttempts)),
		now:         time.Now,
		stop:        make(chan struct{}),
	}

	go rl.cleanupLoop(time.Minute)

	return rl
}

// Stop ends the background cleanup
func (rl *LoginRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// IsAllowed checks if a login attempt from the given IP is allowed
func (rl *LoginRateLimiter) IsAllowed(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	lim, ok := rl.limiters[ip]
	return !ok || lim.TokensAt(rl.now()) >= 1
}

// RecordAttempt records a failed login attempt for the given IP
func (rl *LoginRateLimiter) RecordAttempt(ip string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	lim, ok := rl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.maxAttempts)
		rl.limiters[ip] = lim
	}
	lim.AllowN(rl.now(), 1)
}

// Reset forgets the attempts of ip, used after a successful login
func (rl *LoginRateLimiter) Reset(ip string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	delete(rl.limiters, ip)
}

// GetTimeUntilAllowed returns the time until the next login attempt is allowed
func (rl *LoginRateLimiter) GetTimeUntilAllowed(ip string) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	lim, ok := rl.limiters[ip]
	if !ok {
		return 0
	}
	tokens := lim.TokensAt(rl.now())
	if tokens >= 1 {
		return 0
	}
	wait := time.Duration((1 - tokens) / float64(rl.limit) * float64(time.Second))
	return wait.Round(time.Millisecond)
}

func (rl *LoginRateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mutex.Lock()
			now := rl.now()
			for ip, lim := range rl.limiters {
				// A full bucket carries no history.
				if lim.TokensAt(now) >= float64(rl.maxAttempts) {
					delete(rl.limiters, ip)
				}
			}
			rl.mutex.Unlock()
		}
	}
}

// LoginRateLimit rejects POSTs from clients over the limit. Responses with
// status 401 count as failed attempts; a successful login resets the count.
func LoginRateLimit(rateLimiter *LoginRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !rateLimiter.IsAllowed(ip) {
				wait := rateLimiter.GetTimeUntilAllowed(ip)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, http.StatusTooManyRequests,
					fmt.Sprintf("Too many login attempts. Please try again in %s.", wait.Round(time.Second)), nil)
				return
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			switch {
			case wrapped.statusCode == http.StatusUnauthorized:
				rateLimiter.RecordAttempt(ip)
			case wrapped.statusCode < 300:
				rateLimiter.Reset(ip)
			}
		})
	}
}
