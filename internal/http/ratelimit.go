package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	msgTooManyRequests = "Trop de requêtes, veuillez réessayer plus tard"
	msgAccountLocked   = "Trop de tentatives de connexion, réessayez plus tard"
	maxTrackedKeys     = 10000
)

type limiterCache struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLimiterCache(perSecond float64, burst int) *limiterCache {
	return &limiterCache{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (c *limiterCache) get(key string) *rate.Limiter {
	c.mu.RLock()
	limiter, ok := c.limiters[key]
	c.mu.RUnlock()
	if ok {
		return limiter
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if limiter, ok = c.limiters[key]; ok {
		return limiter
	}
	if len(c.limiters) >= maxTrackedKeys {
		c.limiters = make(map[string]*rate.Limiter)
	}
	limiter = rate.NewLimiter(c.rate, c.burst)
	c.limiters[key] = limiter
	return limiter
}

// RateLimit limits requests per client IP. Used on the anonymous
// submission endpoints.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	cache := newLimiterCache(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cache.get(clientIP(r)).Allow() {
				WriteError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type loginAttempt struct {
	count       int
	firstFailed time.Time
	lockedUntil time.Time
}

// LoginGuard locks an email out after repeated failed logins within a
// window.
type LoginGuard struct {
	mu          sync.Mutex
	attempts    map[string]*loginAttempt
	maxFailures int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

func NewLoginGuard(maxFailures int, window, lockout time.Duration) *LoginGuard {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &LoginGuard{
		attempts:    make(map[string]*loginAttempt),
		maxFailures: maxFailures,
		window:      window,
		lockout:     lockout,
		now:         time.Now,
	}
}

func (g *LoginGuard) Locked(email string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	attempt, ok := g.attempts[email]
	return ok && g.now().Before(attempt.lockedUntil)
}

// Fail records a failed attempt and reports whether the email is now locked.
func (g *LoginGuard) Fail(email string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	attempt, ok := g.attempts[email]
	if !ok || now.Sub(attempt.firstFailed) > g.window {
		if len(g.attempts) >= maxTrackedKeys {
			g.prune(now)
		}
		attempt = &loginAttempt{firstFailed: now}
		g.attempts[email] = attempt
	}
	attempt.count++
	if attempt.count >= g.maxFailures {
		attempt.lockedUntil = now.Add(g.lockout)
		return true
	}
	return false
}

func (g *LoginGuard) Reset(email string) {
	g.mu.Lock()
	delete(g.attempts, email)
	g.mu.Unlock()
}

func (g *LoginGuard) prune(now time.Time) {
	for key, attempt := range g.attempts {
		if now.Sub(attempt.firstFailed) > g.window && now.After(attempt.lockedUntil) {
			delete(g.attempts, key)
		}
	}
}
