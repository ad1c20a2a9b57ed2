package app

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"azmoon/internal/app/apiresp"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// IPRateLimiter allows max events per key within a sliding window.
type IPRateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	store  map[string][]time.Time
}

func NewIPRateLimiter(max int, window time.Duration) *IPRateLimiter {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &IPRateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
		store:  make(map[string][]time.Time),
	}
}

// WithClock swaps the time source, for tests.
func (l *IPRateLimiter) WithClock(now func() time.Time) *IPRateLimiter {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

func (l *IPRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.pruneLocked(key, now)
	if len(recent) >= l.max {
		return false
	}
	l.store[key] = append(recent, now)
	return true
}

// Blocked reports whether key is over its limit without recording an event.
func (l *IPRateLimiter) Blocked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(key, l.now())) >= l.max
}

func (l *IPRateLimiter) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	events := l.store[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.store, key)
		return nil
	}
	l.store[key] = kept
	return kept
}

func RateLimitMiddleware(l *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + "|" + r.Method + "|" + r.URL.Path
			if !l.Allow(key) {
				apiresp.WriteError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TeacherGuard protects exam management with HTTP Basic credentials checked
// against a bcrypt hash. Failed attempts are counted per client IP and an IP
// over the limit is refused before its credentials are checked.
func TeacherGuard(user, passwordHash string, failures *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if failures != nil && failures.Blocked(ip) {
				apiresp.WriteError(w, r, http.StatusTooManyRequests, "too many failed logins, try again later")
				return
			}

			u, p, ok := r.BasicAuth()
			if !ok || !checkTeacher(user, passwordHash, u, p) {
				if failures != nil {
					failures.Allow(ip)
				}
				log.Warn().Str("remote_ip", ip).Str("path", r.URL.Path).Msg("teacher login failed")
				w.Header().Set("WWW-Authenticate", `Basic realm="azmoon teacher", charset="UTF-8"`)
				apiresp.WriteError(w, r, http.StatusUnauthorized, "teacher credentials required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkTeacher(wantUser, hash, user, password string) bool {
	if wantUser == "" || hash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(wantUser), []byte(user)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	return userOK && passOK
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
