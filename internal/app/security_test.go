package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestIPRateLimiterAllow(t *testing.T) {
	l := NewIPRateLimiter(2, 0)
	if !l.Allow("k") || !l.Allow("k") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("k") {
		t.Fatalf("third request should be blocked")
	}
	if !l.Allow("other") {
		t.Fatalf("keys must be limited independently")
	}
}

func TestIPRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(2, time.Minute).WithClock(func() time.Time { return now })

	if !l.Allow("k") {
		t.Fatalf("first request should pass")
	}
	now = now.Add(40 * time.Second)
	if !l.Allow("k") {
		t.Fatalf("second request should pass")
	}
	if l.Allow("k") {
		t.Fatalf("third request inside window should be blocked")
	}

	now = now.Add(21 * time.Second)
	if !l.Allow("k") {
		t.Fatalf("oldest event left the window, request should pass")
	}
	if l.Allow("k") {
		t.Fatalf("window is full again")
	}
}

func TestIPRateLimiterBlockedDoesNotRecord(t *testing.T) {
	l := NewIPRateLimiter(1, time.Minute)
	if l.Blocked("k") {
		t.Fatalf("empty key must not be blocked")
	}
	if !l.Allow("k") {
		t.Fatalf("first event should pass")
	}
	if !l.Blocked("k") {
		t.Fatalf("key at limit must be blocked")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mw := RateLimitMiddleware(NewIPRateLimiter(1, time.Minute))
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/parse", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		w := httptest.NewRecorder()
		next.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, w.Code)
		}
	}
}

func teacherHandler(t *testing.T, failures *IPRateLimiter) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return TeacherGuard("teacher", string(hash), failures)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestTeacherGuard(t *testing.T) {
	h := teacherHandler(t, nil)
	tests := []struct {
		name string
		user string
		pass string
		set  bool
		code int
	}{
		{name: "valid", user: "teacher", pass: "s3cret", set: true, code: http.StatusOK},
		{name: "wrong password", user: "teacher", pass: "nope", set: true, code: http.StatusUnauthorized},
		{name: "wrong user", user: "admin", pass: "s3cret", set: true, code: http.StatusUnauthorized},
		{name: "missing", code: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/exams", nil)
			if tc.set {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, w.Code)
			}
		})
	}
}

func TestTeacherGuardLocksOutAfterFailures(t *testing.T) {
	h := teacherHandler(t, NewIPRateLimiter(2, time.Minute))

	send := func(pass string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/exams/1/report", nil)
		req.RemoteAddr = "10.2.2.2:999"
		req.SetBasicAuth("teacher", pass)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("bad"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if code := send("bad"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if code := send("s3cret"); code != http.StatusTooManyRequests {
		t.Fatalf("expected lockout 429, got %d", code)
	}
}

func TestTeacherGuardRejectsWhenUnconfigured(t *testing.T) {
	h := TeacherGuard("", "", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/exams/1/report", nil)
	req.SetBasicAuth("", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
