package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_AllowAt_MinuteWindow(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 3, RequestsPerHour: 1000, Enabled: true})
	base := time.Now()

	for i := 0; i < 3; i++ {
		d := l.AllowAt("user1", base)
		if !d.Allowed {
			t.Errorf("request %d should be allowed", i)
		}
	}

	d := l.AllowAt("user1", base)
	if d.Allowed {
		t.Error("4th request within the minute window should be denied")
	}
	if d.RetryAfterSeconds < 1 || d.RetryAfterSeconds > 61 {
		t.Errorf("RetryAfterSeconds = %d, want in [1, 61] for a 60s window (not a raw nanosecond count)", d.RetryAfterSeconds)
	}
}

func TestLimiter_AllowAt_WindowSlides(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2, RequestsPerHour: 1000, Enabled: true})
	base := time.Now()

	l.AllowAt("user1", base)
	l.AllowAt("user1", base)
	if l.AllowAt("user1", base).Allowed {
		t.Error("should be denied while window has not slid")
	}

	later := base.Add(61 * time.Second)
	if !l.AllowAt("user1", later).Allowed {
		t.Error("should be allowed once the minute window has fully slid")
	}
}

func TestLimiter_HourBudgetBlocksDespiteMinuteBudget(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 100, RequestsPerHour: 1, Enabled: true})
	base := time.Now()

	if !l.AllowAt("user1", base).Allowed {
		t.Fatal("first request should be allowed")
	}
	d := l.AllowAt("user1", base)
	if d.Allowed {
		t.Error("second request should be denied by the hour budget")
	}
	if d.Limit != 1 {
		t.Errorf("Limit = %d, want 1 (hour budget)", d.Limit)
	}
}

func TestLimiter_SeparateKeysIndependent(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, RequestsPerHour: 1000, Enabled: true})
	base := time.Now()

	if !l.AllowAt("user1", base).Allowed {
		t.Fatal("user1 first request should be allowed")
	}
	if l.AllowAt("user1", base).Allowed {
		t.Error("user1 should be exhausted")
	}
	if !l.AllowAt("user2", base).Allowed {
		t.Error("user2 should be unaffected by user1's budget")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, RequestsPerHour: 1, Enabled: false})
	base := time.Now()
	for i := 0; i < 10; i++ {
		if !l.AllowAt("user1", base).Allowed {
			t.Error("disabled limiter should always allow")
		}
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, RequestsPerHour: 1000, Enabled: true})
	base := time.Now()

	l.AllowAt("user1", base)
	if l.AllowAt("user1", base).Allowed {
		t.Fatal("should be exhausted before reset")
	}

	l.Reset("user1")
	if !l.AllowAt("user1", base).Allowed {
		t.Error("should be allowed again after reset")
	}
}

func TestLimiter_IsExcludedPath(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	if !l.IsExcludedPath("/health") {
		t.Error("/health should be excluded by default")
	}
	if l.IsExcludedPath("/api/agent/query") {
		t.Error("query path should not be excluded")
	}
}

func TestKeyFromRequest(t *testing.T) {
	if got := KeyFromRequest("u1", "1.2.3.4", "5.6.7.8"); got != "principal:u1" {
		t.Errorf("principal should take precedence, got %q", got)
	}
	if got := KeyFromRequest("", "1.2.3.4", "5.6.7.8"); got != "ip:1.2.3.4" {
		t.Errorf("forwarded-for should be used next, got %q", got)
	}
	if got := KeyFromRequest("", "", "5.6.7.8"); got != "ip:5.6.7.8" {
		t.Errorf("remote addr should be the fallback, got %q", got)
	}
}

func TestDecision_Headers(t *testing.T) {
	d := Decision{Allowed: false, Limit: 60, Remaining: 0, RetryAfterSeconds: 12}
	h := d.Headers()
	if h.Get("Retry-After") != "12" {
		t.Errorf("Retry-After = %q, want 12", h.Get("Retry-After"))
	}
	if h.Get("X-RateLimit-Limit") != "60" {
		t.Errorf("X-RateLimit-Limit = %q, want 60", h.Get("X-RateLimit-Limit"))
	}
}
