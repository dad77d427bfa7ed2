package server

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(5, time.Minute)
	defer rl.stop()

	// First 5 attempts should be allowed
	for i := 0; i < 5; i++ {
		if !rl.allow("192.168.1.1") {
			t.Errorf("Attempt %d should be allowed", i+1)
		}
	}

	// 6th attempt should be denied
	if rl.allow("192.168.1.1") {
		t.Error("6th attempt should be denied")
	}

	// Different IP should be allowed
	if !rl.allow("192.168.1.2") {
		t.Error("Attempt from different IP should be allowed")
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("192.168.1.1") || !rl.allow("192.168.1.1") {
		t.Fatal("first two attempts should be allowed")
	}
	if rl.allow("192.168.1.1") {
		t.Error("Third attempt should be denied")
	}

	// Denied attempts do not extend the lockout.
	now = now.Add(61 * time.Second)
	if !rl.allow("192.168.1.1") {
		t.Error("Attempt after window should be allowed")
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("203.0.113.1")
	now = now.Add(30 * time.Second)
	rl.allow("203.0.113.2")

	now = now.Add(100 * time.Second)
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["203.0.113.1"]; ok {
		t.Error("stale visitor should be swept")
	}
	if _, ok := rl.visitors["203.0.113.2"]; !ok {
		t.Error("recent visitor should be kept")
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	rl.stop()
	rl.stop()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		expected   string
	}{
		{
			name:       "RemoteAddr only",
			remoteAddr: "192.168.1.1:12345",
			expected:   "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For single IP",
			remoteAddr: "127.0.0.1:12345",
			xff:        "203.0.113.1",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Forwarded-For multiple IPs uses the proxy-appended entry",
			remoteAddr: "127.0.0.1:12345",
			xff:        "203.0.113.1, 198.51.100.1, 192.0.2.1",
			expected:   "192.0.2.1",
		},
		{
			name:       "X-Forwarded-For trailing empty entry falls through",
			remoteAddr: "127.0.0.1:12345",
			xff:        "203.0.113.1, ",
			expected:   "127.0.0.1",
		},
		{
			name:       "X-Real-IP",
			remoteAddr: "127.0.0.1:12345",
			xri:        "203.0.113.5",
			expected:   "203.0.113.5",
		},
		{
			name:       "IPv6 RemoteAddr",
			remoteAddr: "[2001:db8::1]:443",
			expected:   "2001:db8::1",
		},
		{
			name:       "X-Forwarded-For takes precedence",
			remoteAddr: "127.0.0.1:12345",
			xff:        "203.0.113.1",
			xri:        "203.0.113.5",
			expected:   "203.0.113.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			got := getClientIP(req)
			if got != tt.expected {
				t.Errorf("got %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestGetClientIP_RepeatedForwardedForHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Add("X-Forwarded-For", "10.9.9.9")
	req.Header.Add("X-Forwarded-For", "198.51.100.7")

	if got := getClientIP(req); got != "198.51.100.7" {
		t.Errorf("got %q, expected %q", got, "198.51.100.7")
	}
}
