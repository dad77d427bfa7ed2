// ratelimit.go - Sliding-window limiter keyed by client IP.
//
// Guards the login form against password guessing; designed to
// complement proxy-side limits.
package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateLimiter allows up to rate events per window for each key.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// visitor tracks event timestamps for a single IP address.
type visitor struct {
	events []time.Time
}

// newRateLimiter creates a limiter that allows rate events per window.
// Example: newRateLimiter(10, time.Minute) allows 10 logins a minute per IP.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// allow records an event for key and reports whether it is within the
// limit. Rejected events are not recorded.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{events: make([]time.Time, 0, rl.rate)}
		rl.visitors[key] = v
	}

	now := rl.now()
	v.events = pruneBefore(v.events, now.Add(-rl.window))
	if len(v.events) >= rl.rate {
		return false
	}
	v.events = append(v.events, now)
	return true
}

func pruneBefore(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return events[i:]
}

// cleanup periodically drops visitors with no recent events.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window * 2) // keep visitors for 2x window
	for ip, v := range rl.visitors {
		if len(v.events) == 0 || v.events[len(v.events)-1].Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// getClientIP extracts the client's IP address from the request.
// Behind a reverse proxy the last X-Forwarded-For entry is the one the
// proxy appended; earlier entries are client-supplied and ignored. Then
// X-Real-IP, then RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		last := xff[len(xff)-1]
		if i := strings.LastIndexByte(last, ','); i >= 0 {
			last = last[i+1:]
		}
		if ip := strings.TrimSpace(last); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
