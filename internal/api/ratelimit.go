// Rate limiter for the generation endpoints. Every request runs the whole
// pipeline, so each client IP gets a fixed budget per window.
package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

// sweepAbove is the bucket count past which idle clients are dropped.
const sweepAbove = 1024

// RateLimiter counts generation requests per client in fixed windows.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// bucket is one client's usage in its current window.
type bucket struct {
	start time.Time
	used  int
}

// NewRateLimiter allows limit requests per client in each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records a request from client and reports whether it fits the
// client's budget.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.buckets) > sweepAbove {
		rl.sweep(now)
	}

	b := rl.buckets[client]
	if b == nil || now.Sub(b.start) >= rl.window {
		b = &bucket{start: now}
		rl.buckets[client] = b
	}
	if b.used >= rl.limit {
		return false
	}
	b.used++
	return true
}

// RetryAfter returns the whole seconds until client's window resets,
// rounded up. Unknown clients get 0.
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[client]
	if b == nil {
		return 0
	}
	left := b.start.Add(rl.window).Sub(rl.now())
	if left < 0 {
		return 0
	}
	return int(left/time.Second) + 1
}

// sweep drops buckets idle for two windows. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for client, b := range rl.buckets {
		if now.Sub(b.start) > 2*rl.window {
			delete(rl.buckets, client)
		}
	}
}

// Proxies lists the reverse proxies whose X-Forwarded-For header is believed.
type Proxies []netip.Prefix

// ParseProxies reads a comma-separated list of CIDR prefixes or bare
// addresses. Blank entries are skipped.
func ParseProxies(list string) (Proxies, error) {
	var out Proxies
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if p, err := netip.ParsePrefix(field); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(field)
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy %q: %w", field, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (p Proxies) trusts(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address. X-Forwarded-For only counts when the
// peer is a trusted proxy; then the rightmost hop that is not itself a
// trusted proxy is the client.
func (p Proxies) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !p.trusts(peer) {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !p.trusts(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

// RateLimitMiddleware rejects over-budget clients with 429 and a
// Retry-After header. Clients are keyed by clientIP.
func RateLimitMiddleware(rl *RateLimiter, proxies Proxies, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := proxies.clientIP(r)
		if rl.Allow(client) {
			next(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(client)))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}
}
