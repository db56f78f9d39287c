package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))
	assert.Equal(t, 0, rl.RetryAfter("unknown"))

	now = now.Add(30 * time.Second)
	assert.False(t, rl.Allow("a"))
	assert.Equal(t, 31, rl.RetryAfter("a"))

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterZero(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }
	for i := 0; i < 1100; i++ {
		rl.Allow(string(rune('A' + i)))
	}
	now = now.Add(3 * time.Minute)
	rl.Allow("fresh")
	assert.Len(t, rl.buckets, 1)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", Proxies(nil).clientIP(r))

	// A spoofed header from an untrusted peer is ignored.
	r.Header.Set("X-Forwarded-For", " 198.51.100.1 , 10.0.0.1")
	assert.Equal(t, "192.0.2.10", Proxies(nil).clientIP(r))

	proxies, err := ParseProxies("192.0.2.0/24, 10.0.0.1")
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	// Trusted hops are skipped from the right.
	assert.Equal(t, "198.51.100.1", proxies.clientIP(r))

	// A client cannot prepend its way past the nearest untrusted hop.
	r.Header.Set("X-Forwarded-For", "1.1.1.1, 203.0.113.9")
	assert.Equal(t, "203.0.113.9", proxies.clientIP(r))

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "192.0.2.10", proxies.clientIP(r))

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "not-an-addr"
	assert.Equal(t, "not-an-addr", proxies.clientIP(r))
}

func TestParseProxies(t *testing.T) {
	p, err := ParseProxies("")
	require.NoError(t, err)
	assert.Empty(t, p)

	p, err = ParseProxies("10.1.2.3/8,::1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8", p[0].String())
	assert.Equal(t, "::1/128", p[1].String())

	_, err = ParseProxies("10.0.0.1, proxy.internal")
	assert.Error(t, err)
}
