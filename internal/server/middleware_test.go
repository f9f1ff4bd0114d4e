package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func reqFromIP(ip string) *http.Request {
	r := httptest.NewRequest("GET", "/api/decks", nil)
	r.RemoteAddr = ip + ":12345"
	return r
}

func limitedHandler(t *testing.T, rps float64, burst, maxIPs int) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mw, _ := RateLimitMiddleware(ctx, nil, rps, burst, maxIPs)
	return mw(okHandler())
}

func statusFor(h http.Handler, ip string) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, reqFromIP(ip))
	return w.Code
}

func TestClientLimitersEviction(t *testing.T) {
	now := time.Now()

	t.Run("full table evicts instead of rejecting", func(t *testing.T) {
		c := newClientLimiters(zap.NewNop(), 100, 100, 3)
		for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4"} {
			assert.True(t, c.allow(ip, now), ip)
		}
		assert.Equal(t, 3, c.size())
		assert.NotContains(t, c.byIP, "1.1.1.1")
	})

	t.Run("recent client survives", func(t *testing.T) {
		c := newClientLimiters(zap.NewNop(), 100, 100, 3)
		for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.1", "10.0.0.4"} {
			c.allow(ip, now)
		}
		assert.Contains(t, c.byIP, "10.0.0.1")
		assert.NotContains(t, c.byIP, "10.0.0.2")
	})

	t.Run("returning client gets a fresh bucket", func(t *testing.T) {
		c := newClientLimiters(zap.NewNop(), 100, 1, 2)
		require.True(t, c.allow("1.1.1.1", now))
		require.False(t, c.allow("1.1.1.1", now))
		c.allow("2.2.2.2", now)
		c.allow("3.3.3.3", now)
		assert.True(t, c.allow("1.1.1.1", now))
	})
}

func TestClientLimitersSweep(t *testing.T) {
	c := newClientLimiters(zap.NewNop(), 100, 100, 10)
	start := time.Now()
	c.allow("1.1.1.1", start)
	c.allow("2.2.2.2", start.Add(8*time.Minute))

	assert.Equal(t, 0, c.sweep(start.Add(9*time.Minute)))
	assert.Equal(t, 1, c.sweep(start.Add(11*time.Minute)))
	assert.Equal(t, 1, c.size())
	assert.Contains(t, c.byIP, "2.2.2.2")
}

func TestRateLimitMiddleware(t *testing.T) {
	h := limitedHandler(t, 100, 100, 5)
	for i := 0; i < 20; i++ {
		ip := fmt.Sprintf("192.168.0.%d", i)
		assert.Equal(t, http.StatusOK, statusFor(h, ip), ip)
	}
}

func TestRateLimitConcurrentAccess(t *testing.T) {
	h := limitedHandler(t, 1000, 1000, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.0.%d.%d", id/256, id%256)
			for j := 0; j < 10; j++ {
				assert.Equal(t, http.StatusOK, statusFor(h, ip))
			}
		}(i)
	}
	wg.Wait()
}

func TestRateLimitResponse(t *testing.T) {
	h := limitedHandler(t, 0.001, 1, 10)

	h.ServeHTTP(httptest.NewRecorder(), reqFromIP("5.5.5.5"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, reqFromIP("5.5.5.5"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "8.8.8.8:1000", "", "", "8.8.8.8"},
		{"untrusted forwarded header", "8.8.8.8:1000", "1.2.3.4", "", "8.8.8.8"},
		{"loopback proxy", "127.0.0.1:1000", "1.2.3.4, 10.0.0.1", "", "1.2.3.4"},
		{"private proxy real ip", "10.0.0.2:1000", "", "4.3.2.1", "4.3.2.1"},
		{"no port", "9.9.9.9", "", "", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	preflight := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/api/decks", nil)
		r.Header.Set("Origin", origin)
		r.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	h := CORSMiddleware([]string{"http://localhost:3000"})(okHandler())
	w := preflight(h, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(h, "http://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	h = CORSMiddleware(nil)(okHandler())
	w = preflight(h, "http://localhost:3000")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeadersMiddleware()(okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "frame-src *")
	assert.Contains(t, csp, "frame-ancestors 'self'")
}

func TestRateLimitSweeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := RateLimitMiddleware(ctx, nil, 100, 100, 100)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper still running after cancel")
	}
}
