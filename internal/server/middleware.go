package server

import (
	"container/list"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CORSMiddleware allows cross-origin reads of the deck pages and the JSON
// API. If origins is empty, no CORS headers are added.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         86400,
	})
}

// SecurityHeadersMiddleware adds security headers to all responses.
// Slides embed third-party pages, so frame-src is open while the deck itself
// may only be framed by its own origin.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self' 'unsafe-inline'; "+
					"style-src 'self' 'unsafe-inline'; "+
					"img-src 'self' data: https:; "+
					"font-src 'self' data:; "+
					"frame-src *; "+
					"connect-src 'self'; "+
					"frame-ancestors 'self'")

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs each request through l once the response is written.
func RequestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Idle buckets are swept every sweepInterval once unused for idleTimeout.
const (
	sweepInterval       = 5 * time.Minute
	idleTimeout         = 10 * time.Minute
	evictionLogInterval = 30 * time.Second
)

type bucket struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP, capped at max entries.
// The list is ordered by recency; the front is the most recent client.
type clientLimiters struct {
	rps   rate.Limit
	burst int
	max   int
	log   *zap.Logger

	mu       sync.Mutex
	byIP     map[string]*list.Element
	recency  *list.List
	evicted  int
	loggedAt time.Time
}

func newClientLimiters(l *zap.Logger, rps float64, burst, max int) *clientLimiters {
	return &clientLimiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		max:     max,
		log:     l,
		byIP:    make(map[string]*list.Element),
		recency: list.New(),
	}
}

// allow reports whether ip may make another request now.
func (c *clientLimiters) allow(ip string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byIP[ip]; ok {
		c.recency.MoveToFront(e)
		b := e.Value.(*bucket)
		b.lastSeen = now
		return b.limiter.Allow()
	}

	if c.recency.Len() >= c.max {
		c.evictOldest(now)
	}
	b := &bucket{ip: ip, limiter: rate.NewLimiter(c.rps, c.burst), lastSeen: now}
	c.byIP[ip] = c.recency.PushFront(b)
	return b.limiter.Allow()
}

func (c *clientLimiters) evictOldest(now time.Time) {
	back := c.recency.Back()
	if back == nil {
		return
	}
	c.recency.Remove(back)
	delete(c.byIP, back.Value.(*bucket).ip)
	c.evicted++
	if now.Sub(c.loggedAt) >= evictionLogInterval {
		c.log.Info("rate limiter evicted least recent clients",
			zap.Int("evicted", c.evicted), zap.Int("capacity", c.max))
		c.loggedAt = now
		c.evicted = 0
	}
}

// sweep drops buckets idle since before now-idleTimeout. Recency order is
// by access, so the whole list is scanned.
func (c *clientLimiters) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for e := c.recency.Front(); e != nil; {
		next := e.Next()
		if b := e.Value.(*bucket); now.Sub(b.lastSeen) > idleTimeout {
			c.recency.Remove(e)
			delete(c.byIP, b.ip)
			dropped++
		}
		e = next
	}
	return dropped
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

// RateLimitMiddleware limits requests with a token bucket per client IP.
// rps is the refill rate, burst the bucket size, and maxIPs the number of
// clients tracked before the least recently seen one is evicted.
//
// Idle buckets are swept until ctx is cancelled; the returned channel is
// closed when the sweeper exits.
func RateLimitMiddleware(ctx context.Context, l *zap.Logger, rps float64, burst int, maxIPs int) (func(http.Handler) http.Handler, <-chan struct{}) {
	if maxIPs <= 0 {
		maxIPs = 10000
	}
	if l == nil {
		l = zap.NewNop()
	}
	limiters := newClientLimiters(l, rps, burst, maxIPs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if n := limiters.sweep(now); n > 0 {
					l.Debug("swept idle rate limit buckets", zap.Int("dropped", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(getClientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return mw, done
}

// getClientIP returns the address the request came from. Forwarding headers
// are honored only when the peer itself is loopback or private.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return host
	}
	if !peer.IsLoopback() && !peer.IsPrivate() {
		return peer.String()
	}
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer.String()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
