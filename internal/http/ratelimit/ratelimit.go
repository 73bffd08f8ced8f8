// Package ratelimit throttles the credential endpoints per client IP.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxClients bounds the tracked-IP map; past it the least recently seen
	// client is evicted.
	maxClients = 10000
	// idleEvict is how long an IP may stay quiet before its bucket is
	// dropped by the sweeper.
	idleEvict  = 10 * time.Minute
	sweepEvery = 5 * time.Minute
)

// Limiter keeps one token bucket per client IP. Client identity honors
// X-Forwarded-For only when the request arrived through a configured trusted
// proxy; with no proxies configured RemoteAddr is used as-is, so a spoofed
// header cannot dodge the limit.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	trusted []*net.IPNet
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// PerMinute builds a limiter allowing n requests per minute per IP with the
// given burst.
func PerMinute(n, burst int, trustedProxies []string) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Every(time.Minute / time.Duration(n)),
		burst:   burst,
		trusted: parseTrusted(trustedProxies),
	}
	go l.sweep()
	return l
}

func parseTrusted(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, raw := range cidrs {
		if _, ipnet, err := net.ParseCIDR(raw); err == nil {
			nets = append(nets, ipnet)
			continue
		}
		// Bare addresses are accepted as single-host ranges.
		if ip := net.ParseIP(raw); ip != nil {
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return nets
}

// Middleware rejects over-limit requests with 429 before they reach the
// handler.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.bucketFor(l.clientIP(r)).Allow() {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) bucketFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxClients {
			l.evictOldestLocked()
		}
		c = &client{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.bucket
}

func (l *Limiter) evictOldestLocked() {
	var oldest string
	var when time.Time
	for ip, c := range l.clients {
		if oldest == "" || c.lastSeen.Before(when) {
			oldest, when = ip, c.lastSeen
		}
	}
	delete(l.clients, oldest)
}

func (l *Limiter) sweep() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for range t.C {
		cutoff := time.Now().Add(-idleEvict)
		l.mu.Lock()
		for ip, c := range l.clients {
			if c.lastSeen.Before(cutoff) {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) clientIP(r *http.Request) string {
	remote := ipOf(r.RemoteAddr)
	if !l.trusts(remote) {
		return remote.String()
	}
	// The leftmost X-Forwarded-For entry is the originating client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	return remote.String()
}

func (l *Limiter) trusts(ip net.IP) bool {
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func ipOf(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
