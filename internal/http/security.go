package http

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Hardening configures the abuse controls wrapped around every API route.
// Zero limits fall back to 60 writes per minute. Nil lists disable the
// matching check.
type Hardening struct {
	// RateLimitRequests is the number of writes a client may send per window.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// SuspiciousAgents are lower-case User-Agent fragments that flag a request.
	SuspiciousAgents []string

	// TrustedProxies are CIDRs allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies []string
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"eval(", "javascript:", "<script", "union select",
	"base64", "0x", "etc/passwd", "cmd.exe",
}

var unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

// requestGuard resolves client addresses and flags probing traffic.
type requestGuard struct {
	agents  []string
	proxies []*net.IPNet
}

func newRequestGuard(h Hardening, logger *slog.Logger) *requestGuard {
	g := &requestGuard{}
	for _, agent := range h.SuspiciousAgents {
		if agent = strings.ToLower(strings.TrimSpace(agent)); agent != "" {
			g.agents = append(g.agents, agent)
		}
	}
	for _, cidr := range h.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, "error", err)
			continue
		}
		g.proxies = append(g.proxies, network)
	}
	return g
}

func (g *requestGuard) isTrustedProxy(ip net.IP) bool {
	for _, network := range g.proxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address, or the forwarded one when the peer is
// a trusted proxy.
func (g *requestGuard) clientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !g.isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

// suspicious reports requests that look like scanning or injection.
// They are only flagged, never blocked.
func (g *requestGuard) suspicious(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			return true
		}
	}

	userAgent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, agent := range g.agents {
		if strings.Contains(userAgent, agent) {
			return true
		}
	}

	for _, method := range unusualMethods {
		if r.Method == method {
			return true
		}
	}

	if len(r.URL.String()) > 2048 {
		return true
	}

	return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 && r.Header.Get("X-Real-IP") != ""
}
