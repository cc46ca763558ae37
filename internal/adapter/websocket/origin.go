package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open an insights socket.
type originPolicy struct {
	// app is the dashboard's scheme://host[:port], empty when APP_URL has no host.
	app string
	// loopback admits local dev servers on any port.
	loopback bool
}

// NewCheckOrigin builds the upgrader's CheckOrigin. Requests without an Origin
// header come from non-browser clients and are always admitted. Browsers must
// come from the dashboard's own origin, or from a loopback host in development.
func NewCheckOrigin(appURL string, isDevelopment bool) func(*http.Request) bool {
	policy := originPolicy{app: canonicalOrigin(appURL), loopback: isDevelopment}
	return policy.check
}

func (p originPolicy) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.allows(origin) {
		return true
	}
	slog.Warn("Insights socket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
	return false
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return true
	}
	if p.app != "" && canonicalOrigin(origin) == p.app {
		return true
	}
	return p.loopback && isLoopbackOrigin(origin)
}

// canonicalOrigin reduces a URL to its lower-cased scheme://host[:port].
func canonicalOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
