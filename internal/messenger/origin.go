package messenger

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may open a host channel.
type OriginPolicy struct {
	any     bool
	allowed map[string]bool
}

// NewOriginPolicy allows the listed origins. "*" allows every origin; an
// empty list allows only the serving host itself.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			p.any = true
			continue
		}
		if n := normalizeOrigin(o); n != "" {
			p.allowed[n] = true
		}
	}
	return p
}

// Allowed reports whether origin may connect to a server reached as host.
// Requests without an Origin header are not from a browser and are allowed.
func (p OriginPolicy) Allowed(origin, host string) bool {
	if origin == "" || p.any {
		return true
	}
	n := normalizeOrigin(origin)
	if n == "" {
		return false
	}
	if p.allowed[n] {
		return true
	}
	u, _ := url.Parse(n)
	return strings.EqualFold(u.Host, host)
}

// CheckOrigin adapts the policy to websocket.Upgrader.CheckOrigin.
func (p OriginPolicy) CheckOrigin(r *http.Request) bool {
	return p.Allowed(r.Header.Get("Origin"), r.Host)
}

func normalizeOrigin(o string) string {
	u, err := url.Parse(o)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
