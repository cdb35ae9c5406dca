package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy decides which browser origins may open a WebSocket. Origins
// are compared as lower-cased scheme://host[:port].
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// newOriginPolicy builds a policy from configured origins and returns the
// normalized list it accepted. "*" allows every well-formed origin; invalid
// entries are logged and skipped.
func newOriginPolicy(origins []string) (originPolicy, []string) {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	var kept []string
	for _, raw := range origins {
		entry := strings.TrimSpace(raw)
		switch {
		case entry == "":
			continue
		case entry == "*":
			p.allowAll = true
			kept = append(kept, entry)
			continue
		}
		origin, ok := canonicalOrigin(entry)
		if !ok {
			zap.L().Warn("ignoring invalid origin in configuration", zap.String("origin", raw))
			continue
		}
		if _, dup := p.allowed[origin]; dup {
			continue
		}
		p.allowed[origin] = struct{}{}
		kept = append(kept, origin)
	}
	return p, kept
}

func canonicalOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// allows reports whether header, a request's Origin value, passes. Requests
// without an Origin are refused even under "*".
func (p originPolicy) allows(header string) bool {
	origin, ok := canonicalOrigin(header)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok = p.allowed[origin]
	return ok
}

// checkOrigin is the upgrader's CheckOrigin hook.
func checkOrigin(r *http.Request) bool {
	configMu.RLock()
	p := activePolicy
	configMu.RUnlock()

	header := r.Header.Get("Origin")
	if p.allows(header) {
		return true
	}
	zap.L().Warn("blocked WebSocket connection from disallowed origin",
		zap.String("origin", header),
		zap.String("remote_addr", r.RemoteAddr))
	return false
}
