package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures cross-origin access, typically for booking pages
// embedded on a shop's own site. An origin entry may be "*" or carry a
// leading wildcard label ("https://*.example.com") to admit subdomains.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type originRule struct {
	any    bool
	exact  string
	scheme string
	suffix string
}

func (r originRule) match(origin string) bool {
	switch {
	case r.any:
		return true
	case r.exact != "":
		return strings.EqualFold(r.exact, origin)
	}
	scheme, host, ok := strings.Cut(strings.ToLower(origin), "://")
	return ok && scheme == r.scheme && strings.HasSuffix(host, r.suffix) && len(host) > len(r.suffix)
}

func parseOriginRules(origins []string) []originRule {
	var rules []originRule
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			rules = append(rules, originRule{any: true})
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(strings.ToLower(o), "://")
			rules = append(rules, originRule{scheme: scheme, suffix: strings.TrimPrefix(host, "*")})
		default:
			rules = append(rules, originRule{exact: o})
		}
	}
	return rules
}

// WithCORS emits CORS headers for allowed origins and answers preflights.
// With no allowed origins it is a no-op.
func WithCORS(cfg CORSPolicy) Middleware {
	rules := parseOriginRules(cfg.AllowedOrigins)
	if len(rules) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	methods := joinNonEmpty(cfg.AllowedMethods)
	allowHeaders := joinNonEmpty(cfg.AllowedHeaders)
	exposeHeaders := joinNonEmpty(cfg.ExposedHeaders)
	maxAge := int(cfg.MaxAge.Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")
			allowed, wildcard := false, false
			for _, rule := range rules {
				if rule.match(origin) {
					allowed, wildcard = true, rule.any
					break
				}
			}
			if origin == "" || !allowed {
				next.ServeHTTP(w, r)
				return
			}

			if wildcard && !cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if allowHeaders != "" {
				h.Set("Access-Control-Allow-Headers", allowHeaders)
			}
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func joinNonEmpty(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}
