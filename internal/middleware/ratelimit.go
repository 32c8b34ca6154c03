package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"drawtica/internal/i18n"
	"drawtica/internal/ratelimit"
)

// RateLimitOptions configures one fixed-window limiter keyed by client IP.
type RateLimitOptions struct {
	Store  ratelimit.Store
	Scope  string
	Limit  int
	Window time.Duration
	Logger zerolog.Logger
	// TrustedProxyHops counts the proxies whose X-Forwarded-For entries are
	// believed. With zero the header is ignored.
	TrustedProxyHops int
	// OnLimited is called for every rejected request, e.g. to count it.
	OnLimited func(scope string)
}

// RateLimit rejects requests over the limit with a localized 429 and a
// Retry-After header. A failing store lets the request through.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.Scope + ":" + clientIPForRateLimit(r, opts.TrustedProxyHops)
			decision, err := opts.Store.Hit(r.Context(), key, opts.Limit, opts.Window)
			if err != nil {
				opts.Logger.Warn().Err(err).Str("scope", opts.Scope).Msg("ratelimit: store unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				if opts.OnLimited != nil {
					opts.OnLimited(opts.Scope)
				}
				secs := int(math.Ceil(decision.RetryAfter(time.Now()).Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, r, http.StatusTooManyRequests, "rate_limited", i18n.TooManyAttempts)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIPForRateLimit returns the address the outermost trusted proxy saw:
// the hops-th X-Forwarded-For entry from the right. Entries further left are
// client supplied. Without trusted hops, or when the header is too short or
// malformed, the peer address is used.
func clientIPForRateLimit(r *http.Request, hops int) string {
	if hops > 0 {
		var chain []string
		for _, header := range r.Header.Values("X-Forwarded-For") {
			for _, part := range strings.Split(header, ",") {
				chain = append(chain, strings.TrimSpace(part))
			}
		}
		if len(chain) >= hops {
			if ip := chain[len(chain)-hops]; net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
