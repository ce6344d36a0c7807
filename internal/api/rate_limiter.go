package api

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/ratelimit"
)

// clientKey identifies the caller: the signed-in wallet, else the remote IP
func clientKey(r *http.Request) (string, ratelimit.Priority) {
	if actor := actorFrom(r); actor != "" {
		return "wallet:" + actor, ratelimit.PriorityHigh
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host, ratelimit.PriorityLow
}

// RateLimitMiddleware creates a middleware that enforces rate limiting. It runs
// after AuthMiddleware so signed-in wallets get their own budget.
func RateLimitMiddleware(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, priority := clientKey(r)

			decision, err := limiter.Allow(r.Context(), key, priority)
			if err != nil {
				logging.FromContext(r.Context()).WithError(err).Warn("Rate limiter unavailable, allowing request")
			}
			if decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}

			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "Rate limit exceeded. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
