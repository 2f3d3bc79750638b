package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/shplep/homecontentslistpro-sub000/internal/logging"
	"github.com/shplep/homecontentslistpro-sub000/internal/ratelimit"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// ByIP counts requests per client address.
func ByIP(r *http.Request) string { return "ip:" + ClientIP(r) }

// ByOwner counts requests per owner, falling back to the client address
// when no owner header is present.
func ByOwner(r *http.Request) string {
	if owner := r.Header.Get(OwnerHeader); owner != "" {
		return "owner:" + owner
	}
	return ByIP(r)
}

// RateLimit rejects requests over the limiter's budget with 429. Limiter
// errors let the request through.
func RateLimit(l ratelimit.Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), key(r))
			if err != nil {
				logging.FromContext(r.Context()).Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", retryAfter(res.RetryIn))
				writeError(w, http.StatusTooManyRequests, "RATE001",
					"Too many requests.", "Wait a moment and try again.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfter rounds up to whole seconds, minimum one.
func retryAfter(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
