package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/MrEthical07/sessionguard"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(*http.Request) string

// IPKey keys the limiter by client IP.
func IPKey(r *http.Request) string {
	return clientIP(r)
}

// UserKey keys the limiter by the authenticated user id, falling back to the
// client IP when the request carries no identity. Mount it after
// [Authenticate] for the user-keyed classes.
func UserKey(r *http.Request) string {
	if res, ok := AuthResultFromContext(r.Context()); ok && res.UserID != "" {
		return "u:" + res.UserID
	}
	return clientIP(r)
}

// RateLimit enforces one limiter class around a handler with skip-success
// semantics: the counter is checked before the handler runs and consumed only
// when the response is an error status. The auth-attempts and brute-force
// classes are counted inside the engine's own flows, not here.
func RateLimit(engine *sessionguard.Engine, class sessionguard.LimiterClass, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = IPKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)

			if err := engine.CheckRate(r.Context(), class, k); err != nil {
				writeRateLimited(w, err)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusBadRequest {
				// Successes are skipped by contract; only failed requests
				// consume budget. The hit may itself report a crossing but
				// the response is already written.
				_ = engine.HitRate(r.Context(), class, k)
			}
		})
	}
}

func writeRateLimited(w http.ResponseWriter, err error) {
	var limitErr *sessionguard.RateLimitError
	if errors.As(err, &limitErr) {
		seconds := int(limitErr.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	http.Error(w, "service unavailable", http.StatusServiceUnavailable)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
