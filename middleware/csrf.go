package middleware

import (
	"net/http"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cookie"
)

// CSRFHeader is the request header carrying the echoed double-submit value.
const CSRFHeader = "X-CSRF-Token"

// CSRFField is the form-field fallback for clients that cannot set headers.
const CSRFField = "csrf_token"

// CSRF enforces the double-submit check on every state-changing request. Safe
// methods pass through and receive a csrf cookie when none is present yet, so
// a page load always leaves the client able to submit. When CSRF protection
// is disabled in the engine configuration the middleware is a no-op.
func CSRF(engine *sessionguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guard := engine.CSRFGuard()
			if guard == nil {
				next.ServeHTTP(w, r)
				return
			}

			_, _, csrfName := engine.CookieNames()
			policy := engine.Cookies().PolicyFor(cookie.CategoryCSRF)

			if safeMethod(r.Method) {
				if _, err := r.Cookie(csrfName); err != nil {
					if token, err := guard.Issue(); err == nil {
						engine.Cookies().Apply(w, csrfName, token, policy)
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			cookieValue := ""
			if c, err := r.Cookie(csrfName); err == nil {
				cookieValue = c.Value
			}

			submitted := r.Header.Get(CSRFHeader)
			if submitted == "" {
				submitted = r.PostFormValue(CSRFField)
			}

			if !guard.Verify(cookieValue, submitted) {
				engine.ReportCSRFRejected(r.Context(), clientIP(r))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
