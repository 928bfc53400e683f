package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cookie"
)

// RouteOptions controls how [Routes] mounts the session handler set.
type RouteOptions struct {
	// Deprecated marks the mount as the legacy variant: every response
	// carries a Deprecation header and, when SuccessorPath is set, a Link
	// header pointing at the current mount. The handler logic is identical.
	Deprecated    bool
	SuccessorPath string
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type sessionResponse struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
}

// Routes returns the session route set: POST /login, POST /refresh, and
// POST /logout, wrapped in the CSRF filter. Both the current and the
// deprecated mounts are produced by this one constructor; they differ only in
// response headers, never in behavior.
func Routes(engine *sessionguard.Engine, opts RouteOptions) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", handleLogin(engine))
	mux.HandleFunc("POST /refresh", handleRefresh(engine))
	mux.HandleFunc("POST /logout", handleLogout(engine))

	handler := CSRF(engine)(mux)

	if opts.Deprecated {
		handler = deprecationHeaders(handler, opts.SuccessorPath)
	}

	return handler
}

func deprecationHeaders(next http.Handler, successor string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Deprecation", "true")
		if successor != "" {
			w.Header().Set("Link", "<"+successor+">; rel=\"successor-version\"")
		}
		next.ServeHTTP(w, r)
	})
}

func handleLogin(engine *sessionguard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request")
			return
		}

		ctx := sessionguard.WithClientIP(r.Context(), clientIP(r))
		artifacts, err := engine.Login(ctx, req.Email, req.Password, req.RememberMe)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		setSessionCookies(engine, w, artifacts)
		rotateCSRFCookie(engine, w)
		writeJSON(w, http.StatusOK, sessionResponse{
			UserID:   artifacts.UserID,
			UserType: artifacts.AccountType,
		})
	}
}

func handleRefresh(engine *sessionguard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, refreshName, _ := engine.CookieNames()
		refreshPolicy := engine.Cookies().PolicyFor(cookie.CategorySession)

		refreshToken, err := engine.Cookies().Read(r, refreshName, refreshPolicy)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := sessionguard.WithClientIP(r.Context(), clientIP(r))
		artifacts, err := engine.Refresh(ctx, refreshToken)
		if err != nil {
			// An invalid or replayed token ends the session; the browser
			// must not keep presenting dead cookies.
			if errors.Is(err, sessionguard.ErrTokenInvalid) || errors.Is(err, sessionguard.ErrTokenReuse) {
				clearSessionCookies(engine, w)
			}
			writeAuthError(w, err)
			return
		}

		setSessionCookies(engine, w, artifacts)
		writeJSON(w, http.StatusOK, sessionResponse{
			UserID:   artifacts.UserID,
			UserType: artifacts.AccountType,
		})
	}
}

func handleLogout(engine *sessionguard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, refreshName, _ := engine.CookieNames()
		refreshPolicy := engine.Cookies().PolicyFor(cookie.CategorySession)

		ctx := sessionguard.WithClientIP(r.Context(), clientIP(r))
		if refreshToken, err := engine.Cookies().Read(r, refreshName, refreshPolicy); err == nil {
			_ = engine.Logout(ctx, refreshToken)
		}

		clearSessionCookies(engine, w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func setSessionCookies(engine *sessionguard.Engine, w http.ResponseWriter, artifacts *sessionguard.SessionArtifacts) {
	authName, refreshName, _ := engine.CookieNames()
	engine.Cookies().Apply(w, authName, artifacts.AccessToken, artifacts.AccessCookie)
	engine.Cookies().Apply(w, refreshName, artifacts.RefreshToken, artifacts.RefreshCookie)
}

func clearSessionCookies(engine *sessionguard.Engine, w http.ResponseWriter) {
	authName, refreshName, csrfName := engine.CookieNames()
	engine.Cookies().Clear(w, authName, engine.Cookies().PolicyFor(cookie.CategoryAuth))
	engine.Cookies().Clear(w, refreshName, engine.Cookies().PolicyFor(cookie.CategorySession))
	engine.Cookies().Clear(w, csrfName, engine.Cookies().PolicyFor(cookie.CategoryCSRF))
}

func rotateCSRFCookie(engine *sessionguard.Engine, w http.ResponseWriter) {
	guard := engine.CSRFGuard()
	if guard == nil {
		return
	}
	token, err := guard.Issue()
	if err != nil {
		return
	}
	_, _, csrfName := engine.CookieNames()
	engine.Cookies().Apply(w, csrfName, token, engine.Cookies().PolicyFor(cookie.CategoryCSRF))
}

func writeAuthError(w http.ResponseWriter, err error) {
	var limitErr *sessionguard.RateLimitError
	if errors.As(err, &limitErr) {
		seconds := int(limitErr.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	switch {
	case errors.Is(err, sessionguard.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, sessionguard.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "account_inactive")
	case errors.Is(err, sessionguard.ErrPhoneVerificationRequired):
		writeError(w, http.StatusForbidden, "phone_verification_required")
	case errors.Is(err, sessionguard.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, sessionguard.ErrTokenReuse),
		errors.Is(err, sessionguard.ErrTokenInvalid),
		errors.Is(err, sessionguard.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
