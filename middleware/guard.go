package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cookie"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity attached by [Authenticate].
func AuthResultFromContext(ctx context.Context) (*sessionguard.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*sessionguard.AuthResult)
	return res, ok
}

// Authenticate verifies the access token on each request, reading the signed
// auth cookie first and falling back to a bearer header for non-browser
// callers, and attaches the resulting [sessionguard.AuthResult] to the
// request context.
func Authenticate(engine *sessionguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := accessTokenFromRequest(engine, r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessTokenFromRequest(engine *sessionguard.Engine, r *http.Request) (string, bool) {
	authName, _, _ := engine.CookieNames()
	policy := engine.Cookies().PolicyFor(cookie.CategoryAuth)

	if value, err := engine.Cookies().Read(r, authName, policy); err == nil && value != "" {
		return value, true
	}

	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
