package sessionguard

import (
	"context"
	"time"
)

// Authenticate verifies an access token and returns the identity triple it
// carries. This is the hot path: no Redis round-trip, signature and expiry
// checks only. Authorization decisions belong to the caller.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	_ = ctx

	start := time.Now()
	claims, err := e.tokens.ParseAccess(accessToken)
	if e.metrics != nil {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		return nil, ErrTokenInvalid
	}

	return &AuthResult{
		UserID:      claims.Subject,
		AccountType: claims.AccountType,
		Email:       claims.Email,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
