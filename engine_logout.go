package sessionguard

import "context"

// Logout ends the session the refresh token belongs to. Cookie clearing is
// the transport's job; the engine revokes the ledger record as defense in
// depth. Logout is idempotent: an invalid, expired, or already-revoked token
// still logs the caller out.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	ip := ClientIPFromContext(ctx)

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		// Nothing to revoke; the caller's cookies get cleared regardless.
		e.metricInc(MetricLogout)
		return nil
	}

	// Best effort. A store outage here does not block logout; the record
	// still expires on its own.
	_ = e.ledger.Revoke(ctx, claims.ID)

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditLogout,
		UserID:    claims.Subject,
		JTI:       claims.ID,
		IP:        ip,
		Success:   true,
	})

	return nil
}

// RevokeUserSessions revokes every outstanding refresh token for userID and
// returns how many records were marked. Intended for account-security flows
// (password change, admin lockout) outside the normal logout path.
func (e *Engine) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.ledger.RevokeFamily(ctx, userID)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return 0, err
	}

	if revoked > 0 {
		e.metricInc(MetricFamilyRevoked)
	}

	return revoked, nil
}
