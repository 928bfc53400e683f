package sessionguard

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/sessionguard/cookie"
	"github.com/MrEthical07/sessionguard/ledger"
)

// Refresh rotates the presented refresh token: the old ledger record is
// atomically consumed and a successor is issued together with a fresh access
// token. The successor keeps the absolute expiry chosen at login, so a
// remember-me session never extends itself through rotation.
//
// Presenting a token whose record was already rotated or revoked is a reuse
// event: every outstanding refresh token for the user is revoked and
// [ErrTokenReuse] is returned. This runs on every refresh; there is no path
// that skips the ledger.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*SessionArtifacts, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	ip := ClientIPFromContext(ctx)

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditRefreshFailure,
			IP:        ip,
			Error:     "token verification failed",
		})
		return nil, ErrTokenInvalid
	}

	// Account status is re-checked before the rotation commits, so a
	// deactivated account cannot keep a session alive through refresh, and
	// a store outage fails the request before the old token is consumed.
	record, err := e.lookupByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			_ = e.ledger.Revoke(ctx, claims.ID)
			return nil, e.refreshFailure(ctx, claims.Subject, claims.ID, ip, "unknown subject")
		}
		return nil, err
	}
	if record.Status != AccountActive {
		_ = e.ledger.Revoke(ctx, claims.ID)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditRefreshFailure,
			UserID:    claims.Subject,
			JTI:       claims.ID,
			IP:        ip,
			Error:     ErrAccountInactive.Error(),
		})
		return nil, ErrAccountInactive
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil, e.refreshFailure(ctx, claims.Subject, claims.ID, ip, "token expired")
	}

	nextToken, nextJTI, nextExpiresAt, err := e.tokens.IssueRefresh(claims.Subject, remaining)
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	err = e.ledger.Rotate(ctx, claims.ID, ledger.Record{
		JTI:       nextJTI,
		UserID:    claims.Subject,
		IssuedAt:  time.Now(),
		ExpiresAt: nextExpiresAt,
	})
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrReuseDetected):
		return nil, e.reuseDetected(ctx, claims.Subject, claims.ID, ip)
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrExpired):
		return nil, e.refreshFailure(ctx, claims.Subject, claims.ID, ip, "no active ledger record")
	default:
		// Rotation is the one write that must fail closed: no retry, no
		// token handed out on an indeterminate outcome.
		e.metricInc(MetricStoreUnavailable)
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	accessToken, accessExpiresAt, err := e.tokens.IssueAccess(record.UserID, record.AccountType, record.Email)
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditRefreshSuccess,
		UserID:    record.UserID,
		JTI:       nextJTI,
		IP:        ip,
		Success:   true,
		Metadata:  map[string]string{"rotated_from": claims.ID},
	})

	return &SessionArtifacts{
		UserID:           record.UserID,
		AccountType:      record.AccountType,
		Email:            record.Email,
		AccessToken:      accessToken,
		RefreshToken:     nextToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: nextExpiresAt,
		AccessCookie:     e.cookies.PolicyFor(cookie.CategoryAuth),
		RefreshCookie:    e.cookies.PolicyFor(cookie.CategorySession).WithMaxAge(remaining),
	}, nil
}

func (e *Engine) refreshFailure(ctx context.Context, userID, jti, ip, reason string) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditRefreshFailure,
		UserID:    userID,
		JTI:       jti,
		IP:        ip,
		Error:     reason,
	})
	return ErrTokenInvalid
}

// reuseDetected is the response to a replayed refresh token: revoke the whole
// family, surface a forced logout, and report loudly. It is never downgraded
// to a plain token error.
func (e *Engine) reuseDetected(ctx context.Context, userID, jti, ip string) error {
	revoked, err := e.ledger.RevokeFamily(ctx, userID)

	e.metricInc(MetricRefreshReuseDetected)
	e.metricInc(MetricSecurityAlert)
	if revoked > 0 {
		e.metricInc(MetricFamilyRevoked)
	}

	event := AuditEvent{
		EventType: auditRefreshReuse,
		UserID:    userID,
		JTI:       jti,
		IP:        ip,
		Error:     ErrTokenReuse.Error(),
		Metadata:  map[string]string{"family_revoked": strconv.Itoa(revoked)},
	}
	if err != nil {
		event.Metadata["revoke_error"] = err.Error()
	}
	e.emitAudit(ctx, event)

	return ErrTokenReuse
}
