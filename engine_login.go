package sessionguard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/cookie"
	"github.com/MrEthical07/sessionguard/ledger"
)

// Login authenticates the email/password pair and, on success, issues a full
// session: access token, ledgered refresh token, and the cookie policies for
// both. rememberMe extends the refresh lifetime from the default to the
// remember-me TTL.
//
// Every secret-sensitive failure (unknown email, wrong password, malformed
// stored hash) returns [ErrInvalidCredentials] so callers cannot enumerate
// accounts. [ErrAccountInactive] and [ErrPhoneVerificationRequired] are
// distinct because they are not secrets.
func (e *Engine) Login(ctx context.Context, email, plaintext string, rememberMe bool) (*SessionArtifacts, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	ip := ClientIPFromContext(ctx)
	email = normalizeEmail(email)

	// The auth-attempts class counts every attempt, successful or not.
	if err := e.HitRate(ctx, LimitAuthAttempts, ip); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, AuditEvent{
				EventType: auditLoginBlocked,
				Email:     email,
				IP:        ip,
				Error:     err.Error(),
			})
		}
		return nil, err
	}

	if email == "" || plaintext == "" {
		return nil, e.loginFailure(ctx, "", email, ip, "missing credentials")
	}

	record, err := e.lookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, e.loginFailure(ctx, "", email, ip, "unknown identity")
		}
		return nil, err
	}

	ok, err := e.verifyPassword(ctx, record, plaintext)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.loginFailure(ctx, record.UserID, email, ip, "credential mismatch")
	}

	if record.Status != AccountActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditLoginFailure,
			UserID:    record.UserID,
			Email:     email,
			IP:        ip,
			Error:     ErrAccountInactive.Error(),
		})
		return nil, ErrAccountInactive
	}

	if e.config.Phone.Required && !record.PhoneVerified && !e.phoneBypassed(email) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditLoginFailure,
			UserID:    record.UserID,
			Email:     email,
			IP:        ip,
			Error:     ErrPhoneVerificationRequired.Error(),
		})
		return nil, ErrPhoneVerificationRequired
	}

	e.maybeUpgradeHash(ctx, record, plaintext)

	artifacts, err := e.issueSession(ctx, record, rememberMe)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditLoginSuccess,
		UserID:    record.UserID,
		Email:     email,
		IP:        ip,
		Success:   true,
		Metadata:  map[string]string{"remember_me": boolString(rememberMe)},
	})

	return artifacts, nil
}

// loginFailure is the single funnel for secret-sensitive login failures. It
// feeds the brute-force counter, emits audit/metrics, and returns either the
// generic credential error or the brute-force block when the short window
// tripped.
func (e *Engine) loginFailure(ctx context.Context, userID, email, ip, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditLoginFailure,
		UserID:    userID,
		Email:     email,
		IP:        ip,
		Error:     reason,
	})

	if err := e.recordCredentialFailure(ctx, ip, email); err != nil {
		return err
	}

	return ErrInvalidCredentials
}

func (e *Engine) verifyPassword(ctx context.Context, record CredentialRecord, plaintext string) (bool, error) {
	if e.config.Password.Delegated {
		ok, err := e.verifier.VerifyPassword(ctx, record, plaintext)
		if err != nil {
			e.metricInc(MetricStoreUnavailable)
			return false, errors.Join(ErrStoreUnavailable, err)
		}
		return ok, nil
	}

	ok, err := e.passwords.Verify(plaintext, record.PasswordHash)
	if err != nil {
		// A malformed stored hash is indistinguishable from a mismatch to
		// the caller; it only differs in the audit trail.
		return false, nil
	}
	return ok, nil
}

// maybeUpgradeHash silently rehashes under current costs after a successful
// verification. Best effort: a store failure leaves the old hash in place.
func (e *Engine) maybeUpgradeHash(ctx context.Context, record CredentialRecord, plaintext string) {
	if e.config.Password.Delegated || !e.config.Password.UpgradeOnLogin {
		return
	}

	needs, err := e.passwords.NeedsUpgrade(record.PasswordHash)
	if err != nil || !needs {
		return
	}

	newHash, err := e.passwords.Hash(plaintext)
	if err != nil {
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, record.UserID, newHash); err != nil {
		return
	}

	e.metricInc(MetricHashUpgraded)
}

func (e *Engine) phoneBypassed(email string) bool {
	_, ok := e.bypass[email]
	return ok
}

// issueSession mints the refresh token, records it in the ledger, then mints
// the access token. Ledger failure aborts the login: a refresh token that is
// not ledgered can never be rotated or revoked, so it must never reach a
// client.
func (e *Engine) issueSession(ctx context.Context, record CredentialRecord, rememberMe bool) (*SessionArtifacts, error) {
	refreshTTL := e.config.Token.RefreshTTL
	if rememberMe {
		refreshTTL = e.config.Token.RememberMeRefreshTTL
	}

	refreshToken, jti, refreshExpiresAt, err := e.tokens.IssueRefresh(record.UserID, refreshTTL)
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	if err := e.ledger.Insert(ctx, ledger.Record{
		JTI:       jti,
		UserID:    record.UserID,
		IssuedAt:  time.Now(),
		ExpiresAt: refreshExpiresAt,
	}); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	accessToken, accessExpiresAt, err := e.tokens.IssueAccess(record.UserID, record.AccountType, record.Email)
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	authPolicy := e.cookies.PolicyFor(cookie.CategoryAuth)
	if rememberMe {
		authPolicy = authPolicy.WithMaxAge(refreshTTL)
	}
	refreshPolicy := e.cookies.PolicyFor(cookie.CategorySession).WithMaxAge(refreshTTL)

	return &SessionArtifacts{
		UserID:           record.UserID,
		AccountType:      record.AccountType,
		Email:            record.Email,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
		AccessCookie:     authPolicy,
		RefreshCookie:    refreshPolicy,
	}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
