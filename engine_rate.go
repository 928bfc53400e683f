package sessionguard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionguard/internal/rate"
)

func limiterClass(c LimiterClass) rate.Class {
	switch c {
	case LimitAuthAttempts:
		return rate.ClassAuthAttempts
	case LimitAccountSecurity:
		return rate.ClassAccountSecurity
	case LimitGeneralAPI:
		return rate.ClassGeneralAPI
	case LimitAdminAPI:
		return rate.ClassAdminAPI
	default:
		return rate.ClassBruteForce
	}
}

// CheckRate reads the counter for (class, key) without consuming budget.
// A blocked key yields a *[RateLimitError]; limiter store failures map to
// [ErrStoreUnavailable] so abusive traffic is never waved through on outage.
func (e *Engine) CheckRate(ctx context.Context, class LimiterClass, key string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.mapLimitError(class, e.limiter.Check(ctx, limiterClass(class), key))
}

// HitRate consumes one unit of budget for (class, key). Callers decide which
// outcomes count: the auth-attempts class is hit on every attempt, the
// skip-success classes only on failures.
func (e *Engine) HitRate(ctx context.Context, class LimiterClass, key string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.mapLimitError(class, e.limiter.Hit(ctx, limiterClass(class), key))
}

// ResetRate clears the counter for (class, key).
func (e *Engine) ResetRate(ctx context.Context, class LimiterClass, key string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.limiter.Reset(ctx, limiterClass(class), key); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) mapLimitError(class LimiterClass, err error) error {
	if err == nil {
		return nil
	}

	var limitErr *rate.LimitError
	if errors.As(err, &limitErr) {
		e.metricInc(MetricRateLimitHit)
		mapped := &RateLimitError{
			Class:      class,
			Limit:      limitErr.Limit,
			Window:     limitErr.Window,
			RetryAfter: limitErr.RetryAfter,
		}
		if class == LimitBruteForce {
			mapped.SecurityAlert = true
		}
		return mapped
	}

	e.metricInc(MetricStoreUnavailable)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// recordCredentialFailure feeds the brute-force class after a failed
// credential check. When the short window trips, the event is escalated as a
// security alert on top of the ordinary rejection.
func (e *Engine) recordCredentialFailure(ctx context.Context, ip, email string) error {
	if ip == "" {
		return nil
	}

	err := e.HitRate(ctx, LimitBruteForce, ip)

	var limitErr *RateLimitError
	if errors.As(err, &limitErr) {
		e.metricInc(MetricSecurityAlert)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditBruteForce,
			Email:     email,
			IP:        ip,
			Error:     limitErr.Error(),
		})
		return limitErr
	}

	// Counter trouble must not mask the credential failure the caller is
	// already returning.
	return nil
}

// ReportCSRFRejected records a CSRF verification failure observed by the
// transport layer.
func (e *Engine) ReportCSRFRejected(ctx context.Context, ip string) {
	if e == nil {
		return
	}
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditCSRFRejected,
		IP:        ip,
		Error:     ErrCSRFMismatch.Error(),
	})
}
