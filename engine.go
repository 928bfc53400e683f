package sessionguard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/cookie"
	"github.com/MrEthical07/sessionguard/csrf"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/ledger"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/token"
)

// Engine defines a public type used by sessionguard APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config    Config
	store     CredentialStore
	verifier  DelegatedVerifier
	passwords *password.Hasher
	tokens    *token.Manager
	ledger    *ledger.Ledger
	limiter   *rate.Limiter
	cookies   *cookie.Engine
	csrfGuard *csrf.Guard
	audit     *auditDispatcher
	metrics   *Metrics
	bypass    map[string]struct{}
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Cookies returns the cookie policy engine so transports can apply and clear
// cookies under the same policies the engine computed.
func (e *Engine) Cookies() *cookie.Engine {
	if e == nil {
		return nil
	}
	return e.cookies
}

// CSRFGuard returns the configured CSRF guard, or nil when CSRF protection
// is disabled.
func (e *Engine) CSRFGuard() *csrf.Guard {
	if e == nil {
		return nil
	}
	return e.csrfGuard
}

// CookieNames returns the configured auth, refresh, and csrf cookie names.
func (e *Engine) CookieNames() (auth, refresh, csrfName string) {
	if e == nil {
		return "", "", ""
	}
	return e.config.Cookie.AuthName, e.config.Cookie.RefreshName, e.config.Cookie.CSRFName
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(ctx, event)
}

// lookupByEmail reads the credential record with bounded retries; reads are
// idempotent so transient store failures are retried, up to the configured
// cap.
func (e *Engine) lookupByEmail(ctx context.Context, email string) (CredentialRecord, error) {
	return e.retryRead(ctx, func() (CredentialRecord, error) {
		return e.store.GetByEmail(ctx, email)
	})
}

func (e *Engine) lookupByID(ctx context.Context, userID string) (CredentialRecord, error) {
	return e.retryRead(ctx, func() (CredentialRecord, error) {
		return e.store.GetByID(ctx, userID)
	})
}

func (e *Engine) retryRead(ctx context.Context, read func() (CredentialRecord, error)) (CredentialRecord, error) {
	var (
		record CredentialRecord
		err    error
	)

	attempts := e.config.Ledger.LookupRetries + 1
	for i := 0; i < attempts; i++ {
		record, err = read()
		if err == nil || errors.Is(err, ErrCredentialNotFound) {
			return record, err
		}
		if ctx.Err() != nil {
			break
		}
	}

	e.metricInc(MetricStoreUnavailable)
	return CredentialRecord{}, errors.Join(ErrStoreUnavailable, err)
}
