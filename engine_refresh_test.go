package sessionguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func loginArtifacts(t *testing.T, engine *Engine, rememberMe bool) *SessionArtifacts {
	t.Helper()

	artifacts, err := engine.Login(context.Background(), "alice@example.com", "correct-password-123", rememberMe)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return artifacts
}

func TestRefreshRotates(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)
	ctx := context.Background()

	first := loginArtifacts(t, engine, false)

	second, err := engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must issue a new refresh token")
	}
	if second.AccessToken == "" {
		t.Fatal("refresh must issue a new access token")
	}
	if second.UserID != "u1" {
		t.Fatalf("UserID = %s, want u1", second.UserID)
	}

	// The old record stays behind, revoked and pointing at its successor.
	oldClaims, err := engine.tokens.ParseRefresh(first.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh(old) failed: %v", err)
	}
	newClaims, err := engine.tokens.ParseRefresh(second.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh(new) failed: %v", err)
	}
	oldRec, err := engine.ledger.Lookup(ctx, oldClaims.ID)
	if err != nil {
		t.Fatalf("ledger lookup failed: %v", err)
	}
	if !oldRec.Revoked || oldRec.ReplacedBy != newClaims.ID {
		t.Fatalf("unexpected old record: %+v", oldRec)
	}
}

func TestRefreshPreservesAbsoluteExpiry(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)

	first := loginArtifacts(t, engine, true)

	second, err := engine.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Rotation must not extend the remember-me window.
	drift := second.RefreshExpiresAt.Sub(first.RefreshExpiresAt)
	if drift < -time.Minute || drift > time.Minute {
		t.Fatalf("successor expiry drifted by %v", drift)
	}
}

func TestRefreshReplayRevokesFamily(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	engine, _ := newTestEngine(t, cfg, store)
	ctx := context.Background()

	first := loginArtifacts(t, engine, false)

	second, err := engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Replaying the consumed token is a reuse event.
	if _, err := engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenReuse) {
		t.Fatalf("expected ErrTokenReuse, got %v", err)
	}

	// The legitimate successor is dead too.
	if _, err := engine.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrTokenReuse) {
		t.Fatalf("expected successor to be revoked, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] == 0 {
		t.Fatal("expected reuse detection metric")
	}
	if snap.Counters[MetricSecurityAlert] == 0 {
		t.Fatal("expected security alert metric")
	}
	if snap.Counters[MetricFamilyRevoked] == 0 {
		t.Fatal("expected family revocation metric")
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)

	if _, err := engine.Refresh(context.Background(), "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestRefreshAccessTokenRejected(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)

	artifacts := loginArtifacts(t, engine, false)

	if _, err := engine.Refresh(context.Background(), artifacts.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for kind confusion, got %v", err)
	}
}

func TestRefreshInactiveAccount(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)
	ctx := context.Background()

	artifacts := loginArtifacts(t, engine, false)

	// Deactivate after login; the outstanding refresh token must stop working.
	rec, err := store.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	rec.Status = AccountInactive
	store.put(rec)

	if _, err := engine.Refresh(ctx, artifacts.RefreshToken); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}

	// The record was revoked on the way out.
	claims, err := engine.tokens.ParseRefresh(artifacts.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}
	ledgerRec, err := engine.ledger.Lookup(ctx, claims.ID)
	if err != nil {
		t.Fatalf("ledger lookup failed: %v", err)
	}
	if !ledgerRec.Revoked {
		t.Fatal("expected ledger record to be revoked")
	}
}

func TestRefreshStoreOutageDoesNotConsumeToken(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")

	cfg := testConfig()
	cfg.Ledger.LookupRetries = 0
	engine, _ := newTestEngine(t, cfg, store)
	ctx := context.Background()

	artifacts := loginArtifacts(t, engine, false)

	store.mu.Lock()
	store.failReads = true
	store.readErr = errors.New("connection refused")
	store.mu.Unlock()

	if _, err := engine.Refresh(ctx, artifacts.RefreshToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	// The outage happened before rotation; the same token works once the
	// store comes back.
	store.mu.Lock()
	store.failReads = false
	store.mu.Unlock()

	if _, err := engine.Refresh(ctx, artifacts.RefreshToken); err != nil {
		t.Fatalf("expected token to survive the outage, got %v", err)
	}
}

func TestRefreshUnknownSubject(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)
	ctx := context.Background()

	artifacts := loginArtifacts(t, engine, false)

	// Deleting the account invalidates its sessions.
	store.mu.Lock()
	delete(store.byID, "u1")
	delete(store.byEmail, "alice@example.com")
	store.mu.Unlock()

	if _, err := engine.Refresh(ctx, artifacts.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
