package sessionguard

import (
	"context"
	"errors"
	"testing"
)

func TestLogoutRevokesLedgerRecord(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)
	ctx := context.Background()

	artifacts := loginArtifacts(t, engine, false)

	if err := engine.Logout(ctx, artifacts.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	claims, err := engine.tokens.ParseRefresh(artifacts.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}
	rec, err := engine.ledger.Lookup(ctx, claims.ID)
	if err != nil {
		t.Fatalf("ledger lookup failed: %v", err)
	}
	if !rec.Revoked {
		t.Fatal("expected ledger record to be revoked")
	}

	// A revoked token cannot rotate anymore.
	if _, err := engine.Refresh(ctx, artifacts.RefreshToken); !errors.Is(err, ErrTokenReuse) {
		t.Fatalf("expected ErrTokenReuse after logout, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)
	ctx := context.Background()

	artifacts := loginArtifacts(t, engine, false)

	if err := engine.Logout(ctx, artifacts.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, artifacts.RefreshToken); err != nil {
		t.Fatalf("repeated Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, "garbage-token"); err != nil {
		t.Fatalf("Logout with invalid token must succeed, got %v", err)
	}
}

func TestRevokeUserSessions(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, testConfig(), store)
	ctx := context.Background()

	first := loginArtifacts(t, engine, false)
	second := loginArtifacts(t, engine, false)

	revoked, err := engine.RevokeUserSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeUserSessions failed: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("revoked = %d, want 2", revoked)
	}

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		if _, err := engine.Refresh(ctx, token); !errors.Is(err, ErrTokenReuse) {
			t.Fatalf("expected revoked token to fail refresh, got %v", err)
		}
	}
}
