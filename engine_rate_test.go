package sessionguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHitRateMapsLimitError(t *testing.T) {
	store := newMockStore()

	cfg := testConfig()
	cfg.RateLimit.GeneralAPI = LimitRule{Window: 15 * time.Minute, Threshold: 2}
	engine, _ := newTestEngine(t, cfg, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := engine.HitRate(ctx, LimitGeneralAPI, "1.2.3.4"); err != nil {
			t.Fatalf("hit %d unexpectedly limited: %v", i+1, err)
		}
	}

	err := engine.HitRate(ctx, LimitGeneralAPI, "1.2.3.4")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var limitErr *RateLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if limitErr.Class != LimitGeneralAPI {
		t.Fatalf("Class = %v, want LimitGeneralAPI", limitErr.Class)
	}
	if limitErr.SecurityAlert {
		t.Fatal("general API limit must not be a security alert")
	}
	if limitErr.RetryAfter <= 0 || limitErr.RetryAfter > 15*time.Minute {
		t.Fatalf("RetryAfter = %v, want within window", limitErr.RetryAfter)
	}
}

func TestBruteForceLimitCarriesAlert(t *testing.T) {
	store := newMockStore()

	cfg := testConfig()
	cfg.RateLimit.BruteForce = LimitRule{Window: 5 * time.Minute, Threshold: 1}
	engine, _ := newTestEngine(t, cfg, store)
	ctx := context.Background()

	if err := engine.HitRate(ctx, LimitBruteForce, "1.2.3.4"); err != nil {
		t.Fatalf("first hit unexpectedly limited: %v", err)
	}

	err := engine.HitRate(ctx, LimitBruteForce, "1.2.3.4")
	var limitErr *RateLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}
	if !limitErr.SecurityAlert {
		t.Fatal("brute-force limit must carry the security alert flag")
	}
}

func TestCheckRateDoesNotConsume(t *testing.T) {
	store := newMockStore()

	cfg := testConfig()
	cfg.RateLimit.AdminAPI = LimitRule{Window: 15 * time.Minute, Threshold: 3}
	engine, _ := newTestEngine(t, cfg, store)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := engine.CheckRate(ctx, LimitAdminAPI, "u:admin-1"); err != nil {
			t.Fatalf("check %d unexpectedly limited: %v", i+1, err)
		}
	}
}

func TestResetRateClearsBudget(t *testing.T) {
	store := newMockStore()

	cfg := testConfig()
	cfg.RateLimit.AccountSecurity = LimitRule{Window: time.Hour, Threshold: 1}
	engine, _ := newTestEngine(t, cfg, store)
	ctx := context.Background()

	if err := engine.HitRate(ctx, LimitAccountSecurity, "u:u1"); err != nil {
		t.Fatalf("first hit unexpectedly limited: %v", err)
	}
	if err := engine.HitRate(ctx, LimitAccountSecurity, "u:u1"); err == nil {
		t.Fatal("expected second hit to be limited")
	}

	if err := engine.ResetRate(ctx, LimitAccountSecurity, "u:u1"); err != nil {
		t.Fatalf("ResetRate failed: %v", err)
	}
	if err := engine.HitRate(ctx, LimitAccountSecurity, "u:u1"); err != nil {
		t.Fatalf("expected fresh budget after reset, got %v", err)
	}
}

func TestRateOutageFailsClosed(t *testing.T) {
	store := newMockStore()
	engine, mr := newTestEngine(t, testConfig(), store)
	mr.Close()

	err := engine.HitRate(context.Background(), LimitGeneralAPI, "1.2.3.4")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestReportCSRFRejected(t *testing.T) {
	store := newMockStore()

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	engine, _ := newTestEngine(t, cfg, store)

	engine.ReportCSRFRejected(context.Background(), "1.2.3.4")

	if got := engine.MetricsSnapshot().Counters[MetricCSRFRejected]; got != 1 {
		t.Fatalf("csrf rejected counter = %d, want 1", got)
	}
}

func TestRateLimitErrorMatchesSentinel(t *testing.T) {
	err := &RateLimitError{Class: LimitAuthAttempts, Limit: 5, Window: 15 * time.Minute, RetryAfter: time.Minute}

	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("RateLimitError must match ErrRateLimited")
	}
	if err.Error() == "" {
		t.Fatal("expected a message")
	}
}
