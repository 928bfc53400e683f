package sessionguard

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const minSecretBytes = 32

// Config defines a public type used by sessionguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token     TokenConfig
	Password  PasswordConfig
	Cookie    CookieConfig
	CSRF      CSRFConfig
	Ledger    LedgerConfig
	RateLimit RateLimitConfig
	Phone     PhoneVerificationConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by sessionguard APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	Secret               []byte
	Issuer               string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	RememberMeRefreshTTL time.Duration
	Leeway               time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by sessionguard APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool

	// Delegated switches credential verification to the configured
	// [DelegatedVerifier]; the local argon2id path is skipped entirely.
	Delegated bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig defines a public type used by sessionguard APIs.
//
// CookieConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CookieConfig struct {
	AuthName    string
	RefreshName string
	CSRFName    string
	Domain      string
	Path        string
	SigningKey  []byte
}

// CSRFConfig defines a public type used by sessionguard APIs.
//
// CSRFConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CSRFConfig struct {
	Enabled bool
	Key     []byte
}

// LedgerConfig defines a public type used by sessionguard APIs.
//
// LedgerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LedgerConfig struct {
	RedisPrefix   string
	OpTimeout     time.Duration
	LookupRetries int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// LimitRule defines a public type used by sessionguard APIs.
//
// LimitRule instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LimitRule struct {
	Window    time.Duration
	Threshold int
}

// RateLimitConfig defines a public type used by sessionguard APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Enabled         bool
	AuthAttempts    LimitRule
	AccountSecurity LimitRule
	GeneralAPI      LimitRule
	AdminAPI        LimitRule
	BruteForce      LimitRule
}

// PhoneVerificationConfig defines a public type used by sessionguard APIs.
//
// PhoneVerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PhoneVerificationConfig struct {
	Required bool

	// BypassEmails lists normalized addresses exempt from the phone gate
	// (support and test accounts).
	BypassEmails []string
}

// AuditConfig defines a public type used by sessionguard APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by sessionguard APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig defines a public type used by sessionguard APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:               "sessionguard",
			AccessTTL:            24 * time.Hour,
			RefreshTTL:           24 * time.Hour,
			RememberMeRefreshTTL: 30 * 24 * time.Hour,
			Leeway:               30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			Delegated:      false,
		},
		Cookie: CookieConfig{
			AuthName:    "auth_token",
			RefreshName: "refresh_token",
			CSRFName:    "csrf_token",
			Path:        "/",
		},
		CSRF: CSRFConfig{
			Enabled: true,
		},
		Ledger: LedgerConfig{
			RedisPrefix:   "rtl",
			OpTimeout:     3 * time.Second,
			LookupRetries: 2,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			AuthAttempts:    LimitRule{Window: 15 * time.Minute, Threshold: 5},
			AccountSecurity: LimitRule{Window: 60 * time.Minute, Threshold: 10},
			GeneralAPI:      LimitRule{Window: 15 * time.Minute, Threshold: 100},
			AdminAPI:        LimitRule{Window: 15 * time.Minute, Threshold: 200},
			BruteForce:      LimitRule{Window: 5 * time.Minute, Threshold: 20},
		},
		Phone: PhoneVerificationConfig{
			Required: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg

	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Cookie.SigningKey = cloneBytes(cfg.Cookie.SigningKey)
	out.CSRF.Key = cloneBytes(cfg.CSRF.Key)

	if cfg.Phone.BypassEmails != nil {
		out.Phone.BypassEmails = make([]string, len(cfg.Phone.BypassEmails))
		copy(out.Phone.BypassEmails, cfg.Phone.BypassEmails)
	}

	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("token secret required")
	}
	if len(c.Token.Secret) < minSecretBytes {
		if c.Security.ProductionMode {
			return fmt.Errorf("token secret must be at least %d bytes in production", minSecretBytes)
		}
		slog.Warn("token secret shorter than recommended minimum",
			"have_bytes", len(c.Token.Secret),
			"want_bytes", minSecretBytes,
		)
	}

	if c.Token.Issuer == "" {
		return errors.New("token issuer required")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("access ttl must be positive")
	}
	if c.Token.AccessTTL > 24*time.Hour {
		return errors.New("access ttl must not exceed 24h")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("refresh ttl must be positive")
	}
	if c.Token.RememberMeRefreshTTL < c.Token.RefreshTTL {
		return errors.New("remember-me refresh ttl must not be shorter than refresh ttl")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 5*time.Minute {
		return errors.New("token leeway must be within [0, 5m]")
	}

	if c.CSRF.Enabled && len(c.CSRF.Key) < minSecretBytes {
		return fmt.Errorf("csrf key must be at least %d bytes", minSecretBytes)
	}
	if c.Security.ProductionMode && !c.CSRF.Enabled {
		return errors.New("csrf protection cannot be disabled in production")
	}

	if c.Cookie.AuthName == "" || c.Cookie.RefreshName == "" || c.Cookie.CSRFName == "" {
		return errors.New("cookie names must not be empty")
	}
	if len(c.Cookie.SigningKey) < minSecretBytes {
		return fmt.Errorf("cookie signing key must be at least %d bytes", minSecretBytes)
	}

	if c.Ledger.OpTimeout <= 0 {
		return errors.New("ledger op timeout must be positive")
	}
	if c.Ledger.LookupRetries < 0 || c.Ledger.LookupRetries > 2 {
		return errors.New("ledger lookup retries must be within [0, 2]")
	}

	if c.RateLimit.Enabled {
		rules := []struct {
			name string
			rule LimitRule
		}{
			{"auth attempts", c.RateLimit.AuthAttempts},
			{"account security", c.RateLimit.AccountSecurity},
			{"general api", c.RateLimit.GeneralAPI},
			{"admin api", c.RateLimit.AdminAPI},
			{"brute force", c.RateLimit.BruteForce},
		}
		for _, r := range rules {
			if r.rule.Window <= 0 {
				return fmt.Errorf("%s rate limit window must be positive", r.name)
			}
			if r.rule.Threshold <= 0 {
				return fmt.Errorf("%s rate limit threshold must be positive", r.name)
			}
		}
	}

	return nil
}
