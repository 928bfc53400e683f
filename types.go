package sessionguard

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/cookie"
)

// AccountStatus represents the lifecycle state of a user account as reported
// by the host application's [CredentialStore].
type AccountStatus uint8

const (
	// AccountActive is an exported constant or variable used by the session security engine.
	AccountActive AccountStatus = iota
	// AccountInactive is an exported constant or variable used by the session security engine.
	AccountInactive
)

// CredentialRecord is the read-only account record returned by
// [CredentialStore]. It carries everything the engine needs to authenticate:
// the stored password hash, lifecycle status, and the identity fields minted
// into access tokens.
type CredentialRecord struct {
	UserID        string
	Email         string
	PasswordHash  string
	AccountType   string
	Status        AccountStatus
	PhoneVerified bool
}

// CredentialStore is the interface callers must implement to integrate
// sessionguard with their user database. The engine never writes account
// state through it; UpdatePasswordHash is the single exception, used for
// silent hash upgrades when [PasswordConfig.UpgradeOnLogin] is set.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (CredentialRecord, error)
	GetByID(ctx context.Context, userID string) (CredentialRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// DelegatedVerifier replaces local argon2id verification when the password
// check belongs to an external identity provider. The stored hash is passed
// through opaque; implementations return (false, nil) on mismatch and reserve
// errors for backend failures.
type DelegatedVerifier interface {
	VerifyPassword(ctx context.Context, record CredentialRecord, password string) (bool, error)
}

// AuthResult is returned by [Engine.Authenticate]. It contains the identity
// triple downstream handlers may rely on and nothing else.
type AuthResult struct {
	UserID      string
	AccountType string
	Email       string
	ExpiresAt   time.Time
}

// SessionArtifacts is returned by [Engine.Login] and [Engine.Refresh]. It
// carries both tokens, the resolved identity, expiry instants, and the cookie
// policies computed for this session so transports can set cookies without
// re-deriving flags.
type SessionArtifacts struct {
	UserID      string
	AccountType string
	Email       string

	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time

	AccessCookie  cookie.Policy
	RefreshCookie cookie.Policy
}

// LimiterClass identifies one of the fixed rate-limit classes enforced by the
// engine. Each class has its own key namespace, window, and threshold.
type LimiterClass uint8

const (
	// LimitAuthAttempts is an exported constant or variable used by the session security engine.
	LimitAuthAttempts LimiterClass = iota
	// LimitAccountSecurity is an exported constant or variable used by the session security engine.
	LimitAccountSecurity
	// LimitGeneralAPI is an exported constant or variable used by the session security engine.
	LimitGeneralAPI
	// LimitAdminAPI is an exported constant or variable used by the session security engine.
	LimitAdminAPI
	// LimitBruteForce is an exported constant or variable used by the session security engine.
	LimitBruteForce
)

// String describes the string operation and its observable behavior.
func (c LimiterClass) String() string {
	switch c {
	case LimitAuthAttempts:
		return "auth_attempts"
	case LimitAccountSecurity:
		return "account_security"
	case LimitGeneralAPI:
		return "general_api"
	case LimitAdminAPI:
		return "admin_api"
	case LimitBruteForce:
		return "brute_force"
	default:
		return "unknown"
	}
}

// RateLimitError reports a denied request together with the class that denied
// it and how long the caller should wait. It matches [ErrRateLimited] under
// errors.Is.
type RateLimitError struct {
	Class      LimiterClass
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration

	// SecurityAlert is set when the brute-force class tripped; callers
	// should treat the source as hostile, not merely chatty.
	SecurityAlert bool
}

// Error describes the error operation and its observable behavior.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: class=%s limit=%d window=%s retry_after=%s",
		e.Class, e.Limit, e.Window, e.RetryAfter)
}

// Is reports whether target is [ErrRateLimited], so wrapped limit errors stay
// matchable without exposing limiter internals.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
