package sessionguard

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the session security engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is an exported constant or variable used by the session security engine.
	ErrAccountInactive = errors.New("account inactive")
	// ErrPhoneVerificationRequired is an exported constant or variable used by the session security engine.
	ErrPhoneVerificationRequired = errors.New("phone verification required")
	// ErrTokenInvalid is an exported constant or variable used by the session security engine.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenReuse is an exported constant or variable used by the session security engine.
	ErrTokenReuse = errors.New("refresh token reuse detected")
	// ErrRateLimited is an exported constant or variable used by the session security engine.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrCSRFMismatch is an exported constant or variable used by the session security engine.
	ErrCSRFMismatch = errors.New("csrf token mismatch")
	// ErrStoreUnavailable is an exported constant or variable used by the session security engine.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrCredentialNotFound is an exported constant or variable used by the session security engine.
	ErrCredentialNotFound = errors.New("credential record not found")
	// ErrEngineNotReady is an exported constant or variable used by the session security engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
