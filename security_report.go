package sessionguard

import "time"

// SecurityReport is a read-only snapshot of the engine's active security
// posture, safe to expose on an operator endpoint.
type SecurityReport struct {
	ProductionMode        bool
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	RememberMeRefreshTTL  time.Duration
	TokenLeeway           time.Duration
	SecretLength          int
	Argon2                PasswordConfigReport
	DelegatedVerification bool
	CSRFEnabled           bool
	RateLimitingActive    bool
	ReuseDetectionActive  bool
	PhoneGateRequired     bool
	PhoneGateBypassCount  int
	AuditEnabled          bool
}

// PasswordConfigReport defines a public type used by sessionguard APIs.
//
// PasswordConfigReport instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport may return an error when input validation, dependency calls, or security checks fail.
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:       e.config.Security.ProductionMode,
		AccessTTL:            e.config.Token.AccessTTL,
		RefreshTTL:           e.config.Token.RefreshTTL,
		RememberMeRefreshTTL: e.config.Token.RememberMeRefreshTTL,
		TokenLeeway:          e.config.Token.Leeway,
		SecretLength:         len(e.config.Token.Secret),
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		DelegatedVerification: e.config.Password.Delegated,
		CSRFEnabled:           e.config.CSRF.Enabled,
		RateLimitingActive:    e.config.RateLimit.Enabled,
		// Rotation always consults the ledger; there is no configuration
		// that turns reuse detection off.
		ReuseDetectionActive: true,
		PhoneGateRequired:    e.config.Phone.Required,
		PhoneGateBypassCount: len(e.bypass),
		AuditEnabled:         e.config.Audit.Enabled,
	}
}
