package cookie

import (
	"errors"
	"net/http"
	"time"
)

// Category defines a public type used by sessionguard APIs.
//
// Category instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Category uint8

const (
	// CategoryAuth is an exported constant or variable used by the session security engine.
	CategoryAuth Category = iota
	// CategoryCSRF is an exported constant or variable used by the session security engine.
	CategoryCSRF
	// CategorySession is an exported constant or variable used by the session security engine.
	CategorySession
	// CategoryTransient is an exported constant or variable used by the session security engine.
	CategoryTransient
	// CategoryPreference is an exported constant or variable used by the session security engine.
	CategoryPreference
)

const (
	authLifetime       = 24 * time.Hour
	csrfLifetime       = 2 * time.Hour
	sessionLifetime    = 7 * 24 * time.Hour
	transientLifetime  = 5 * time.Minute
	preferenceLifetime = 365 * 24 * time.Hour
)

// Policy is the computed transport attribute set for one cookie. Policies are
// value types; deriving a variant never mutates the original.
type Policy struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	Signed   bool
	MaxAge   time.Duration
}

// WithMaxAge returns a copy of p with the lifetime replaced. All other flags
// are preserved; overriding lifetime must never drop HttpOnly/Secure/Signed.
func (p Policy) WithMaxAge(d time.Duration) Policy {
	p.MaxAge = d
	return p
}

// Config defines a public type used by sessionguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Production bool
	Domain     string
	Path       string
	SigningKey []byte
}

// Engine computes category policies and writes/reads cookies under them.
// It is safe for concurrent use.
type Engine struct {
	config Config
}

// NewEngine describes the newengine operation and its observable behavior.
//
// NewEngine may return an error when input validation, dependency calls, or security checks fail.
// NewEngine does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, errors.New("cookie signing key must be at least 32 bytes")
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)
	cfg.SigningKey = key

	return &Engine{config: cfg}, nil
}

// PolicyFor returns the default policy for the category. Secure is only
// relaxed outside production; SameSite defaults to Strict in production and
// Lax in development so local cross-origin testing works.
func (e *Engine) PolicyFor(cat Category) Policy {
	inherited := http.SameSiteLaxMode
	if e.config.Production {
		inherited = http.SameSiteStrictMode
	}

	p := Policy{
		HTTPOnly: true,
		Secure:   e.config.Production,
		SameSite: inherited,
	}

	switch cat {
	case CategoryAuth:
		p.Signed = true
		p.MaxAge = authLifetime
	case CategoryCSRF:
		// Double-submit requires the client script to read this one back.
		p.HTTPOnly = false
		p.SameSite = http.SameSiteLaxMode
		p.MaxAge = csrfLifetime
	case CategorySession:
		p.Signed = true
		p.SameSite = http.SameSiteStrictMode
		p.MaxAge = sessionLifetime
	case CategoryTransient:
		p.MaxAge = transientLifetime
	case CategoryPreference:
		p.HTTPOnly = false
		p.MaxAge = preferenceLifetime
	}

	return p
}

// Apply sets the named cookie on w under policy p, signing the value when the
// policy requires it.
func (e *Engine) Apply(w http.ResponseWriter, name, value string, p Policy) {
	if p.Signed {
		value = e.sign(name, value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   e.config.Domain,
		Path:     e.config.Path,
		MaxAge:   int(p.MaxAge / time.Second),
		HttpOnly: p.HTTPOnly,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

// Read returns the named cookie's value from r, verifying the signature when
// policy p marks the category signed. Missing cookies return
// [ErrCookieMissing]; tampered values return [ErrBadSignature].
func (e *Engine) Read(r *http.Request, name string, p Policy) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", ErrCookieMissing
	}

	if !p.Signed {
		return c.Value, nil
	}

	return e.open(name, c.Value)
}

// Clear expires the named cookie immediately while keeping the policy's
// transport flags, so the deletion reaches the same cookie the set did.
func (e *Engine) Clear(w http.ResponseWriter, name string, p Policy) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   e.config.Domain,
		Path:     e.config.Path,
		MaxAge:   -1,
		HttpOnly: p.HTTPOnly,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}
