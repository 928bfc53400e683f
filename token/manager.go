package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"

	maxFutureIAT = 10 * time.Minute
)

// ErrInvalidToken is an exported constant or variable used by the session security engine.
var ErrInvalidToken = errors.New("invalid token")

// Config defines a public type used by sessionguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	Leeway    time.Duration
}

// Manager signs and verifies access and refresh tokens. It is safe for
// concurrent use.
type Manager struct {
	config Config
}

// AccessClaims defines a public type used by sessionguard APIs.
//
// AccessClaims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccessClaims struct {
	AccountType string `json:"act,omitempty"`
	Email       string `json:"email,omitempty"`
	Kind        string `json:"knd"`
	jwt.RegisteredClaims
}

// RefreshClaims defines a public type used by sessionguard APIs.
//
// RefreshClaims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshClaims struct {
	Kind string `json:"knd"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a signing secret")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 5*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess mints a signed access token for the identity triple. Expiry is
// the configured access TTL from now.
func (m *Manager) IssueAccess(userID, accountType, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.AccessTTL)

	claims := AccessClaims{
		AccountType: accountType,
		Email:       email,
		Kind:        kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// IssueRefresh mints a signed refresh token with a fresh jti and the given
// lifetime. The jti is returned so callers can record it in the ledger before
// the token ever reaches a client.
func (m *Manager) IssueRefresh(userID string, ttl time.Duration) (signed string, jti string, expiresAt time.Time, err error) {
	if ttl <= 0 {
		return "", "", time.Time{}, errors.New("refresh ttl must be positive")
	}

	now := time.Now()
	jti = uuid.NewString()
	expiresAt = now.Add(ttl)

	claims := RefreshClaims{
		Kind: kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return signed, jti, expiresAt, nil
}

// ParseAccess verifies tokenStr as an access token and returns its claims.
// Any verification failure maps to [ErrInvalidToken].
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Kind != kindAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ParseRefresh verifies tokenStr as a refresh token and returns its claims.
// A refresh token without a jti is invalid regardless of signature.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Kind != kindRefresh || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}

	if iat, err := token.Claims.GetIssuedAt(); err == nil && iat != nil {
		if iat.Time.After(time.Now().Add(maxFutureIAT)) {
			return ErrInvalidToken
		}
	}

	return nil
}
