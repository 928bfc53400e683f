package sessionguard

import (
	"errors"
	"strings"

	"github.com/MrEthical07/sessionguard/cookie"
	"github.com/MrEthical07/sessionguard/csrf"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/ledger"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/token"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by sessionguard APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	verifier  DelegatedVerifier
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore describes the withcredentialstore operation and its observable behavior.
//
// WithCredentialStore may return an error when input validation, dependency calls, or security checks fail.
// WithCredentialStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithDelegatedVerifier describes the withdelegatedverifier operation and its observable behavior.
//
// WithDelegatedVerifier may return an error when input validation, dependency calls, or security checks fail.
// WithDelegatedVerifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithDelegatedVerifier(v DelegatedVerifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Password.Delegated && b.verifier == nil {
		return nil, errors.New("delegated verification requires a DelegatedVerifier")
	}

	tokens, err := token.NewManager(token.Config{
		Secret:    cfg.Token.Secret,
		Issuer:    cfg.Token.Issuer,
		AccessTTL: cfg.Token.AccessTTL,
		Leeway:    cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var passwords *password.Hasher
	if !cfg.Password.Delegated {
		passwords, err = password.New(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
	}

	cookies, err := cookie.NewEngine(cookie.Config{
		Production: cfg.Security.ProductionMode,
		Domain:     cfg.Cookie.Domain,
		Path:       cfg.Cookie.Path,
		SigningKey: cfg.Cookie.SigningKey,
	})
	if err != nil {
		return nil, err
	}

	var csrfGuard *csrf.Guard
	if cfg.CSRF.Enabled {
		csrfGuard, err = csrf.New(cfg.CSRF.Key)
		if err != nil {
			return nil, err
		}
	}

	limiter := rate.New(b.redis, rate.Config{
		Enabled: cfg.RateLimit.Enabled,
		Rules: [5]rate.Rule{
			rate.ClassAuthAttempts:    {Window: cfg.RateLimit.AuthAttempts.Window, Threshold: cfg.RateLimit.AuthAttempts.Threshold},
			rate.ClassAccountSecurity: {Window: cfg.RateLimit.AccountSecurity.Window, Threshold: cfg.RateLimit.AccountSecurity.Threshold},
			rate.ClassGeneralAPI:      {Window: cfg.RateLimit.GeneralAPI.Window, Threshold: cfg.RateLimit.GeneralAPI.Threshold},
			rate.ClassAdminAPI:        {Window: cfg.RateLimit.AdminAPI.Window, Threshold: cfg.RateLimit.AdminAPI.Threshold},
			rate.ClassBruteForce:      {Window: cfg.RateLimit.BruteForce.Window, Threshold: cfg.RateLimit.BruteForce.Threshold},
		},
	})

	bypass := make(map[string]struct{}, len(cfg.Phone.BypassEmails))
	for _, email := range cfg.Phone.BypassEmails {
		bypass[normalizeEmail(email)] = struct{}{}
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		verifier:  b.verifier,
		passwords: passwords,
		tokens:    tokens,
		ledger:    ledger.New(b.redis, cfg.Ledger.RedisPrefix, cfg.Ledger.OpTimeout),
		limiter:   limiter,
		cookies:   cookies,
		csrfGuard: csrfGuard,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		bypass:    bypass,
	}

	b.built = true
	return engine, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
