// Package rate implements fixed-window Redis counters for the engine's five
// limiter classes. Counters are shared across processes; approximate counting
// under pipeline races errs toward stricter blocking, never looser.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Class identifies one limiter class. Distinct classes never share counters,
// even for the same key.
type Class uint8

const (
	// ClassAuthAttempts counts every authentication attempt per IP.
	ClassAuthAttempts Class = iota
	// ClassAccountSecurity counts failed account-security operations per
	// user, falling back to IP when no user is known.
	ClassAccountSecurity
	// ClassGeneralAPI counts failed general API requests per IP.
	ClassGeneralAPI
	// ClassAdminAPI counts failed admin API requests per user, falling back
	// to IP.
	ClassAdminAPI
	// ClassBruteForce counts credential failures per IP on a short window;
	// tripping it is a security signal, not ordinary throttling.
	ClassBruteForce

	classCount
)

var classPrefixes = [classCount]string{
	ClassAuthAttempts:    "auth",
	ClassAccountSecurity: "acct",
	ClassGeneralAPI:      "api",
	ClassAdminAPI:        "admin",
	ClassBruteForce:      "bf",
}

// ErrRedisUnavailable is an exported constant or variable used by the session security engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Rule is one class's window and threshold.
type Rule struct {
	Window    time.Duration
	Threshold int
}

// Config holds the per-class rules.
type Config struct {
	Enabled bool
	Rules   [5]Rule
}

// LimitError reports a denied key together with the rule that denied it.
type LimitError struct {
	Class      Class
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

// Error describes the error operation and its observable behavior.
func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited: class=%d limit=%d window=%s retry_after=%s",
		e.Class, e.Limit, e.Window, e.RetryAfter)
}

// Limiter enforces the five limiter classes using Redis counters. It is safe
// for concurrent use.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enabled describes the enabled operation and its observable behavior.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.Enabled
}

// Rule returns the configured rule for class.
func (l *Limiter) Rule(class Class) Rule {
	if class >= classCount {
		return Rule{}
	}
	return l.config.Rules[class]
}

// Check reads the counter for (class, key) without incrementing. It returns a
// *LimitError when the threshold is already met.
func (l *Limiter) Check(ctx context.Context, class Class, key string) error {
	if !l.Enabled() || key == "" {
		return nil
	}

	k := l.key(class, key)
	count, err := l.redis.Get(ctx, k).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rule := l.config.Rules[class]
	if count >= int64(rule.Threshold) {
		return l.limitError(ctx, class, k, rule)
	}

	return nil
}

// Hit increments the counter for (class, key) and returns a *LimitError when
// the increment pushes it past the threshold. Which outcomes count is the
// caller's contract: auth attempts hit on every attempt, the skip-success
// classes hit on failures only.
func (l *Limiter) Hit(ctx context.Context, class Class, key string) error {
	if !l.Enabled() || key == "" {
		return nil
	}

	k := l.key(class, key)
	rule := l.config.Rules[class]

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, rule.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(rule.Threshold) {
		return l.limitError(ctx, class, k, rule)
	}

	return nil
}

// Reset clears the counter for (class, key).
func (l *Limiter) Reset(ctx context.Context, class Class, key string) error {
	if !l.Enabled() || key == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(class, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (l *Limiter) key(class Class, key string) string {
	return "rl:" + classPrefixes[class] + ":" + key
}

func (l *Limiter) limitError(ctx context.Context, class Class, key string, rule Rule) *LimitError {
	retryAfter := rule.Window
	if ttl, err := l.redis.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		retryAfter = ttl
	}

	return &LimitError{
		Class:      class,
		Limit:      rule.Threshold,
		Window:     rule.Window,
		RetryAfter: retryAfter,
	}
}
