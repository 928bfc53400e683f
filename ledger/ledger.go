package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is an exported constant or variable used by the session security engine.
	ErrNotFound = errors.New("refresh token record not found")
	// ErrExpired is an exported constant or variable used by the session security engine.
	ErrExpired = errors.New("refresh token record expired")
	// ErrReuseDetected is an exported constant or variable used by the session security engine.
	ErrReuseDetected = errors.New("refresh token already rotated or revoked")
	// ErrRedisUnavailable is an exported constant or variable used by the session security engine.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	rotateStatusNotFound = 0
	rotateStatusExpired  = 1
	rotateStatusReuse    = 2
	rotateStatusRotated  = 3
	rotateStatusCorrupt  = 4

	// userSetTTL caps how long an idle per-user index set survives. It only
	// needs to outlive the longest refresh token lifetime.
	userSetTTL = 60 * 24 * time.Hour
)

const rotateScript = `
local old_key = KEYS[1]
local new_key = KEYS[2]
local user_key = KEYS[3]
local now_ms = tonumber(ARGV[1])
local old_jti = ARGV[2]
local new_jti = ARGV[3]
local user_id = ARGV[4]
local new_iat_ms = ARGV[5]
local new_exp_ms = tonumber(ARGV[6])

local old = redis.call("HMGET", old_key, "user", "exp", "revoked")
if not old[1] then
  return {0}
end

if old[1] ~= user_id then
  return {4}
end

if old[3] == "1" then
  return {2}
end

local exp = tonumber(old[2])
if not exp then
  return {4}
end
if exp <= now_ms then
  redis.call("DEL", old_key)
  redis.call("SREM", user_key, old_jti)
  return {1}
end

redis.call("HSET", old_key, "revoked", "1", "replaced_by", new_jti)
redis.call("HSET", new_key,
  "user", user_id,
  "iat", new_iat_ms,
  "exp", new_exp_ms,
  "revoked", "0",
  "replaced_by", "")
redis.call("PEXPIREAT", new_key, new_exp_ms)
redis.call("SADD", user_key, new_jti)

return {3}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// Record is one refresh token ledger entry.
type Record struct {
	JTI        string
	UserID     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy string
}

// Ledger is the Redis-backed refresh token ledger. It is safe for concurrent
// use.
type Ledger struct {
	redis     redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// New creates a [Ledger] backed by the given Redis client. prefix sets the
// key namespace; opTimeout bounds every Redis round-trip.
func New(redisClient redis.UniversalClient, prefix string, opTimeout time.Duration) *Ledger {
	if prefix == "" {
		prefix = "rtl"
	}
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}

	return &Ledger{
		redis:     redisClient,
		prefix:    prefix,
		opTimeout: opTimeout,
	}
}

func (l *Ledger) recordKey(jti string) string {
	return l.prefix + ":t:" + jti
}

func (l *Ledger) userKey(userID string) string {
	return l.prefix + ":u:" + userID
}

func (l *Ledger) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.opTimeout)
}

// Insert writes a fresh record and indexes it under the owning user. Called
// once per login-issued token; rotation inserts its successor atomically
// inside [Ledger.Rotate] instead.
func (l *Ledger) Insert(ctx context.Context, rec Record) error {
	ctx, cancel := l.opContext(ctx)
	defer cancel()

	key := l.recordKey(rec.JTI)
	userKey := l.userKey(rec.UserID)

	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user", rec.UserID,
			"iat", strconv.FormatInt(rec.IssuedAt.UnixMilli(), 10),
			"exp", strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
			"revoked", "0",
			"replaced_by", "",
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt)
		pipe.SAdd(ctx, userKey, rec.JTI)
		pipe.Expire(ctx, userKey, userSetTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Lookup returns the record for jti, or [ErrNotFound].
func (l *Ledger) Lookup(ctx context.Context, jti string) (*Record, error) {
	ctx, cancel := l.opContext(ctx)
	defer cancel()

	fields, err := l.redis.HGetAll(ctx, l.recordKey(jti)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return parseRecord(jti, fields)
}

// Rotate atomically consumes the record for oldJTI and inserts next in its
// place. Exactly one concurrent caller wins; the rest observe
// [ErrReuseDetected]. The consumed record stays behind, revoked and pointing
// at its successor, until its original expiry.
func (l *Ledger) Rotate(ctx context.Context, oldJTI string, next Record) error {
	ctx, cancel := l.opContext(ctx)
	defer cancel()

	result, err := rotateLua.Run(
		ctx,
		l.redis,
		[]string{l.recordKey(oldJTI), l.recordKey(next.JTI), l.userKey(next.UserID)},
		time.Now().UnixMilli(),
		oldJTI,
		next.JTI,
		next.UserID,
		next.IssuedAt.UnixMilli(),
		next.ExpiresAt.UnixMilli(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusExpired:
		return ErrExpired
	case rotateStatusReuse:
		return ErrReuseDetected
	case rotateStatusRotated:
		return nil
	case rotateStatusCorrupt:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, code)
	}
}

// Revoke marks the record for jti revoked. Missing records are not an error;
// the caller's intent (this token must not rotate again) already holds.
func (l *Ledger) Revoke(ctx context.Context, jti string) error {
	ctx, cancel := l.opContext(ctx)
	defer cancel()

	if err := revokeLua.Run(ctx, l.redis, []string{l.recordKey(jti)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// RevokeFamily revokes every outstanding refresh token indexed for userID and
// returns how many records were marked. This is the reuse-detection response:
// once one member of the family is replayed, none of them can be trusted.
//
// The scan is not atomic with respect to concurrent inserts; a token issued
// while the sweep runs survives. That is acceptable because the insert either
// came from the winning rotation (already revoked here) or from a fresh login
// with new credentials.
func (l *Ledger) RevokeFamily(ctx context.Context, userID string) (int, error) {
	ctx, cancel := l.opContext(ctx)
	defer cancel()

	jtis, err := l.redis.SMembers(ctx, l.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(jtis) == 0 {
		return 0, nil
	}

	existsCmds := make([]*redis.IntCmd, len(jtis))
	pipe := l.redis.Pipeline()
	for i, jti := range jtis {
		existsCmds[i] = pipe.Exists(ctx, l.recordKey(jti))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(jtis))
	stale := make([]interface{}, 0)
	for i, jti := range jtis {
		if existsCmds[i].Val() > 0 {
			live = append(live, jti)
		} else {
			stale = append(stale, jti)
		}
	}

	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, jti := range live {
			pipe.HSet(ctx, l.recordKey(jti), "revoked", "1")
		}
		if len(stale) > 0 {
			pipe.SRem(ctx, l.userKey(userID), stale...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return len(live), nil
}

// ActiveCount returns how many indexed records for userID still exist and are
// not revoked. Used by security reporting, not by the refresh path.
func (l *Ledger) ActiveCount(ctx context.Context, userID string) (int, error) {
	ctx, cancel := l.opContext(ctx)
	defer cancel()

	jtis, err := l.redis.SMembers(ctx, l.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count := 0
	for _, jti := range jtis {
		revoked, err := l.redis.HGet(ctx, l.recordKey(jti), "revoked").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if revoked == "0" {
			count++
		}
	}

	return count, nil
}

func parseRecord(jti string, fields map[string]string) (*Record, error) {
	iat, err := strconv.ParseInt(fields["iat"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed iat", ErrRedisUnavailable)
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed exp", ErrRedisUnavailable)
	}

	return &Record{
		JTI:        jti,
		UserID:     fields["user"],
		IssuedAt:   time.UnixMilli(iat),
		ExpiresAt:  time.UnixMilli(exp),
		Revoked:    fields["revoked"] == "1",
		ReplacedBy: fields["replaced_by"],
	}, nil
}
