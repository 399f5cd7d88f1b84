package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrSessionNotFound is returned when the ledger has no entry for a token digest.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the entry exists but its expiry has passed.
	ErrSessionExpired = errors.New("session expired")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRotated  int64 = 3
	rotateStatusInvalid  int64 = 4
)

// Extends the key TTL so the hash outlives its longest session.
const addSessionScript = `
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
local want = tonumber(ARGV[3]) - tonumber(ARGV[4])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < want then
  redis.call("PEXPIRE", KEYS[1], want)
end
return 1
`

const rotateSessionScript = `
local data = redis.call("HGET", KEYS[1], ARGV[1])
if not data then
  return 0
end
local sep = string.find(data, "|", 1, true)
if not sep then
  redis.call("HDEL", KEYS[1], ARGV[1])
  return 4
end
local exp = tonumber(string.sub(data, 1, sep - 1))
local now = tonumber(ARGV[4])
if not exp then
  redis.call("HDEL", KEYS[1], ARGV[1])
  return 4
end
redis.call("HDEL", KEYS[1], ARGV[1])
if exp <= now then
  return 1
end
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
local want = tonumber(ARGV[5]) - now
local ttl = redis.call("PTTL", KEYS[1])
if ttl < want then
  redis.call("PEXPIRE", KEYS[1], want)
end
return 3
`

const removeAllScript = `
local n = redis.call("HLEN", KEYS[1])
redis.call("DEL", KEYS[1])
return n
`

const pruneScript = `
local entries = redis.call("HGETALL", KEYS[1])
local now = tonumber(ARGV[1])
local removed = 0
for i = 1, #entries, 2 do
  local data = entries[i + 1]
  local sep = string.find(data, "|", 1, true)
  local exp = nil
  if sep then
    exp = tonumber(string.sub(data, 1, sep - 1))
  end
  if not exp or exp <= now then
    redis.call("HDEL", KEYS[1], entries[i])
    removed = removed + 1
  end
end
return removed
`

var (
	addSessionLua    = redis.NewScript(addSessionScript)
	rotateSessionLua = redis.NewScript(rotateSessionScript)
	removeAllLua     = redis.NewScript(removeAllScript)
	pruneLua         = redis.NewScript(pruneScript)
)

// Ledger stores refresh-token sessions in one Redis hash per account.
type Ledger struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewLedger returns a Ledger writing under prefix. A nil now uses time.Now.
//
//	Docs: session/doc.go
func NewLedger(client redis.UniversalClient, prefix string, now func() time.Time) *Ledger {
	if prefix == "" {
		prefix = "acs"
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{redis: client, prefix: prefix, now: now}
}

func (l *Ledger) key(accountID string) string {
	return l.prefix + ":" + accountID
}

// Add records a new session.
//
//	Performance: 1 Lua EVALSHA (HSET + PTTL + PEXPIRE).
func (l *Ledger) Add(ctx context.Context, s *Session) error {
	if s == nil || s.AccountID == "" || s.TokenDigest == "" {
		return errors.New("session: account id and token digest required")
	}
	now := l.now()
	if s.Expired(now) {
		return ErrSessionExpired
	}
	value, err := Encode(s)
	if err != nil {
		return err
	}

	err = addSessionLua.Run(ctx, l.redis, []string{l.key(s.AccountID)},
		s.TokenDigest, value, s.ExpiresAt.UnixMilli(), now.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Lookup returns the session for digest if it exists and has not expired.
// Expired entries are removed on sight.
//
//	Performance: 1 HGET (+1 HDEL when expired).
func (l *Ledger) Lookup(ctx context.Context, accountID, digest string) (*Session, error) {
	value, err := l.redis.HGet(ctx, l.key(accountID), digest).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s, err := Decode(value)
	if err != nil {
		_ = l.redis.HDel(ctx, l.key(accountID), digest).Err()
		return nil, err
	}
	s.AccountID = accountID
	s.TokenDigest = digest

	if s.Expired(l.now()) {
		_ = l.redis.HDel(ctx, l.key(accountID), digest).Err()
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Rotate atomically replaces the session identified by oldDigest with next.
// It fails with ErrSessionNotFound when the old entry is absent (already
// rotated, logged out, or never issued) and ErrSessionExpired when it lapsed.
//
//	Performance: 1 Lua EVALSHA.
//	Security: a refresh token can be rotated at most once.
func (l *Ledger) Rotate(ctx context.Context, accountID, oldDigest string, next *Session) error {
	if next == nil || next.TokenDigest == "" {
		return errors.New("session: next session requires a token digest")
	}
	next.AccountID = accountID
	value, err := Encode(next)
	if err != nil {
		return err
	}

	code, err := rotateSessionLua.Run(ctx, l.redis, []string{l.key(accountID)},
		oldDigest, next.TokenDigest, value, l.now().UnixMilli(), next.ExpiresAt.UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrSessionNotFound
	case rotateStatusExpired:
		return ErrSessionExpired
	case rotateStatusInvalid:
		return ErrCorruptSession
	default:
		return fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, code)
	}
}

// Remove deletes one session. Removing an absent session is not an error.
//
//	Performance: 1 HDEL.
func (l *Ledger) Remove(ctx context.Context, accountID, digest string) (bool, error) {
	n, err := l.redis.HDel(ctx, l.key(accountID), digest).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// RemoveAll deletes every session of the account and reports how many existed.
//
//	Performance: 1 Lua EVALSHA (HLEN + DEL).
func (l *Ledger) RemoveAll(ctx context.Context, accountID string) (int, error) {
	n, err := removeAllLua.Run(ctx, l.redis, []string{l.key(accountID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// List returns the live sessions of an account, oldest first.
//
//	Performance: 1 HGETALL.
func (l *Ledger) List(ctx context.Context, accountID string) ([]Session, error) {
	entries, err := l.redis.HGetAll(ctx, l.key(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := l.now()
	out := make([]Session, 0, len(entries))
	for digest, value := range entries {
		s, err := Decode(value)
		if err != nil || s.Expired(now) {
			continue
		}
		s.AccountID = accountID
		s.TokenDigest = digest
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Count returns the number of live sessions of an account.
func (l *Ledger) Count(ctx context.Context, accountID string) (int, error) {
	sessions, err := l.List(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// Prune drops expired or undecodable entries and reports how many were removed.
//
//	Performance: 1 Lua EVALSHA, O(sessions of the account).
func (l *Ledger) Prune(ctx context.Context, accountID string) (int, error) {
	n, err := pruneLua.Run(ctx, l.redis, []string{l.key(accountID)}, l.now().UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Ping measures a Redis round trip.
func (l *Ledger) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
