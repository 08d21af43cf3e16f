package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/timeutil"
)

// QuotaStore keeps one hash per identity with fields daily_count and
// last_reset (unix milliseconds, UTC). Mutations run as Lua scripts so each
// is a single atomic step on the server.
type QuotaStore struct {
	client    goredis.Cmdable
	keyPrefix string
}

// Option configures QuotaStore.
type Option func(*QuotaStore)

// WithKeyPrefix sets the key prefix (default "reviewreply:quota:").
func WithKeyPrefix(prefix string) Option {
	return func(s *QuotaStore) { s.keyPrefix = prefix }
}

// NewQuotaStore wraps a connected client.
func NewQuotaStore(client goredis.Cmdable, opts ...Option) *QuotaStore {
	s := &QuotaStore{
		client:    client,
		keyPrefix: "reviewreply:quota:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QuotaStore) key(identity string) string {
	return s.keyPrefix + identity
}

// resetScript creates the hash if missing and zeroes it when last_reset is
// outside [day_start, day_end).
// KEYS[1] = quota hash
// ARGV[1] = now (unix ms)
// ARGV[2] = day_start (unix ms)
// ARGV[3] = day_end (unix ms)
//
// Returns {daily_count, last_reset}.
var resetScript = goredis.NewScript(`
local key = KEYS[1]
local now_raw = ARGV[1]
local now = tonumber(now_raw)
local day_start = tonumber(ARGV[2])
local day_end = tonumber(ARGV[3])

local last = redis.call("HGET", key, "last_reset")
if not last then
    redis.call("HSET", key, "daily_count", "0", "last_reset", now_raw)
    return {0, now}
end
last = tonumber(last)
if last < day_start or last >= day_end then
    redis.call("HSET", key, "daily_count", "0", "last_reset", now_raw)
    return {0, now}
end
local count = tonumber(redis.call("HGET", key, "daily_count") or "0")
return {count, last}
`)

// incrementScript adds one while daily_count < limit (limit <= 0: unbounded)
// and refreshes last_reset.
// KEYS[1] = quota hash
// ARGV[1] = now (unix ms)
// ARGV[2] = limit
//
// Returns the new count, 0 when refused, -1 when the hash does not exist.
var incrementScript = goredis.NewScript(`
local key = KEYS[1]
local now = ARGV[1]
local limit = tonumber(ARGV[2])

if redis.call("EXISTS", key) == 0 then
    return -1
end
local count = tonumber(redis.call("HGET", key, "daily_count") or "0")
if limit > 0 and count >= limit then
    return 0
end
local n = redis.call("HINCRBY", key, "daily_count", 1)
redis.call("HSET", key, "last_reset", now)
return n
`)

// Read returns the stored record, or a zero record when absent. It never writes.
func (s *QuotaStore) Read(ctx context.Context, identity string) (domain.QuotaRecord, error) {
	vals, err := s.client.HMGet(ctx, s.key(identity), "daily_count", "last_reset").Result()
	if err != nil {
		return domain.QuotaRecord{}, fmt.Errorf("redisstore: read: %w", err)
	}
	rec := domain.QuotaRecord{Identity: identity}
	if vals[0] == nil || vals[1] == nil {
		return rec, nil
	}
	countStr, _ := vals[0].(string)
	lastStr, _ := vals[1].(string)
	count, err := strconv.ParseInt(countStr, 10, 64)
	if err != nil {
		return domain.QuotaRecord{}, fmt.Errorf("redisstore: read daily_count: %w", err)
	}
	last, err := strconv.ParseInt(lastStr, 10, 64)
	if err != nil {
		return domain.QuotaRecord{}, fmt.Errorf("redisstore: read last_reset: %w", err)
	}
	rec.DailyCount = int(count)
	rec.LastReset = time.UnixMilli(last).UTC()
	return rec, nil
}

// ResetIfNewDay normalizes the day boundary in loc, creating the hash if needed.
func (s *QuotaStore) ResetIfNewDay(ctx context.Context, identity string, now time.Time, loc *time.Location) (domain.QuotaRecord, error) {
	start, end := timeutil.DayBounds(now, loc)
	out, err := resetScript.Run(ctx, s.client,
		[]string{s.key(identity)},
		now.UnixMilli(), start.UnixMilli(), end.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return domain.QuotaRecord{}, fmt.Errorf("redisstore: reset: %w", err)
	}
	if len(out) != 2 {
		return domain.QuotaRecord{}, fmt.Errorf("redisstore: reset: unexpected reply %v", out)
	}
	return domain.QuotaRecord{
		Identity:   identity,
		DailyCount: int(out[0]),
		LastReset:  time.UnixMilli(out[1]).UTC(),
	}, nil
}

// Increment adds one below limit; ok is false when the ceiling was hit.
func (s *QuotaStore) Increment(ctx context.Context, identity string, now time.Time, limit int) (int, bool, error) {
	n, err := incrementScript.Run(ctx, s.client,
		[]string{s.key(identity)},
		now.UnixMilli(), limit,
	).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("redisstore: increment: %w", err)
	}
	switch {
	case n > 0:
		return int(n), true, nil
	case n == 0:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("redisstore: increment: no quota record for %q", identity)
	}
}
