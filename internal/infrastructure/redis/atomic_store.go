package redis

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/pkg/errors"
)

// Every operation below runs as a single server-side script. The store's atomic
// execution is the sole ordering authority between concurrent callers; handler
// code never takes in-process locks for these concerns.

var slidingWindowScript = redis.NewScript(`
local key, window, limit, now = KEYS[1], tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
local member = ARGV[4]
local clearBefore = now - window * 1000

redis.call('ZREMRANGEBYSCORE', key, 0, clearBefore)
local current = redis.call('ZCARD', key)

if current < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window + 1)
    return {1, limit - current - 1}
end
return {0, 0}
`)

var tokenBucketScript = redis.NewScript(`
local key, rate, capacity, now = KEYS[1], tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local lastRefill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - lastRefill)
tokens = math.min(capacity, tokens + (elapsed * rate / 1000))

if tokens >= 1 then
    tokens = tokens - 1
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, math.ceil(capacity / rate) + 10)
    return {1, math.floor(tokens)}
else
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, math.ceil(capacity / rate) + 10)
    return {0, 0}
end
`)

var acquireLockScript = redis.NewScript(`
local key, identifier, ttl = KEYS[1], ARGV[1], tonumber(ARGV[2])
local current = redis.call('HGET', key, 'owner')

if current == false then
    redis.call('HMSET', key, 'owner', identifier, 'count', 1)
    redis.call('EXPIRE', key, ttl)
    return 1
elseif current == identifier then
    local count = redis.call('HINCRBY', key, 'count', 1)
    redis.call('EXPIRE', key, ttl)
    return count
else
    return 0
end
`)

var releaseLockScript = redis.NewScript(`
local key, identifier = KEYS[1], ARGV[1]
local current = redis.call('HGET', key, 'owner')

if current == identifier then
    local count = redis.call('HINCRBY', key, 'count', -1)
    if count <= 0 then
        redis.call('DEL', key)
        return 0
    end
    return count
end
return -1
`)

var boundedCounterScript = redis.NewScript(`
local key, delta, ttl, max_val = KEYS[1], tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
local current = tonumber(redis.call('GET', key)) or 0
local new_val = current + delta

if max_val > 0 and new_val > max_val then
    return {0, current}
end

redis.call('SET', key, new_val, 'EX', ttl)
return {1, new_val}
`)

var delayQueuePopScript = redis.NewScript(`
local queue_key, now, limit = KEYS[1], tonumber(ARGV[1]), tonumber(ARGV[2])
local items = redis.call('ZRANGEBYSCORE', queue_key, 0, now, 'LIMIT', 0, limit)

if #items > 0 then
    redis.call('ZREM', queue_key, unpack(items))
    return items
end
return {}
`)

var bloomFilterScript = redis.NewScript(`
local key, item, hash_count, bit_size = KEYS[1], ARGV[1], tonumber(ARGV[2]), tonumber(ARGV[3])
local exists = true

for i = 1, hash_count do
    local hash = redis.sha1hex(item .. i)
    local pos = tonumber(string.sub(hash, 1, 8), 16) % bit_size
    if redis.call('GETBIT', key, pos) == 0 then
        exists = false
    end
    redis.call('SETBIT', key, pos, 1)
end
if exists then
    return 1
end
return 0
`)

var cacheGuardScript = redis.NewScript(`
local cache_key, lock_key, value, ttl, lock_ttl = KEYS[1], KEYS[2], ARGV[1], tonumber(ARGV[2]), tonumber(ARGV[3])

if redis.call('SET', lock_key, '1', 'NX', 'EX', lock_ttl) then
    redis.call('SET', cache_key, value, 'EX', ttl)
    redis.call('DEL', lock_key)
    return 1
end
return redis.call('EXISTS', cache_key)
`)

type atomicStore struct {
	rdb *redis.Client
	// now is injectable for tests.
	now func() time.Time
}

// NewAtomicStore creates the script-backed atomic operation store.
func NewAtomicStore(rdb *redis.Client) service.AtomicStore {
	return &atomicStore{rdb: rdb, now: time.Now}
}

// NewAtomicStoreWithClock creates a store with a fixed clock. Intended for tests.
func NewAtomicStoreWithClock(rdb *redis.Client, now func() time.Time) service.AtomicStore {
	return &atomicStore{rdb: rdb, now: now}
}

func (s *atomicStore) SlidingWindowLimit(ctx context.Context, key string, window time.Duration, limit int) (service.RateLimitResult, error) {
	res, err := slidingWindowScript.Run(ctx, s.rdb, []string{key},
		int64(window.Seconds()), limit, s.now().UnixMilli(), uuid.NewString()).Slice()
	if err != nil {
		return service.RateLimitResult{}, errors.Internal(err)
	}
	allowed, remaining, ok := parsePair(res)
	if !ok {
		return service.RateLimitResult{}, errors.ErrInternal.WithMessage("unexpected sliding window script result")
	}
	return service.RateLimitResult{Allowed: allowed == 1, Remaining: remaining}, nil
}

func (s *atomicStore) TokenBucketLimit(ctx context.Context, key string, rate float64, capacity int) (service.RateLimitResult, error) {
	res, err := tokenBucketScript.Run(ctx, s.rdb, []string{key},
		rate, capacity, s.now().UnixMilli()).Slice()
	if err != nil {
		return service.RateLimitResult{}, errors.Internal(err)
	}
	allowed, remaining, ok := parsePair(res)
	if !ok {
		return service.RateLimitResult{}, errors.ErrInternal.WithMessage("unexpected token bucket script result")
	}
	return service.RateLimitResult{Allowed: allowed == 1, Remaining: remaining}, nil
}

func (s *atomicStore) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (int64, error) {
	count, err := acquireLockScript.Run(ctx, s.rdb, []string{key},
		owner, ttlSeconds(ttl)).Int64()
	if err != nil {
		return 0, errors.Internal(err)
	}
	return count, nil
}

func (s *atomicStore) ReleaseLock(ctx context.Context, key, owner string) (int64, error) {
	count, err := releaseLockScript.Run(ctx, s.rdb, []string{key}, owner).Int64()
	if err != nil {
		return -1, errors.Internal(err)
	}
	return count, nil
}

func (s *atomicStore) BoundedCounter(ctx context.Context, key string, delta int64, ttl time.Duration, max int64) (service.CounterResult, error) {
	res, err := boundedCounterScript.Run(ctx, s.rdb, []string{key},
		delta, ttlSeconds(ttl), max).Slice()
	if err != nil {
		return service.CounterResult{}, errors.Internal(err)
	}
	accepted, value, ok := parsePair(res)
	if !ok {
		return service.CounterResult{}, errors.ErrInternal.WithMessage("unexpected counter script result")
	}
	return service.CounterResult{Accepted: accepted == 1, Value: value}, nil
}

func (s *atomicStore) DelayQueueAdd(ctx context.Context, key, item string, delay time.Duration) error {
	executeAt := s.now().Add(delay).UnixMilli()
	if err := s.rdb.ZAdd(ctx, key, redis.Z{Score: float64(executeAt), Member: item}).Err(); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (s *atomicStore) DelayQueuePop(ctx context.Context, key string, limit int) ([]string, error) {
	res, err := delayQueuePopScript.Run(ctx, s.rdb, []string{key},
		s.now().UnixMilli(), limit).Slice()
	if err != nil {
		return nil, errors.Internal(err)
	}
	items := make([]string, 0, len(res))
	for _, item := range res {
		if str, ok := item.(string); ok {
			items = append(items, str)
		}
	}
	return items, nil
}

func (s *atomicStore) BloomCheckAndAdd(ctx context.Context, key, item string, hashCount, bitSize int) (bool, error) {
	res, err := bloomFilterScript.Run(ctx, s.rdb, []string{key},
		item, hashCount, bitSize).Int64()
	if err != nil {
		return false, errors.Internal(err)
	}
	return res == 1, nil
}

func (s *atomicStore) CacheGuard(ctx context.Context, cacheKey, lockKey, value string, cacheTTL, lockTTL time.Duration) (bool, error) {
	res, err := cacheGuardScript.Run(ctx, s.rdb, []string{cacheKey, lockKey},
		value, ttlSeconds(cacheTTL), ttlSeconds(lockTTL)).Int64()
	if err != nil {
		return false, errors.Internal(err)
	}
	return res > 0, nil
}

// parsePair extracts the {flag, value} shape most scripts return.
func parsePair(res []interface{}) (int64, int64, bool) {
	if len(res) < 2 {
		return 0, 0, false
	}
	flag, ok1 := res[0].(int64)
	value, ok2 := res[1].(int64)
	return flag, value, ok1 && ok2
}

// ttlSeconds rounds a duration up to whole seconds so sub-second TTLs never
// collapse to zero.
func ttlSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
