package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] bucket; ARGV: capacity, refill ms, now ms, ttl ms. Returns 1 when a token was taken.
var tokenBucket = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local add = math.floor(math.max(0, now - ts) / refill)
if add > 0 then
  tokens = math.min(capacity, tokens + add)
  ts = ts + add * refill
end
if tokens >= capacity then
  ts = now
end

local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], ttl)
return allowed
`)

// Redis keeps the buckets in Redis so every instance shares them. Idle buckets expire by TTL.
type Redis struct {
	client   redis.Scripter
	prefix   string
	capacity int
	refill   time.Duration
	idleTTL  time.Duration
	now      func() time.Time
}

func NewRedis(client redis.Scripter, capacity int, refill, idleTTL time.Duration) *Redis {
	return &Redis{
		client:   client,
		prefix:   "ninex:rl:",
		capacity: capacity,
		refill:   refill,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := tokenBucket.Run(ctx, r.client, []string{r.prefix + key},
		r.capacity,
		r.refill.Milliseconds(),
		r.now().UnixMilli(),
		r.idleTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, 0, fmt.Errorf("redis token bucket: %w", err)
	}
	if res == 1 {
		return true, 0, nil
	}
	return false, r.refill, nil
}

// ConnectRedis opens a client and pings it once.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Printf("[ratelimit] connected to redis addr=%s db=%d", addr, db)
	return rdb, nil
}
