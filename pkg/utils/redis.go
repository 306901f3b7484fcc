package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls the client. Only Addr is required.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout time.Duration
	// IOTimeout applies to both reads and writes.
	IOTimeout   time.Duration
	PoolSize    int
	PingTimeout time.Duration
}

func (c RedisConfig) options() *redis.Options {
	opts := &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     20,
		PoolTimeout:  time.Second,
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.IOTimeout > 0 {
		opts.ReadTimeout, opts.WriteTimeout = c.IOTimeout, c.IOTimeout
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	return opts
}

// OpenRedis connects and pings once; a failed ping closes the client.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	rdb := redis.NewClient(cfg.options())
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// KEYS[1] counter, ARGV[1] limit, ARGV[2] ttl ms. Returns 1 when a slot is
// taken. Every INCR refreshes a missing TTL so a crashed holder's slot
// eventually expires.
var inflightAcquire = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var inflightRelease = redis.NewScript(`
if redis.call('DECR', KEYS[1]) <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// InflightCap limits concurrent holders per identity, shared across
// processes through one Redis counter per identity.
type InflightCap struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	ttl    time.Duration
}

// NewInflightCap keys counters as prefix+id. ttl bounds how long a slot
// outlives a holder that never released it.
func NewInflightCap(rdb redis.Scripter, prefix string, limit int, ttl time.Duration) (*InflightCap, error) {
	switch {
	case rdb == nil:
		return nil, errors.New("redis client is nil")
	case limit <= 0:
		return nil, errors.New("limit must be > 0")
	case ttl <= 0:
		return nil, errors.New("ttl must be > 0")
	}
	return &InflightCap{rdb: rdb, prefix: prefix, limit: limit, ttl: ttl}, nil
}

func (c *InflightCap) Limit() int { return c.limit }

// Acquire takes a slot for id. ok is false when id already holds limit
// slots. The caller must Release after a successful Acquire.
func (c *InflightCap) Acquire(ctx context.Context, id string) (ok bool, err error) {
	if id == "" {
		return false, errors.New("inflight id is required")
	}
	n, err := inflightAcquire.Run(ctx, c.rdb, []string{c.prefix + id}, c.limit, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("inflight acquire: %w", err)
	}
	return n == 1, nil
}

func (c *InflightCap) Release(ctx context.Context, id string) error {
	if err := inflightRelease.Run(ctx, c.rdb, []string{c.prefix + id}).Err(); err != nil {
		return fmt.Errorf("inflight release: %w", err)
	}
	return nil
}
