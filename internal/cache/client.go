package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/headstart-tech/admissions-api/pkg/metrics"
)

var (
	ErrMiss     = errors.New("cache miss")
	ErrConflict = errors.New("cache key modified during transaction")
	ErrTimeout  = errors.New("cache operation timed out")
)

// setIfAbsent must stay a single script: EXISTS followed by SET from the client races.
var setIfAbsent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

type Config struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client handles caching operations
type Client struct {
	rdb     *redis.Client
	metrics *metrics.Metrics
}

// NewClient parses the URL, applies overrides and pings the server.
func NewClient(cfg Config, m *metrics.Metrics) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	opts.DialTimeout = durationOr(cfg.DialTimeout, 5*time.Second)
	opts.ReadTimeout = durationOr(cfg.ReadTimeout, 3*time.Second)
	opts.WriteTimeout = durationOr(cfg.WriteTimeout, 3*time.Second)

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewFromRedis(rdb, m), nil
}

func NewFromRedis(rdb *redis.Client, m *metrics.Metrics) *Client {
	return &Client{rdb: rdb, metrics: m}
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func (c *Client) Ping(ctx context.Context) error {
	return c.observe("ping", time.Now(), c.rdb.Ping(ctx).Err())
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get returns ErrMiss when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.observe("get", start, nil)
		return nil, ErrMiss
	}
	if err = c.observe("get", start, err); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.observe("set", time.Now(), c.rdb.Set(ctx, key, value, ttl).Err())
}

// SetIfAbsent writes value with ttl only when key holds nothing. Reports whether it wrote.
func (c *Client) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	n, err := setIfAbsent.Run(ctx, c.rdb, []string{key}, value, ttlSeconds(ttl)).Int()
	if err = c.observe("set_if_absent", start, err); err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.observe("expire", time.Now(), c.rdb.Expire(ctx, key, ttl).Err())
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.observe("del", time.Now(), c.rdb.Del(ctx, keys...).Err())
}

func (c *Client) HSet(ctx context.Context, key, field string, value interface{}) error {
	return c.observe("hset", time.Now(), c.rdb.HSet(ctx, key, field, value).Err())
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.observe("hdel", time.Now(), c.rdb.HDel(ctx, key, fields...).Err())
}

func (c *Client) HKeys(ctx context.Context, key string) ([]string, error) {
	start := time.Now()
	fields, err := c.rdb.HKeys(ctx, key).Result()
	if err = c.observe("hkeys", start, err); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	began := time.Now()
	items, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err = c.observe("lrange", began, err); err != nil {
		return nil, err
	}
	return items, nil
}

// AppendWithTTL makes one optimistic attempt at RPUSH + EXPIRE under WATCH.
// A concurrent write to key aborts the attempt with ErrConflict; retrying is up to the caller.
// maxLen > 0 trims the list to its newest maxLen entries.
func (c *Client) AppendWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration, maxLen int64) error {
	start := time.Now()
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, value)
			if maxLen > 0 {
				pipe.LTrim(ctx, key, -maxLen, -1)
			}
			pipe.Expire(ctx, key, ttl)
			return nil
		})
		return err
	}, key)
	return c.observe("append", start, err)
}

func ttlSeconds(ttl time.Duration) int64 {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (c *Client) observe(op string, start time.Time, err error) error {
	err = classify(err)
	if c.metrics != nil {
		status := "ok"
		switch {
		case errors.Is(err, ErrConflict):
			status = "conflict"
		case errors.Is(err, ErrTimeout):
			status = "timeout"
		case err != nil:
			status = "error"
		}
		c.metrics.RedisOperations.WithLabelValues(op, status).Inc()
		c.metrics.RedisLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return err
}

// classify maps driver errors onto the package sentinels, keeping the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
