package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/util"
)

// RedisConfig holds connection settings for the shared cache tier.
type RedisConfig struct {
	// Enabled controls whether the shared tier is active.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr" mapstructure:"addr"`
	// Password is the Redis server password.
	Password string `yaml:"password" mapstructure:"password"`
	// DB is the Redis database number.
	DB int `yaml:"db" mapstructure:"db"`
	// KeyPrefix namespaces every key written by this store.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
	// PoolSize is the maximum number of socket connections.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`
	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *RedisConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "gatekit"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// RedisStore is an optional shared byte-payload cache tier backed by Redis.
// The gateway consults it after the in-process tier; redis errors are
// logged and treated as misses (fail-open).
type RedisStore struct {
	rdb *goredis.Client
	cfg RedisConfig
	log *logger.Logger
}

// NewRedisStore creates a RedisStore from config.
func NewRedisStore(cfg RedisConfig, log *logger.Logger) (*RedisStore, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis cache tier is disabled")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	log = log.WithComponent("cache.redis")
	auth := "none"
	if cfg.Password != "" {
		auth = util.MaskSecret(cfg.Password, 2)
	}
	log.Info("shared cache tier configured", logger.Fields(
		"addr", cfg.Addr,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
		"auth", auth,
	))
	return &RedisStore{rdb: rdb, cfg: cfg, log: log}, nil
}

func (s *RedisStore) fullKey(key string) string {
	return s.cfg.KeyPrefix + ":" + key
}

// Ping verifies the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Get returns the payload for key. A missing key or a redis error both
// read as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.rdb.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.log.Warn("shared cache read failed", logger.Fields(
				"key", key,
				logger.FieldError, err.Error(),
			))
		}
		return nil, false
	}
	return raw, true
}

// Set stores payload under key with the given TTL. Errors are logged and
// swallowed; the shared tier is best-effort.
func (s *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := s.rdb.Set(ctx, s.fullKey(key), payload, ttl).Err(); err != nil {
		s.log.Warn("shared cache write failed", logger.Fields(
			"key", key,
			logger.FieldError, err.Error(),
		))
	}
}

// Invalidate removes the entry for key.
func (s *RedisStore) Invalidate(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, s.fullKey(key)).Err(); err != nil {
		s.log.Warn("shared cache invalidation failed", logger.Fields(
			"key", key,
			logger.FieldError, err.Error(),
		))
	}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
