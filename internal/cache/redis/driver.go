// Package redis provides a Redis implementation of cache.Cache backed by
// go-redis.
//
// Usage:
//
//	md := connection.Metadata{Host: "localhost", Port: 6379, Database: "0"}
//	c, err := redis.New(ctx, md, redis.DefaultOptions())
//	if err != nil { ... }
//	defer c.Close()
//
//	err = c.Set(ctx, "session:42", "payload", 10*time.Minute)
package redis

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"time"

	"github.com/koustreak/roubi/internal/cache"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPort = 6379

// Options are the client settings not carried by connection.Metadata.
type Options struct {
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// DefaultOptions returns the go-redis defaults made explicit.
func DefaultOptions() Options {
	return Options{
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// Driver is a Redis implementation of cache.Cache.
type Driver struct {
	client *goredis.Client
	log    *logger.Logger
}

var _ cache.Cache = (*Driver)(nil)

// New builds a Redis client and pings it before returning.
// md.Database is the numeric db index ("" means 0).
func New(ctx context.Context, md connection.Metadata, opts Options) (*Driver, error) {
	redisOpts, err := clientOptions(md, opts)
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(redisOpts)
	d := &Driver{
		client: client,
		log:    logger.FromContext(ctx).ForAdapter("redis", redisOpts.Addr),
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "redis unreachable", err)
	}

	d.log.Debug("connected")
	return d, nil
}

// clientOptions resolves md into go-redis options. A URI is handed to
// redis.ParseURL untouched.
func clientOptions(md connection.Metadata, opts Options) (*goredis.Options, error) {
	var redisOpts *goredis.Options

	if md.Kind() == connection.KindURI {
		parsed, err := goredis.ParseURL(md.URI)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid redis uri", err)
		}
		redisOpts = parsed
	} else {
		target, err := md.Resolve("redis", defaultPort)
		if err != nil {
			return nil, err
		}
		db := 0
		if target.Database != "" {
			db, err = strconv.Atoi(target.Database)
			if err != nil || db < 0 {
				return nil, errs.Wrap(errs.ErrKindInvalidInput, "redis database must be a non-negative index", err)
			}
		}
		redisOpts = &goredis.Options{
			Addr:     target.Endpoint(),
			Username: target.Username,
			Password: target.Password,
			DB:       db,
		}
	}

	if opts.DialTimeout > 0 {
		redisOpts.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}
	if opts.PoolSize > 0 {
		redisOpts.PoolSize = opts.PoolSize
	}
	// no hidden retries in this layer
	redisOpts.MaxRetries = -1
	return redisOpts, nil
}

// Close releases the connection pool.
func (d *Driver) Close() error {
	if d.client == nil {
		return errs.ErrNotConnected
	}
	err := d.client.Close()
	d.client = nil
	d.log.Debug("closed")
	return mapError(err, "close failed")
}

// Set stores value under key; ttl 0 keeps it forever.
func (d *Driver) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if d.client == nil {
		return errs.ErrNotConnected
	}
	return mapError(d.client.Set(ctx, key, value, ttl).Err(), "set failed")
}

// Get returns the value of key. A missing key is ("", false, nil).
func (d *Driver) Get(ctx context.Context, key string) (string, bool, error) {
	if d.client == nil {
		return "", false, errs.ErrNotConnected
	}
	val, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapError(err, "get failed")
	}
	return val, true, nil
}

// ScanByPattern walks SCAN cursors lazily; nothing is fetched until the
// sequence is ranged over.
func (d *Driver) ScanByPattern(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if d.client == nil {
			yield("", errs.ErrNotConnected)
			return
		}
		it := d.client.Scan(ctx, 0, pattern, 0).Iterator()
		for it.Next(ctx) {
			if !yield(it.Val(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield("", mapError(err, "scan failed"))
		}
	}
}

// Delete removes key.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if d.client == nil {
		return errs.ErrNotConnected
	}
	return mapError(d.client.Del(ctx, key).Err(), "delete failed")
}

// DeleteByPattern scans pattern and deletes each key as it is found.
func (d *Driver) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	for key, err := range d.ScanByPattern(ctx, pattern) {
		if err != nil {
			return removed, err
		}
		n, err := d.client.Del(ctx, key).Result()
		if err != nil {
			return removed, mapError(err, "delete failed")
		}
		removed += n
	}
	return removed, nil
}
