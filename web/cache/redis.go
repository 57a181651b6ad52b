// Package cache holds the Redis client used for short-lived counters such as
// login throttling. An embedded miniredis is started when no address is set.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/taskboard/taskboard/logger"
)

var (
	client     *redis.Client
	miniRedis  *miniredis.Miniredis
	isEmbedded = true
)

var (
	errNotInitialized = errors.New("redis client not initialized")

	// ErrMiss is returned by Get when the key does not exist.
	ErrMiss = errors.New("cache miss")
)

// InitRedis connects to redisAddr, or starts an embedded server when it is empty.
func InitRedis(ctx context.Context, redisAddr string) error {
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start embedded redis: %w", err)
		}
		miniRedis = mr
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		isEmbedded = true
		logger.Info("embedded redis started on", mr.Addr())
		return nil
	}

	client = redis.NewClient(&redis.Options{Addr: redisAddr})
	isEmbedded = false
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", redisAddr, err)
	}
	logger.Info("connected to redis at", redisAddr)
	return nil
}

func GetClient() *redis.Client {
	return client
}

func IsEmbedded() bool {
	return isEmbedded
}

func Close() error {
	var err error
	if client != nil {
		err = client.Close()
		client = nil
	}
	if miniRedis != nil {
		miniRedis.Close()
		miniRedis = nil
	}
	return err
}

// IncrWindow increments key and starts its expiry window on the first hit.
// It returns the new count and the time left in the window.
func IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if client == nil {
		return 0, 0, errNotInitialized
	}
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return count, 0, err
		}
		return count, window, nil
	}
	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		return count, 0, err
	}
	if ttl < 0 {
		// key lost its expiry
		_ = client.Expire(ctx, key, window).Err()
		ttl = window
	}
	return count, ttl, nil
}

func Delete(ctx context.Context, key string) error {
	if client == nil {
		return errNotInitialized
	}
	return client.Del(ctx, key).Err()
}

// DeletePrefix removes key and every key of the form key:<suffix>.
func DeletePrefix(ctx context.Context, key string) error {
	if client == nil {
		return errNotInitialized
	}
	keys := []string{key}
	iter := client.Scan(ctx, 0, key+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return client.Del(ctx, keys...).Err()
}

func Exists(ctx context.Context, key string) (bool, error) {
	if client == nil {
		return false, errNotInitialized
	}
	count, err := client.Exists(ctx, key).Result()
	return count > 0, err
}

// Set stores value under key for ttl.
func Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if client == nil {
		return errNotInitialized
	}
	return client.Set(ctx, key, value, ttl).Err()
}

// Get returns the bytes stored under key, or ErrMiss.
func Get(ctx context.Context, key string) ([]byte, error) {
	if client == nil {
		return nil, errNotInitialized
	}
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}
