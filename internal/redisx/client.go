package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Claim sets key to a pending marker if it is absent. It returns true when the
// caller now owns the key, false when someone else claimed it first.
func Claim(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, pendingMarker, ttl).Result()
}

// Resolve reads a claimed key. pending is true while the owner has not stored
// its result yet; found is false when the key does not exist.
func Resolve(ctx context.Context, rdb *redis.Client, key string) (value string, pending, found bool, err error) {
	v, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, false, nil
	}
	if err != nil {
		return "", false, false, err
	}
	return v, v == pendingMarker, true, nil
}

// MarkDone records that the work behind key has completed.
func MarkDone(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) error {
	return rdb.Set(ctx, key, doneMarker, ttl).Err()
}

// IsDone reports whether key carries a completion marker. Any other value,
// including a pending claim left by a crashed worker, reads as not done.
func IsDone(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	v, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == doneMarker, nil
}
