package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces etag records in Redis.
const KeyPrefix = "gh:etag:"

// Hash fields of a record.
const (
	fieldETag      = "etag"
	fieldPageNo    = "page_no"
	fieldUsedCount = "used_count"
)

// recordHitScript increments used_count only when the record exists.
const recordHitScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
end
return -1
`

// Redis stores one hash per base URL.
type Redis struct {
	redis redis.Cmdable
}

// NewRedis creates a Redis-backed record store.
func NewRedis(client redis.Cmdable) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &Redis{redis: client}
}

// Key returns the Redis key holding the record for baseURL.
func Key(baseURL string) string {
	return KeyPrefix + baseURL
}

// Lookup retrieves the record for baseURL.
// Returns ErrNotFound if the hash does not exist.
func (r *Redis) Lookup(ctx context.Context, baseURL string) (*Record, error) {
	fields, err := r.redis.HGetAll(ctx, Key(baseURL)).Result()
	if err != nil {
		StoreErrors.WithLabelValues("redis", "lookup").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec := &Record{
		BaseURL: baseURL,
		ETag:    fields[fieldETag],
	}
	if rec.PageNumber, err = strconv.Atoi(fields[fieldPageNo]); err != nil {
		StoreErrors.WithLabelValues("redis", "lookup").Inc()
		return nil, fmt.Errorf("%w: page_no: %v", ErrInvalidRecord, err)
	}
	if used, ok := fields[fieldUsedCount]; ok {
		if rec.UsedCount, err = strconv.Atoi(used); err != nil {
			StoreErrors.WithLabelValues("redis", "lookup").Inc()
			return nil, fmt.Errorf("%w: used_count: %v", ErrInvalidRecord, err)
		}
	}

	return rec, nil
}

// Upsert writes etag and page_no in a single HSET so they change together.
// used_count is untouched.
func (r *Redis) Upsert(ctx context.Context, baseURL string, pageNumber int, etag string) error {
	err := r.redis.HSet(ctx, Key(baseURL),
		fieldETag, etag,
		fieldPageNo, pageNumber,
	).Err()
	if err != nil {
		StoreErrors.WithLabelValues("redis", "upsert").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// RecordHit increments used_count by one if the record exists.
func (r *Redis) RecordHit(ctx context.Context, baseURL string) error {
	err := r.redis.Eval(ctx, recordHitScript, []string{Key(baseURL)}, fieldUsedCount).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		StoreErrors.WithLabelValues("redis", "record_hit").Inc()
		return fmt.Errorf("redis record hit: %w", err)
	}
	return nil
}
