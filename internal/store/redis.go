package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/link-preview/internal/shortener"
)

// Record hashes live under "record:<code>". A placeholder is a hash holding
// only the code field; committed records also carry url_key. The URL key index
// maps "urlkey:<key>" to the owning code.
const (
	recordPrefix = "record:"
	urlKeyPrefix = "urlkey:"
)

const (
	commitNotReserved int64 = iota
	commitCreated
	commitOwned
)

// KEYS[1] record hash, KEYS[2] url key index. ARGV[1] code, ARGV[2:] fields.
var commitScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'code') == 0 or redis.call('HEXISTS', KEYS[1], 'url_key') == 1 then
	return {0}
end
local owner = redis.call('GET', KEYS[2])
if owner then
	redis.call('DEL', KEYS[1])
	return {2, owner}
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return {1}
`)

// KEYS[1] record hash. ARGV fields.
var updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'url_key') == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// KEYS[1] record hash.
var releaseScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'url_key') == 0 then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore is a Redis implementation of shortener.Store. Conditional writes
// run as Lua scripts so each check-and-write is atomic.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed record store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Reserve(ctx context.Context, code shortener.Code) error {
	ok, err := r.client.HSetNX(ctx, recordPrefix+string(code), "code", string(code)).Result()
	if err != nil {
		return err
	}

	if !ok {
		return shortener.ErrCodeExists
	}

	return nil
}

func (r *RedisStore) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	fields, err := r.client.HGetAll(ctx, recordPrefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if _, ok := fields["url_key"]; !ok {
		return nil, shortener.ErrNotFound
	}

	return decodeRecordHash(fields)
}

func (r *RedisStore) FindByURLKey(ctx context.Context, key shortener.URLKey) ([]*shortener.Record, error) {
	code, err := r.client.Get(ctx, urlKeyPrefix+string(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, err
	}

	record, err := r.Get(ctx, shortener.Code(code))
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return []*shortener.Record{record}, nil
}

func (r *RedisStore) Commit(ctx context.Context, record *shortener.Record) (*shortener.Record, bool, error) {
	keys := []string{recordPrefix + string(record.Code), urlKeyPrefix + string(record.URLKey)}
	args := append([]any{string(record.Code)}, encodeRecordHash(record)...)

	res, err := commitScript.Run(ctx, r.client, keys, args...).Slice()
	if err != nil {
		return nil, false, err
	}

	status, _ := res[0].(int64)

	switch status {
	case commitCreated:
		stored := *record

		return &stored, true, nil
	case commitOwned:
		owner, _ := res[1].(string)

		stored, err := r.Get(ctx, shortener.Code(owner))
		if err != nil {
			return nil, false, fmt.Errorf("load url key owner %s: %w", owner, err)
		}

		return stored, false, nil
	default:
		return nil, false, shortener.ErrNotReserved
	}
}

func (r *RedisStore) Release(ctx context.Context, code shortener.Code) error {
	return releaseScript.Run(ctx, r.client, []string{recordPrefix + string(code)}).Err()
}

func (r *RedisStore) Update(
	ctx context.Context, code shortener.Code, update shortener.RecordUpdate,
) (*shortener.Record, error) {
	args := []any{
		"title", update.Title,
		"description", update.Description,
		"image_url", update.ImageURL,
		"image_screenshot_url", update.ImageScreenshotURL,
		"updated_at", update.UpdatedAt.UnixNano(),
	}

	ok, err := updateScript.Run(ctx, r.client, []string{recordPrefix + string(code)}, args...).Int64()
	if err != nil {
		return nil, err
	}

	if ok == 0 {
		return nil, shortener.ErrNotFound
	}

	return r.Get(ctx, code)
}

func encodeRecordHash(record *shortener.Record) []any {
	return []any{
		"code", string(record.Code),
		"canonical_url", record.CanonicalURL,
		"url_key", string(record.URLKey),
		"title", record.Title,
		"description", record.Description,
		"image_url", record.ImageURL,
		"image_screenshot_url", record.ImageScreenshotURL,
		"created_at", record.CreatedAt.UnixNano(),
		"updated_at", record.UpdatedAt.UnixNano(),
	}
}

func decodeRecordHash(fields map[string]string) (*shortener.Record, error) {
	createdAt, err := parseNanos(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	updatedAt, err := parseNanos(fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}

	return &shortener.Record{
		Code:               shortener.Code(fields["code"]),
		CanonicalURL:       fields["canonical_url"],
		URLKey:             shortener.URLKey(fields["url_key"]),
		Title:              fields["title"],
		Description:        fields["description"],
		ImageURL:           fields["image_url"],
		ImageScreenshotURL: fields["image_screenshot_url"],
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

func parseNanos(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	nanos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(0, nanos), nil
}

// Compile-time check.
var _ shortener.Store = (*RedisStore)(nil)
