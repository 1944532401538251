package store

import (
	"context"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/link-preview/internal/shortener"
	"go.uber.org/zap"
)

const cachePrefix = "cache:record:"

var (
	cacheEncMode cbor.EncMode
	cacheDecMode cbor.DecMode
)

func init() {
	var err error

	cacheEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	cacheDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// cachedRecord is the CBOR payload stored per code.
type cachedRecord struct {
	Code               string `cbor:"1,keyasint"`
	CanonicalURL       string `cbor:"2,keyasint"`
	URLKey             string `cbor:"3,keyasint"`
	Title              string `cbor:"4,keyasint,omitempty"`
	Description        string `cbor:"5,keyasint,omitempty"`
	ImageURL           string `cbor:"6,keyasint,omitempty"`
	ImageScreenshotURL string `cbor:"7,keyasint,omitempty"`
	CreatedAt          int64  `cbor:"8,keyasint"`
	UpdatedAt          int64  `cbor:"9,keyasint"`
}

// RedisCache wraps a Store with a Redis read-through cache for Get. Dedup
// lookups and conditional writes always go to the underlying store.
type RedisCache struct {
	shortener.Store

	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a new Redis-cached store decorator.
func NewRedisCache(s shortener.Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		Store:  s,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get retrieves a record by its code, checking the cache first.
func (c *RedisCache) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	if record, ok := c.getFromCache(ctx, code); ok {
		return record, nil
	}

	record, err := c.Store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	c.fillCache(ctx, record)

	return record, nil
}

// Commit writes through to the cache when a new record is created.
func (c *RedisCache) Commit(ctx context.Context, record *shortener.Record) (*shortener.Record, bool, error) {
	stored, created, err := c.Store.Commit(ctx, record)
	if err != nil {
		return nil, false, err
	}

	if created {
		c.cacheRecord(ctx, stored)
	}

	return stored, created, nil
}

// Update drops the cached copy before writing and caches the result. The
// result overwrites any copy a concurrent read-through filled in between.
func (c *RedisCache) Update(
	ctx context.Context, code shortener.Code, update shortener.RecordUpdate,
) (*shortener.Record, error) {
	c.Invalidate(ctx, code)

	record, err := c.Store.Update(ctx, code, update)
	if err != nil {
		return nil, err
	}

	c.cacheRecord(ctx, record)

	return record, nil
}

// Invalidate removes the cached copy of code.
func (c *RedisCache) Invalidate(ctx context.Context, code shortener.Code) {
	if err := c.client.Del(ctx, cachePrefix+string(code)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("code", string(code)), zap.Error(err))
	}
}

// Refresh reloads code from the underlying store into the cache.
func (c *RedisCache) Refresh(ctx context.Context, code shortener.Code) error {
	record, err := c.Store.Get(ctx, code)
	if err != nil {
		return err
	}

	c.cacheRecord(ctx, record)

	return nil
}

func (c *RedisCache) getFromCache(ctx context.Context, code shortener.Code) (*shortener.Record, bool) {
	data, err := c.client.Get(ctx, cachePrefix+string(code)).Bytes()
	if err != nil {
		return nil, false
	}

	var cached cachedRecord
	if err := cacheDecMode.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("discarding undecodable cache entry", zap.String("code", string(code)), zap.Error(err))

		return nil, false
	}

	return &shortener.Record{
		Code:               shortener.Code(cached.Code),
		CanonicalURL:       cached.CanonicalURL,
		URLKey:             shortener.URLKey(cached.URLKey),
		Title:              cached.Title,
		Description:        cached.Description,
		ImageURL:           cached.ImageURL,
		ImageScreenshotURL: cached.ImageScreenshotURL,
		CreatedAt:          time.Unix(0, cached.CreatedAt),
		UpdatedAt:          time.Unix(0, cached.UpdatedAt),
	}, true
}

// cacheRecord stores record, replacing any cached copy.
func (c *RedisCache) cacheRecord(ctx context.Context, record *shortener.Record) {
	data, ok := c.encode(record)
	if !ok {
		return
	}

	if err := c.client.Set(ctx, cachePrefix+string(record.Code), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("code", string(record.Code)), zap.Error(err))
	}
}

// fillCache stores a record read from the backing store only if no copy is
// cached yet, so a slow read never replaces the result of a newer write.
func (c *RedisCache) fillCache(ctx context.Context, record *shortener.Record) {
	data, ok := c.encode(record)
	if !ok {
		return
	}

	if err := c.client.SetNX(ctx, cachePrefix+string(record.Code), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache fill failed", zap.String("code", string(record.Code)), zap.Error(err))
	}
}

func (c *RedisCache) encode(record *shortener.Record) ([]byte, bool) {
	data, err := cacheEncMode.Marshal(cachedRecord{
		Code:               string(record.Code),
		CanonicalURL:       record.CanonicalURL,
		URLKey:             string(record.URLKey),
		Title:              record.Title,
		Description:        record.Description,
		ImageURL:           record.ImageURL,
		ImageScreenshotURL: record.ImageScreenshotURL,
		CreatedAt:          record.CreatedAt.UnixNano(),
		UpdatedAt:          record.UpdatedAt.UnixNano(),
	})
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("code", string(record.Code)), zap.Error(err))

		return nil, false
	}

	return data, true
}

// Compile-time check.
var _ shortener.Store = (*RedisCache)(nil)
