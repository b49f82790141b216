// Package cache puts a Redis cache-aside layer in front of a URL store for
// short code lookups. URL records never change once stored, so cached entries
// are never invalidated; they only expire.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturl/internal/entity"
)

const keyPrefix = "shorturl:code:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type urlRepository interface {
	FindByURL(ctx context.Context, originalURL string) (*entity.URL, error)
	FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error)
	Count(ctx context.Context) (int64, error)
	NextShortCode(ctx context.Context) (int64, error)
	Save(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error)
}

type cachedURL struct {
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// URLRepository serves FindByShortCode from Redis when possible and delegates
// everything else to the wrapped store. Redis failures are logged and the
// wrapped store answers instead.
type URLRepository struct {
	next   urlRepository
	client redisClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewURLRepository(next urlRepository, client redisClient, ttl time.Duration, logger *slog.Logger) *URLRepository {
	return &URLRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(shortCode int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, shortCode)
}

func (r *URLRepository) FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error) {
	const op = "adapter.cache.URLRepository.FindByShortCode"

	key := cacheKey(shortCode)

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedURL
		if err := json.Unmarshal(data, &cached); err == nil {
			return &entity.URL{
				OriginalURL: cached.OriginalURL,
				ShortCode:   shortCode,
				CreatedAt:   cached.CreatedAt,
			}, nil
		}
		r.logger.Warn("discarding malformed cache entry", slog.String("op", op), slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("cache read failed", slog.String("op", op), slog.Any("err", err))
	}

	url, err := r.next.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(cachedURL{OriginalURL: url.OriginalURL, CreatedAt: url.CreatedAt})
	if err != nil {
		return url, nil
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", slog.String("op", op), slog.Any("err", err))
	}

	return url, nil
}

func (r *URLRepository) FindByURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	return r.next.FindByURL(ctx, originalURL)
}

func (r *URLRepository) Count(ctx context.Context) (int64, error) {
	return r.next.Count(ctx)
}

func (r *URLRepository) NextShortCode(ctx context.Context) (int64, error) {
	return r.next.NextShortCode(ctx)
}

func (r *URLRepository) Save(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error) {
	return r.next.Save(ctx, originalURL, shortCode)
}
