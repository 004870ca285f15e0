package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imagine-it/storefront/internal/pricing"
)

const maxJitterMinutes = 5

func NewRedisQuoteCache(client *redis.Client, ttl time.Duration) *RedisQuoteCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisQuoteCache{
		client:  client,
		baseTTL: ttl,
	}
}

type RedisQuoteCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisQuoteCache) GetMany(ctx context.Context, ids []int64) (map[int64]pricing.VariantQuote, error) {
	out := make(map[int64]pricing.VariantQuote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = quoteKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var quote pricing.VariantQuote
		if err := json.Unmarshal([]byte(raw), &quote); err != nil {
			// A corrupt entry is a miss; the next fetch overwrites it.
			continue
		}
		out[ids[i]] = quote
	}
	return out, nil
}

func (r *RedisQuoteCache) SetMany(ctx context.Context, quotes map[int64]pricing.VariantQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for id, quote := range quotes {
		data, err := json.Marshal(quote)
		if err != nil {
			return fmt.Errorf("marshal quote failed: %w", err)
		}
		jitter := time.Duration(rand.Intn(maxJitterMinutes)) * time.Minute
		pipe.Set(ctx, quoteKey(id), data, r.baseTTL+jitter)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func quoteKey(variantID int64) string {
	return "quote:" + strconv.FormatInt(variantID, 10)
}
