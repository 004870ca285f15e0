package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/imagine-it/storefront/internal/cache"
	"github.com/imagine-it/storefront/internal/pricing"
)

// PriceService resolves variant quotes from the cache and fetches the misses
// from the vendor in a single batched request.
type PriceService struct {
	fetcher      PriceFetcher
	cache        cache.QuoteCache
	log          *slog.Logger
	group        singleflight.Group
	fetchTimeout time.Duration
}

const defaultFetchTimeout = 20 * time.Second

func NewPriceService(fetcher PriceFetcher, quoteCache cache.QuoteCache, log *slog.Logger) *PriceService {
	if quoteCache == nil {
		quoteCache = cache.Noop{}
	}
	return &PriceService{fetcher: fetcher, cache: quoteCache, log: log, fetchTimeout: defaultFetchTimeout}
}

// Quotes returns whatever quotes are available. A vendor outage degrades to
// the cached subset; missing variants are priced as zero downstream.
func (s *PriceService) Quotes(ctx context.Context, ids []int64) map[int64]pricing.VariantQuote {
	quotes, err := s.load(ctx, ids)
	if err != nil {
		s.log.Warn("price fetch failed, using cached quotes", "variants", len(ids), "cached", len(quotes), "err", err)
	}
	return quotes
}

// QuotesStrict fails with ErrPricingUnavailable unless every id is quoted.
func (s *PriceService) QuotesStrict(ctx context.Context, ids []int64) (map[int64]pricing.VariantQuote, error) {
	quotes, err := s.load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPricingUnavailable, err)
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := quotes[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no quote for variants %v", ErrPricingUnavailable, missing)
	}
	return quotes, nil
}

// load always returns the quotes it found, even alongside a fetch error.
func (s *PriceService) load(ctx context.Context, ids []int64) (map[int64]pricing.VariantQuote, error) {
	out := make(map[int64]pricing.VariantQuote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cached, err := s.cache.GetMany(ctx, ids)
	if err != nil {
		s.log.Warn("quote cache read failed", "err", err)
		cached = nil
	}
	var misses []int64
	for _, id := range ids {
		if q, ok := cached[id]; ok {
			out[id] = q
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	sort.Slice(misses, func(i, j int) bool { return misses[i] < misses[j] })
	// The shared fetch outlives any single caller; each caller only stops
	// waiting for it when its own context ends.
	flight := s.group.DoChan(flightKey(misses), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		fetched, err := s.fetcher.FetchVariantPrices(fetchCtx, misses)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetMany(fetchCtx, fetched); err != nil {
			s.log.Warn("quote cache write failed", "err", err)
		}
		return fetched, nil
	})

	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return out, res.Err
		}
		for id, q := range res.Val.(map[int64]pricing.VariantQuote) {
			out[id] = q
		}
		return out, nil
	}
}

func flightKey(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
