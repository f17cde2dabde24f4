// Package fetching runs bulk product fetches: one scrape per ASIN,
// strictly sequential with pacing between items, continuing past
// per-item failures so one bad listing never sinks the batch.
package fetching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/images"
	"github.com/vietddude/pollster/internal/infra/metrics"
	redisclient "github.com/vietddude/pollster/internal/infra/redis"
	"github.com/vietddude/pollster/internal/infra/scraper"
	"github.com/vietddude/pollster/internal/infra/storage"
	"github.com/vietddude/pollster/internal/retry"
)

// ProgressFunc receives one call per finished item. It is a reporting
// side-channel: panics and slow handlers must not affect the batch.
type ProgressFunc func(done, total int, asin string, status domain.ItemStatus)

// Config tunes batch pacing.
type Config struct {
	// ItemDelay is the minimum spacing between consecutive scrapes.
	ItemDelay time.Duration
}

// Fetcher orchestrates bulk fetches over the scraper, the product
// cache and the repository.
type Fetcher struct {
	scraper *scraper.Client
	images  *images.Fetcher
	cache   *redisclient.Client
	repo    storage.ProductRepository
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewFetcher creates a bulk fetcher. cache and repo may be nil.
func NewFetcher(sc *scraper.Client, imgs *images.Fetcher, cache *redisclient.Client, repo storage.ProductRepository, cfg Config) *Fetcher {
	delay := cfg.ItemDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Fetcher{
		scraper: sc,
		images:  imgs,
		cache:   cache,
		repo:    repo,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		log:     slog.Default().With("component", "fetching"),
	}
}

// FetchAll processes asins in their given order and returns one result
// per input, in input order. Item failures are recorded and skipped
// over; only context cancellation stops the batch early, returning the
// partial result alongside the error.
func (f *Fetcher) FetchAll(ctx context.Context, asins []string, progress ProgressFunc) (*domain.BulkFetchResult, error) {
	if len(asins) == 0 {
		return nil, retry.Terminal("invalid input: no ASINs to fetch", nil)
	}

	result := &domain.BulkFetchResult{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	batch := f.images.NewBatch()
	defer batch.Close()

	f.log.Info("Bulk fetch started", "id", result.ID, "items", len(asins))
	for i, asin := range asins {
		if err := f.limiter.Wait(ctx); err != nil {
			result.CompletedAt = time.Now().UTC()
			return result, err
		}

		item := f.fetchOne(ctx, batch, asin)
		result.Add(item)
		metrics.ProductsFetched.WithLabelValues(string(item.Status)).Inc()
		f.notify(progress, i+1, len(asins), item)
	}

	result.CompletedAt = time.Now().UTC()
	f.log.Info("Bulk fetch finished",
		"id", result.ID,
		"success", result.SuccessCount,
		"needs_review", result.NeedsReviewCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, batch *images.Batch, asin string) domain.ItemResult {
	item := domain.ItemResult{ASIN: asin}

	p, err := f.lookup(ctx, asin)
	if err != nil {
		item.Status = domain.ItemStatusFailed
		item.Error = err.Error()
		f.log.Warn("Product fetch failed", "asin", asin, "error", err)
		return item
	}

	item.Product = p
	item.Warnings = f.inspect(ctx, batch, p)
	if len(item.Warnings) > 0 {
		item.Status = domain.ItemStatusNeedsReview
	} else {
		item.Status = domain.ItemStatusSuccess
	}
	return item
}

// lookup serves from the cache when possible, otherwise scrapes and
// writes through to the repository and the cache.
func (f *Fetcher) lookup(ctx context.Context, asin string) (*domain.Product, error) {
	if f.cache != nil {
		if p, ok := f.cache.GetProduct(ctx, asin); ok {
			return p, nil
		}
	}

	p, err := f.scraper.FetchProduct(ctx, asin, nil)
	if err != nil {
		return nil, err
	}

	if f.repo != nil {
		if err := f.repo.Save(ctx, p); err != nil {
			f.log.Warn("Failed to persist product", "asin", p.ASIN, "error", err)
		}
	}
	if f.cache != nil {
		if err := f.cache.SetProduct(ctx, p); err != nil {
			f.log.Warn("Failed to cache product", "asin", p.ASIN, "error", err)
		}
	}
	return p, nil
}

// inspect flags listing gaps that a human should look at before the
// product is used in polls. The main image is actually downloaded: a
// dead or non-image URL is worth a review even when the scrape itself
// succeeded.
func (f *Fetcher) inspect(ctx context.Context, batch *images.Batch, p *domain.Product) []string {
	var warnings []string
	if p.Title == "" {
		warnings = append(warnings, "listing has no title")
	}
	if p.Price == 0 {
		warnings = append(warnings, "listing has no price")
	}
	if len(p.ImageURLs) == 0 {
		warnings = append(warnings, "listing has no images")
	} else if _, err := batch.Get(ctx, p.ImageURLs[0]); err != nil {
		warnings = append(warnings, fmt.Sprintf("main image unusable: %v", err))
	}
	return warnings
}

func (f *Fetcher) notify(progress ProgressFunc, done, total int, item domain.ItemResult) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			f.log.Warn("Progress callback panicked", "panic", r)
		}
	}()
	progress(done, total, item.ASIN, item.Status)
}
