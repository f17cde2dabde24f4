// Package images downloads listing images for attachment to vision
// calls. Downloads are cached per batch so products repeated across a
// bulk operation cost one fetch each.
package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/pollster/internal/retry"
)

// maxImageBytes caps a single download. Vision APIs reject anything
// near this size anyway.
const maxImageBytes = 10 << 20

// Fetcher downloads images over HTTP with a per-request deadline.
type Fetcher struct {
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		http:    &http.Client{},
		timeout: timeout,
		log:     slog.Default().With("component", "images"),
	}
}

// NewBatch starts an empty download cache scoped to one operation.
func (f *Fetcher) NewBatch() *Batch {
	return &Batch{fetcher: f, cache: make(map[string][]byte)}
}

// Batch caches downloads by URL for the duration of one poll or bulk
// fetch operation.
type Batch struct {
	fetcher *Fetcher
	mu      sync.Mutex
	cache   map[string][]byte
}

// Get downloads one image, serving repeats from the batch cache. A body
// that is not image content fails without retry potential; callers
// decide whether a product without usable images is fatal.
func (b *Batch) Get(ctx context.Context, rawURL string) ([]byte, error) {
	b.mu.Lock()
	data, ok := b.cache[rawURL]
	b.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := b.fetcher.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.cache != nil {
		b.cache[rawURL] = data
	}
	b.mu.Unlock()
	return data, nil
}

// Prefetch warms the cache for a set of URLs with bounded parallelism.
// Individual failures are logged here and reported again by Get when
// the caller actually needs the image.
func (b *Batch) Prefetch(ctx context.Context, urls []string) {
	seen := make(map[string]bool, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		g.Go(func() error {
			if _, err := b.Get(ctx, u); err != nil {
				b.fetcher.log.Warn("Image prefetch failed", "url", u, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// Close drops the cache. Gets after Close still work, uncached.
func (b *Batch) Close() {
	b.mu.Lock()
	b.cache = nil
	b.mu.Unlock()
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Terminal(fmt.Sprintf("invalid input: bad image URL %q", rawURL), err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{Service: "images", StatusCode: resp.StatusCode, Body: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image body is empty")
	}
	if len(data) > maxImageBytes {
		return nil, retry.Terminal(fmt.Sprintf("invalid image: %s exceeds %d bytes", rawURL, maxImageBytes), nil)
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, retry.Terminal(fmt.Sprintf("invalid image: %s served %s", rawURL, ct), nil)
	}
	return data, nil
}
