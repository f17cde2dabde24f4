package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/pollster/internal/infra/storage"
)

// Pruner deletes cached products that have not been refetched within the
// retention period.
type Pruner struct {
	retention time.Duration
	products  storage.ProductRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, products storage.ProductRepository) *Pruner {
	return &Pruner{
		retention: retention,
		products:  products,
	}
}

// Start runs the pruner loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check at 10% of the retention period, between 1 minute and 1 hour.
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	deleted, err := p.products.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune stale products", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Pruned stale products", "count", deleted, "older_than", cutoff.Format(time.RFC3339))
	}
}
