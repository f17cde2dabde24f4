package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/storage"
)

// MemoryStorage backs the repositories when no database is configured.
type MemoryStorage struct {
	products     map[string]*domain.Product
	productOrder []string // ASINs in save order, oldest first
	runs         map[string]*domain.PollRun
	runOrder     []string // run IDs in save order, oldest first
	mu           sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		products: make(map[string]*domain.Product),
		runs:     make(map[string]*domain.PollRun),
	}
}

// -----------------------------------------------------------------------------
// Product Repository
// -----------------------------------------------------------------------------

type ProductRepo struct {
	store *MemoryStorage
}

func NewProductRepo(store *MemoryStorage) *ProductRepo {
	return &ProductRepo{store: store}
}

func (r *ProductRepo) Save(ctx context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.products[product.ASIN]; !exists {
		r.store.productOrder = append(r.store.productOrder, product.ASIN)
	}
	r.store.products[product.ASIN] = product
	return nil
}

func (r *ProductRepo) Get(ctx context.Context, asin string) (*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.products[asin]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, limit int) ([]*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}

	products := make([]*domain.Product, 0, limit)
	for i := len(r.store.productOrder) - 1; i >= 0 && len(products) < limit; i-- {
		products = append(products, r.store.products[r.store.productOrder[i]])
	}
	return products, nil
}

func (r *ProductRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	kept := r.store.productOrder[:0]
	for _, asin := range r.store.productOrder {
		p := r.store.products[asin]
		if p != nil && p.FetchedAt.Before(cutoff) {
			delete(r.store.products, asin)
			deleted++
			continue
		}
		kept = append(kept, asin)
	}
	r.store.productOrder = kept
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Poll Run Repository
// -----------------------------------------------------------------------------

type PollRunRepo struct {
	store *MemoryStorage
}

func NewPollRunRepo(store *MemoryStorage) *PollRunRepo {
	return &PollRunRepo{store: store}
}

func (r *PollRunRepo) Save(ctx context.Context, run *domain.PollRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.runs[run.ID]; !exists {
		r.store.runOrder = append(r.store.runOrder, run.ID)
	}
	r.store.runs[run.ID] = run
	return nil
}

func (r *PollRunRepo) Get(ctx context.Context, id string) (*domain.PollRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	run, ok := r.store.runs[id]
	if !ok {
		return nil, storage.ErrPollRunNotFound
	}
	return run, nil
}

func (r *PollRunRepo) Recent(ctx context.Context, limit int) ([]*domain.PollRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}

	runs := make([]*domain.PollRun, 0, limit)
	for i := len(r.store.runOrder) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, r.store.runs[r.store.runOrder[i]])
	}
	return runs, nil
}
