package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/storage"
)

func TestProductRepoSaveGet(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepo(NewMemoryStorage())

	p := &domain.Product{ASIN: "B01ABCDEF", Title: "Garlic Press", Price: 12.99}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "B01ABCDEF")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Garlic Press" || got.Price != 12.99 {
		t.Errorf("Get = %+v, want saved product", got)
	}

	if _, err := repo.Get(ctx, "B0MISSING"); !errors.Is(err, storage.ErrProductNotFound) {
		t.Errorf("Get missing = %v, want ErrProductNotFound", err)
	}
}

func TestProductRepoListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepo(NewMemoryStorage())

	for i := 1; i <= 3; i++ {
		asin := fmt.Sprintf("B0%07d", i)
		if err := repo.Save(ctx, &domain.Product{ASIN: asin}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	products, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("List returned %d products, want 2", len(products))
	}
	if products[0].ASIN != "B00000003" || products[1].ASIN != "B00000002" {
		t.Errorf("List order = [%s %s], want newest first", products[0].ASIN, products[1].ASIN)
	}
}

func TestProductRepoDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepo(NewMemoryStorage())

	now := time.Now()
	stale := &domain.Product{ASIN: "B00000STALE", FetchedAt: now.Add(-48 * time.Hour)}
	fresh := &domain.Product{ASIN: "B00000FRESH", FetchedAt: now}
	for _, p := range []*domain.Product{stale, fresh} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := repo.Get(ctx, "B00000STALE"); !errors.Is(err, storage.ErrProductNotFound) {
		t.Errorf("stale product still present: %v", err)
	}
	if _, err := repo.Get(ctx, "B00000FRESH"); err != nil {
		t.Errorf("fresh product was dropped: %v", err)
	}

	products, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != 1 || products[0].ASIN != "B00000FRESH" {
		t.Errorf("List after prune = %+v, want only the fresh product", products)
	}
}

func TestPollRunRepoRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewPollRunRepo(NewMemoryStorage())

	for i := 1; i <= 3; i++ {
		run := &domain.PollRun{ID: fmt.Sprintf("run-%d", i), Kind: domain.PollKindTitle}
		if err := repo.Save(ctx, run); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	runs, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Recent returned %d runs, want 3", len(runs))
	}
	if runs[0].ID != "run-3" {
		t.Errorf("Recent[0] = %s, want run-3", runs[0].ID)
	}

	if _, err := repo.Get(ctx, "run-2"); err != nil {
		t.Errorf("Get run-2 failed: %v", err)
	}
	if _, err := repo.Get(ctx, "nope"); !errors.Is(err, storage.ErrPollRunNotFound) {
		t.Errorf("Get missing = %v, want ErrPollRunNotFound", err)
	}
}
