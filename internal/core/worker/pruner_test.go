package worker

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
)

type stubProductRepo struct {
	pruned chan time.Time
}

func (s *stubProductRepo) Save(ctx context.Context, product *domain.Product) error { return nil }

func (s *stubProductRepo) Get(ctx context.Context, asin string) (*domain.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) List(ctx context.Context, limit int) ([]*domain.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	select {
	case s.pruned <- cutoff:
	default:
	}
	return 2, nil
}

func TestPrunerRunsInitialPrune(t *testing.T) {
	repo := &stubProductRepo{pruned: make(chan time.Time, 1)}
	pruner := NewPruner(time.Hour, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		pruner.Start(ctx)
		close(done)
	}()

	select {
	case cutoff := <-repo.pruned:
		age := time.Since(cutoff)
		if age < 55*time.Minute || age > 65*time.Minute {
			t.Errorf("cutoff is %s old, want about 1h", age)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pruner never ran an initial prune")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop on context cancel")
	}
}

func TestPrunerDisabledWithoutRetention(t *testing.T) {
	repo := &stubProductRepo{pruned: make(chan time.Time, 1)}
	pruner := NewPruner(0, repo)

	done := make(chan struct{})
	go func() {
		pruner.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner should return immediately when retention is zero")
	}
	select {
	case <-repo.pruned:
		t.Error("pruner pruned despite retention being disabled")
	default:
	}
}
