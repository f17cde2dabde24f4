package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
)

var (
	// ErrProductNotFound is returned when a product doesn't exist
	ErrProductNotFound = errors.New("product not found")

	// ErrPollRunNotFound is returned when a poll run doesn't exist
	ErrPollRunNotFound = errors.New("poll run not found")
)

// ProductRepository handles product storage operations
type ProductRepository interface {
	// Save upserts a product keyed by ASIN
	Save(ctx context.Context, product *domain.Product) error

	// Get retrieves a product by ASIN
	Get(ctx context.Context, asin string) (*domain.Product, error)

	// List retrieves the most recently fetched products, newest first
	List(ctx context.Context, limit int) ([]*domain.Product, error)

	// DeleteOlderThan removes products last fetched before cutoff and
	// reports how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PollRunRepository handles poll run storage operations
type PollRunRepository interface {
	// Save stores a completed poll run
	Save(ctx context.Context, run *domain.PollRun) error

	// Get retrieves a poll run by ID
	Get(ctx context.Context, id string) (*domain.PollRun, error)

	// Recent retrieves the most recent poll runs, newest first
	Recent(ctx context.Context, limit int) ([]*domain.PollRun, error)
}
