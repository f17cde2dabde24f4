package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/storage"
)

// ProductRepo implements storage.ProductRepository using PostgreSQL.
type ProductRepo struct {
	db *DB
}

// NewProductRepo creates a new PostgreSQL product repository.
func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

type productRow struct {
	ASIN         string    `db:"asin"`
	Marketplace  string    `db:"marketplace"`
	Title        string    `db:"title"`
	Brand        string    `db:"brand"`
	Price        float64   `db:"price"`
	Currency     string    `db:"currency"`
	Rating       float64   `db:"rating"`
	ReviewCount  int       `db:"review_count"`
	DeliveryDays int       `db:"delivery_days"`
	InStock      bool      `db:"in_stock"`
	ImageURLs    []byte    `db:"image_urls"`
	Features     []byte    `db:"features"`
	FetchedAt    time.Time `db:"fetched_at"`
}

func (r productRow) toDomain() (*domain.Product, error) {
	p := &domain.Product{
		ASIN:         r.ASIN,
		Marketplace:  r.Marketplace,
		Title:        r.Title,
		Brand:        r.Brand,
		Price:        r.Price,
		Currency:     r.Currency,
		Rating:       r.Rating,
		ReviewCount:  r.ReviewCount,
		DeliveryDays: r.DeliveryDays,
		InStock:      r.InStock,
		FetchedAt:    r.FetchedAt,
	}
	if len(r.ImageURLs) > 0 {
		if err := json.Unmarshal(r.ImageURLs, &p.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to decode image urls: %w", err)
		}
	}
	if len(r.Features) > 0 {
		if err := json.Unmarshal(r.Features, &p.Features); err != nil {
			return nil, fmt.Errorf("failed to decode features: %w", err)
		}
	}
	return p, nil
}

// Save upserts a product keyed by ASIN.
func (r *ProductRepo) Save(ctx context.Context, product *domain.Product) error {
	images, err := json.Marshal(product.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode image urls: %w", err)
	}
	features, err := json.Marshal(product.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	query := `
		INSERT INTO products (
			asin, marketplace, title, brand, price, currency, rating,
			review_count, delivery_days, in_stock, image_urls, features, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (asin) DO UPDATE SET
			marketplace = EXCLUDED.marketplace,
			title = EXCLUDED.title,
			brand = EXCLUDED.brand,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			delivery_days = EXCLUDED.delivery_days,
			in_stock = EXCLUDED.in_stock,
			image_urls = EXCLUDED.image_urls,
			features = EXCLUDED.features,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err = r.db.ExecContext(ctx, query,
		product.ASIN,
		product.Marketplace,
		product.Title,
		product.Brand,
		product.Price,
		product.Currency,
		product.Rating,
		product.ReviewCount,
		product.DeliveryDays,
		product.InStock,
		images,
		features,
		product.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// Get retrieves a product by ASIN.
func (r *ProductRepo) Get(ctx context.Context, asin string) (*domain.Product, error) {
	var row productRow
	query := `SELECT * FROM products WHERE asin = $1`

	if err := r.db.GetContext(ctx, &row, query, asin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return row.toDomain()
}

// DeleteOlderThan removes products last fetched before cutoff.
func (r *ProductRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale products: %w", err)
	}
	return res.RowsAffected()
}

// List retrieves the most recently fetched products, newest first.
func (r *ProductRepo) List(ctx context.Context, limit int) ([]*domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []productRow
	query := `SELECT * FROM products ORDER BY fetched_at DESC LIMIT $1`

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}
