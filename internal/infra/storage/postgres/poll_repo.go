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

// PollRunRepo implements storage.PollRunRepository using PostgreSQL.
type PollRunRepo struct {
	db *DB
}

// NewPollRunRepo creates a new PostgreSQL poll run repository.
func NewPollRunRepo(db *DB) *PollRunRepo {
	return &PollRunRepo{db: db}
}

type pollRunRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	Question    string    `db:"question"`
	Demographic string    `db:"demographic"`
	Provider    string    `db:"provider"`
	Model       string    `db:"model"`
	Rankings    []byte    `db:"rankings"`
	Samples     []byte    `db:"samples"`
	DurationMS  int64     `db:"duration_ms"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r pollRunRow) toDomain() (*domain.PollRun, error) {
	run := &domain.PollRun{
		ID:          r.ID,
		Kind:        domain.PollKind(r.Kind),
		Question:    r.Question,
		Demographic: r.Demographic,
		Provider:    r.Provider,
		Model:       r.Model,
		DurationMS:  r.DurationMS,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Rankings) > 0 {
		if err := json.Unmarshal(r.Rankings, &run.Rankings); err != nil {
			return nil, fmt.Errorf("failed to decode rankings: %w", err)
		}
	}
	if len(r.Samples) > 0 {
		if err := json.Unmarshal(r.Samples, &run.Samples); err != nil {
			return nil, fmt.Errorf("failed to decode samples: %w", err)
		}
	}
	return run, nil
}

// Save stores a completed poll run.
func (r *PollRunRepo) Save(ctx context.Context, run *domain.PollRun) error {
	rankings, err := json.Marshal(run.Rankings)
	if err != nil {
		return fmt.Errorf("failed to encode rankings: %w", err)
	}
	samples, err := json.Marshal(run.Samples)
	if err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}

	query := `
		INSERT INTO poll_runs (
			id, kind, question, demographic, provider, model,
			rankings, samples, duration_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		string(run.Kind),
		run.Question,
		run.Demographic,
		run.Provider,
		run.Model,
		rankings,
		samples,
		run.DurationMS,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save poll run: %w", err)
	}
	return nil
}

// Get retrieves a poll run by ID.
func (r *PollRunRepo) Get(ctx context.Context, id string) (*domain.PollRun, error) {
	var row pollRunRow
	query := `SELECT * FROM poll_runs WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrPollRunNotFound
		}
		return nil, fmt.Errorf("failed to get poll run: %w", err)
	}
	return row.toDomain()
}

// Recent retrieves the most recent poll runs, newest first.
func (r *PollRunRepo) Recent(ctx context.Context, limit int) ([]*domain.PollRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []pollRunRow
	query := `SELECT * FROM poll_runs ORDER BY created_at DESC LIMIT $1`

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list poll runs: %w", err)
	}

	runs := make([]*domain.PollRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
