package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tradecycle/internal/contracts"
)

// Repository handles selection run persistence
// ⭐ SSOT: 선정 결과 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSelection appends one selection run
func (r *Repository) SaveSelection(ctx context.Context, at time.Time, candidates []contracts.CandidateScore) error {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}

	query := `
		INSERT INTO selection_runs (selected_at, symbols, candidates)
		VALUES ($1, $2, $3)
	`
	if _, err := r.pool.Exec(ctx, query, at, contracts.Symbols(candidates), payload); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

// Latest returns the most recent selection run
func (r *Repository) Latest(ctx context.Context) (time.Time, []contracts.CandidateScore, error) {
	query := `
		SELECT selected_at, candidates
		FROM selection_runs
		ORDER BY selected_at DESC
		LIMIT 1
	`

	var (
		at      time.Time
		payload []byte
	)
	err := r.pool.QueryRow(ctx, query).Scan(&at, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil, nil
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to load selection: %w", err)
	}

	var candidates []contracts.CandidateScore
	if err := json.Unmarshal(payload, &candidates); err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to unmarshal candidates: %w", err)
	}
	return at, candidates, nil
}
