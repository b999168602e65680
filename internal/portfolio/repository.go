package portfolio

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tradecycle/internal/contracts"
)

// Repository persists position snapshots so a restart resumes open positions
// ⭐ SSOT: 포지션 스냅샷 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SavePosition upserts a position; zero quantity removes it
func (r *Repository) SavePosition(ctx context.Context, pos contracts.Position) error {
	if pos.Quantity <= 0 {
		_, err := r.pool.Exec(ctx, `DELETE FROM position_snapshots WHERE symbol = $1`, pos.Symbol)
		if err != nil {
			return fmt.Errorf("failed to delete position %s: %w", pos.Symbol, err)
		}
		return nil
	}

	query := `
		INSERT INTO position_snapshots (
			symbol, quantity, entry_price, entry_time, stop_loss_price, take_profit_price, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			entry_price = EXCLUDED.entry_price,
			entry_time = EXCLUDED.entry_time,
			stop_loss_price = EXCLUDED.stop_loss_price,
			take_profit_price = EXCLUDED.take_profit_price,
			updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query,
		pos.Symbol, pos.Quantity, pos.EntryPrice, pos.EntryTime, pos.StopLossPrice, pos.TakeProfitPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", pos.Symbol, err)
	}
	return nil
}

// LoadPositions returns every persisted open position
func (r *Repository) LoadPositions(ctx context.Context) ([]contracts.Position, error) {
	query := `
		SELECT symbol, quantity, entry_price::float8, entry_time,
		       stop_loss_price::float8, take_profit_price::float8
		FROM position_snapshots
		WHERE quantity > 0
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var out []contracts.Position
	for rows.Next() {
		var p contracts.Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.EntryPrice, &p.EntryTime, &p.StopLossPrice, &p.TakeProfitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
