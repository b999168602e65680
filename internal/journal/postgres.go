package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tradecycle/internal/contracts"
)

// Postgres stores trade records in the trade_records table
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed journal
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Append implements Journal
func (p *Postgres) Append(ctx context.Context, rec contracts.TradeRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO trade_records (
			id, cycle_id, executed_at, symbol, action, quantity, price, confidence, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.pool.Exec(ctx, query,
		rec.ID, rec.CycleID, rec.Timestamp, rec.Symbol, string(rec.Action),
		rec.Quantity, rec.Price, rec.Confidence, rec.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to append trade record %s: %w", rec.ID, err)
	}
	return nil
}

// Between implements Journal
func (p *Postgres) Between(ctx context.Context, from, to time.Time) ([]contracts.TradeRecord, error) {
	query := `
		SELECT id::text, cycle_id, executed_at, symbol, action, quantity,
		       price::float8, confidence::float8, source
		FROM trade_records
		WHERE executed_at >= $1 AND executed_at < $2
		ORDER BY executed_at, id
	`

	rows, err := p.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade records: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.TradeRecord, 0)
	for rows.Next() {
		var (
			r      contracts.TradeRecord
			action string
		)
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Timestamp, &r.Symbol, &action,
			&r.Quantity, &r.Price, &r.Confidence, &r.Source); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		r.Action = contracts.Action(action)
		out = append(out, r)
	}
	return out, rows.Err()
}
