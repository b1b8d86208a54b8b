package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VedalAI/swarm-control-sub000/internal/replay"
)

// ReceiptRepository persists consumed receipt ids. The insert-or-nothing
// statement makes the consume race safe across processes: exactly one
// caller inserts, everyone else reads the winning row back.
type ReceiptRepository struct {
	q querier
}

func NewReceiptRepository(pool *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{q: querier{pool: pool}}
}

func (r *ReceiptRepository) Consume(ctx context.Context, entry replay.Entry) (*replay.Entry, error) {
	tag, err := r.q.exec(ctx, `
INSERT INTO receipts (receipt_id, order_id, session_id, consumed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (receipt_id) DO NOTHING`,
		entry.ReceiptID, entry.OrderID, entry.SessionID, entry.ConsumedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert receipt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var prior replay.Entry
	err = r.q.queryRow(ctx, `
SELECT receipt_id, order_id, session_id, consumed_at
FROM receipts
WHERE receipt_id = $1`,
		entry.ReceiptID,
	).Scan(&prior.ReceiptID, &prior.OrderID, &prior.SessionID, &prior.ConsumedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// The winning row vanished between our insert and read; treat
			// the receipt as already spent rather than double-accepting.
			return nil, fmt.Errorf("consume receipt: winner row missing")
		}
		return nil, fmt.Errorf("read consumed receipt: %w", err)
	}
	return &prior, nil
}
