package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VedalAI/swarm-control-sub000/internal/domain"
)

type OrderRepository struct {
	q querier
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{q: querier{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.q.pool, fn)
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	cart, err := json.Marshal(order.Cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	_, err = r.q.exec(ctx, `
INSERT INTO orders (id, user_id, state, cart, receipt, result, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.UserID, string(order.State), cart,
		order.Receipt, order.Result, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create order %s: id already taken", order.ID)
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, false)
}

// GetOrderForUpdate reads the order under its row lock; callers must be
// inside WithTx.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, true)
}

func (r *OrderRepository) get(ctx context.Context, id string, forUpdate bool) (domain.Order, error) {
	query := `
SELECT id, user_id, state, cart, receipt, result, created_at, updated_at
FROM orders
WHERE id = $1`
	if forUpdate {
		query += `
FOR UPDATE`
	}

	var o domain.Order
	var state string
	var cart []byte
	err := r.q.queryRow(ctx, query, id).
		Scan(&o.ID, &o.UserID, &state, &cart, &o.Receipt, &o.Result, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.State = domain.OrderState(state)
	if err := json.Unmarshal(cart, &o.Cart); err != nil {
		return domain.Order{}, fmt.Errorf("decode cart: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) SaveOrder(ctx context.Context, order domain.Order) error {
	tag, err := r.q.exec(ctx, `
UPDATE orders
SET state = $2, receipt = $3, result = $4, updated_at = $5
WHERE id = $1`,
		order.ID, string(order.State), order.Receipt, order.Result, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
