package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/imagine-it/storefront/internal/models"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, status, currency, subtotal, recipient, order_lines, COALESCE(paypal_order_id, ''), COALESCE(printful_order_id, ''), created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	recipient, err := json.Marshal(order.Recipient)
	if err != nil {
		return nil, fmt.Errorf("encode recipient: %w", err)
	}
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode order lines: %w", err)
	}
	const query = `
INSERT INTO orders (id, user_id, status, currency, subtotal, recipient, order_lines)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, order.ID, order.UserID, order.Status, order.Currency, order.Subtotal.StringFixed(2), recipient, lines); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return r.Get(ctx, order.UserID, order.ID)
}

func (r *OrderRepository) Get(ctx context.Context, userID, orderID string) (*models.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id = ? AND user_id = ?`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID, userID))
	if err != nil {
		return nil, lookupErr("get order", err)
	}
	return order, nil
}

func (r *OrderRepository) List(ctx context.Context, userID string) ([]models.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return collect(rows, scanOrder)
}

func (r *OrderRepository) SetPayPalOrder(ctx context.Context, orderID, paypalOrderID string) error {
	const query = `UPDATE orders SET paypal_order_id = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, paypalOrderID, orderID); err != nil {
		return fmt.Errorf("set paypal order: %w", err)
	}
	return nil
}

// TransitionStatus moves an order from one status to another. It returns
// false when the order was not in the expected status.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID string, from, to models.OrderStatus) (bool, error) {
	const query = `UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	switch err := requireRow(res, ErrNotFound); {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *OrderRepository) MarkSubmitted(ctx context.Context, orderID, printfulOrderID string) error {
	const query = `UPDATE orders SET status = ?, printful_order_id = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, models.OrderSubmitted, printfulOrderID, orderID); err != nil {
		return fmt.Errorf("mark order submitted: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var subtotal string
	var recipient, lines []byte
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Currency, &subtotal, &recipient, &lines, &o.PayPalOrderID, &o.PrintfulOrderID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := o.Subtotal.Scan(subtotal); err != nil {
		return nil, fmt.Errorf("decode subtotal: %w", err)
	}
	if err := json.Unmarshal(recipient, &o.Recipient); err != nil {
		return nil, fmt.Errorf("decode recipient: %w", err)
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	return &o, nil
}
