package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/imagine-it/storefront/internal/models"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Add(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	placements, err := json.Marshal(item.Placements)
	if err != nil {
		return nil, fmt.Errorf("encode placements: %w", err)
	}
	const query = `
INSERT INTO cart_items (id, user_id, product_id, variant_id, technique, placements, quantity)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, item.ID, item.UserID, item.ProductID, item.VariantID, item.Technique, placements, item.Quantity); err != nil {
		return nil, fmt.Errorf("insert cart item: %w", err)
	}
	return r.Get(ctx, item.UserID, item.ID)
}

func (r *CartRepository) Get(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	const query = `
SELECT id, user_id, product_id, variant_id, technique, placements, quantity, created_at, updated_at
FROM cart_items WHERE id = ? AND user_id = ?`
	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, itemID, userID))
	if err != nil {
		return nil, lookupErr("get cart item", err)
	}
	return item, nil
}

// List returns the user's cart in the order items were added.
func (r *CartRepository) List(ctx context.Context, userID string) ([]models.CartItem, error) {
	const query = `
SELECT id, user_id, product_id, variant_id, technique, placements, quantity, created_at, updated_at
FROM cart_items WHERE user_id = ?
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return collect(rows, scanCartItem)
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	const query = `UPDATE cart_items SET quantity = ?, updated_at = NOW() WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, quantity, itemID, userID); err != nil {
		return nil, fmt.Errorf("update cart quantity: %w", err)
	}
	return r.Get(ctx, userID, itemID)
}

func (r *CartRepository) Remove(ctx context.Context, userID, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return requireRow(res, ErrNotFound)
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func scanCartItem(row rowScanner) (*models.CartItem, error) {
	var item models.CartItem
	var placements []byte
	if err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.VariantID, &item.Technique, &placements, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if len(placements) > 0 {
		if err := json.Unmarshal(placements, &item.Placements); err != nil {
			return nil, fmt.Errorf("decode placements: %w", err)
		}
	}
	if item.Placements == nil {
		item.Placements = []models.CartPlacement{}
	}
	return &item, nil
}
