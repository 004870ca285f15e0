package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imagine-it/storefront/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Log(ctx context.Context, entry *models.GenerationLog) error {
	const query = `
INSERT INTO generation_logs (user_id, model, prompt, credits, status, image_url)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, entry.UserID, entry.Model, entry.Prompt, entry.Credits, entry.Status, entry.ImageURL)
	if err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	entry.ID, err = insertedID(res)
	return err
}

// List returns the newest generations first.
func (r *GenerationRepository) List(ctx context.Context, userID string, limit int) ([]models.GenerationLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const query = `
SELECT id, user_id, model, prompt, credits, status, COALESCE(image_url, ''), created_at
FROM generation_logs
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return collect(rows, func(row rowScanner) (*models.GenerationLog, error) {
		g := new(models.GenerationLog)
		err := row.Scan(&g.ID, &g.UserID, &g.Model, &g.Prompt, &g.Credits, &g.Status, &g.ImageURL, &g.CreatedAt)
		return g, err
	})
}
